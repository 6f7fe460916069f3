package browser

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
)

// SystemOpener launches the platform's default browser
func SystemOpener(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	go cmd.Wait()
	return nil
}

// PrintOpener writes the URL to w so users can open it themselves
func PrintOpener(w io.Writer) Opener {
	return func(url string) error {
		_, err := fmt.Fprintf(w, "Complete the verification in your browser: %s\n", url)
		return err
	}
}

// Chain calls every opener in turn and returns the first error
func Chain(openers ...Opener) Opener {
	return func(url string) error {
		var first error
		for _, o := range openers {
			if o == nil {
				continue
			}
			if err := o(url); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
}
