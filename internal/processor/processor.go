package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"codeberg.org/snonux/lingogate/internal/archive"
	"codeberg.org/snonux/lingogate/internal/batch"
	"codeberg.org/snonux/lingogate/internal/cli"
	"codeberg.org/snonux/lingogate/internal/languages"
	"codeberg.org/snonux/lingogate/internal/logging"
	"codeberg.org/snonux/lingogate/internal/metrics"
	"codeberg.org/snonux/lingogate/internal/orchestrator"
	"codeberg.org/snonux/lingogate/internal/prefs"
	"codeberg.org/snonux/lingogate/internal/translation"
	"codeberg.org/snonux/lingogate/internal/widget/browser"
)

// Default language selection when nothing has been saved yet
const (
	DefaultSource = languages.Auto
	DefaultTarget = "en-US"
)

// Processor runs the lingogate commands
type Processor struct {
	flags   *cli.Flags
	log     *slog.Logger
	metrics *metrics.Metrics
	in      io.Reader
	out     io.Writer
	errOut  io.Writer
}

// NewProcessor creates a new processor for the given flags
func NewProcessor(flags *cli.Flags) *Processor {
	return &Processor{
		flags:   flags,
		log:     logging.NewLogger(flags.LogLevel, flags.LogFormat, os.Stderr),
		metrics: metrics.New(),
		in:      os.Stdin,
		out:     os.Stdout,
		errOut:  os.Stderr,
	}
}

// ReadText joins the arguments, or reads standard input when there are none
func (p *Processor) ReadText(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(p.in)
	if err != nil {
		return "", fmt.Errorf("failed to read standard input: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// ProcessSingle translates text into one target language and prints it
func (p *Processor) ProcessSingle(ctx context.Context, text string) error {
	s, err := p.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	saved := s.store.LoadLanguages(ctx, prefs.Languages{Source: DefaultSource, Target: DefaultTarget})
	source, err := resolveSource(p.flags.From, saved.Source)
	if err != nil {
		return err
	}
	target, err := resolveTarget(p.flags.To, saved.Target)
	if err != nil {
		return err
	}

	req := orchestrator.Request{Text: text, Source: source, Target: target}
	var res *orchestrator.Result
	for attempt := 1; ; attempt++ {
		res, err = s.orch.Translate(ctx, req)
		if err == nil {
			break
		}
		if attempt == maxAttempts {
			return err
		}
		if err := s.awaitVerification(ctx, err); err != nil {
			return err
		}
	}

	s.store.SaveLanguages(ctx, prefs.Languages{Source: source, Target: target})
	p.log.Debug("translate.done", "source", res.SourceLang, "target", res.TargetLang, "identity", res.Identity)

	fmt.Fprintln(p.out, res.Text)
	return nil
}

// ProcessBatch translates text into every selected target, one after the
// other. Translations finished before a failure are still printed and saved.
func (p *Processor) ProcessBatch(ctx context.Context, text string) error {
	s, err := p.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	saved := s.store.LoadBatch(ctx, prefs.BatchSelection{Source: DefaultSource})
	source, err := resolveSource(p.flags.From, saved.Source)
	if err != nil {
		return err
	}
	targets, err := p.batchTargets(saved.Targets)
	if err != nil {
		return err
	}
	if len(targets) > 0 {
		s.store.SaveBatch(ctx, prefs.BatchSelection{Source: source, Targets: targets})
	}

	if p.flags.OutputDir != "" && p.flags.Archive {
		archived, err := archive.ArchiveOutput(p.flags.OutputDir, time.Now())
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// Nothing to archive
		case err != nil:
			return fmt.Errorf("failed to archive previous results: %w", err)
		default:
			fmt.Fprintf(p.errOut, "Previous results archived to: %s\n", archived)
		}
	}

	results := translation.NewResultSet()
	remaining := targets
	for attempt := 1; ; attempt++ {
		done := results.Len()
		rs, runErr := s.orch.TranslateBatch(ctx, orchestrator.BatchRequest{
			Text:    text,
			Source:  source,
			Targets: remaining,
			OnTarget: func(target string) {
				done++
				fmt.Fprintf(p.errOut, "Translating %d/%d: %s\n", done, len(targets), languages.Name(target))
			},
		})
		for _, r := range rs.All() {
			results.Add(r.Target, r.Text)
		}
		remaining = remaining[rs.Len():]

		err = runErr
		if err == nil || attempt == maxAttempts {
			break
		}
		if err = s.awaitVerification(ctx, runErr); err != nil {
			break
		}
	}

	if outErr := p.writeBatchResults(results, len(targets)); outErr != nil {
		if err == nil {
			return outErr
		}
		fmt.Fprintf(p.errOut, "Warning: %v\n", outErr)
	}
	return err
}

func (p *Processor) batchTargets(saved []string) ([]string, error) {
	if p.flags.To == "" && p.flags.TargetsFile == "" {
		return saved, nil
	}

	var targets []string
	if p.flags.To != "" {
		parsed, err := batch.ParseTargets(p.flags.To)
		if err != nil {
			return nil, err
		}
		targets = append(targets, parsed...)
	}
	if p.flags.TargetsFile != "" {
		fromFile, err := batch.ReadTargetsFile(p.flags.TargetsFile)
		if err != nil {
			return nil, err
		}
		targets = append(targets, fromFile...)
	}
	return targets, nil
}

func (p *Processor) writeBatchResults(results *translation.ResultSet, total int) error {
	for _, r := range results.All() {
		fmt.Fprintf(p.out, "%s (%s): %s\n", languages.Name(r.Target), r.Target, r.Text)
	}

	if total > 0 {
		fmt.Fprintf(p.errOut, "\n=== Batch Summary ===\n")
		fmt.Fprintf(p.errOut, "Targets: %d\n", total)
		fmt.Fprintf(p.errOut, "Translated: %d\n", results.Len())
		if skipped := total - results.Len(); skipped > 0 {
			fmt.Fprintf(p.errOut, "Not translated: %d\n", skipped)
		}
		fmt.Fprintf(p.errOut, "=====================\n")
	}

	if p.flags.OutputDir == "" || results.Len() == 0 {
		return nil
	}
	paths, err := results.SaveAll(p.flags.OutputDir)
	for _, path := range paths {
		fmt.Fprintf(p.errOut, "Saved: %s\n", path)
	}
	return err
}

func resolveSource(flagValue, saved string) (string, error) {
	if flagValue == "" {
		return saved, nil
	}
	code := languages.Normalize(flagValue)
	if !languages.IsValidSource(code) {
		return "", fmt.Errorf("unsupported source language %q (see 'lingogate languages')", flagValue)
	}
	return code, nil
}

func resolveTarget(flagValue, saved string) (string, error) {
	if flagValue == "" {
		return saved, nil
	}
	code := languages.Normalize(flagValue)
	if !languages.IsValid(code) {
		return "", fmt.Errorf("unsupported target language %q (see 'lingogate languages')", flagValue)
	}
	return code, nil
}

func (p *Processor) opener() browser.Opener {
	if p.flags.NoBrowser {
		return browser.PrintOpener(p.errOut)
	}
	return browser.Chain(browser.PrintOpener(p.errOut), browser.SystemOpener)
}

// notifier prints informational notices. Failures come back as errors and
// are reported by the command itself, so they only reach the debug log.
func (p *Processor) notifier() orchestrator.Notifier {
	return orchestrator.NotifierFunc(func(n orchestrator.Notice) {
		if n.Destructive {
			p.log.Debug("notice", "title", n.Title, "description", n.Description)
			return
		}
		fmt.Fprintln(p.errOut, n.Description)
	})
}
