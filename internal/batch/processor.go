// Package batch plans multi-target translations: it parses target lists
// from flags and files and marks targets that need no network call.
package batch

import (
	"fmt"
	"os"
	"strings"

	"codeberg.org/snonux/lingogate/internal/languages"
)

// Task is one target of a batch run
type Task struct {
	Index  int
	Target string
	// Identity is set when the explicit source equals the target, so the
	// input text is the result
	Identity bool
}

// Plan turns the selected targets into tasks, keeping order and duplicates
func Plan(source string, targets []string) []Task {
	tasks := make([]Task, 0, len(targets))
	for i, target := range targets {
		tasks = append(tasks, Task{
			Index:    i,
			Target:   target,
			Identity: source != languages.Auto && source == target,
		})
	}
	return tasks
}

// ParseTargets splits a comma or whitespace separated target list and
// normalises each code. Unknown codes are an error.
func ParseTargets(s string) ([]string, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})

	var targets []string
	for _, f := range fields {
		code := languages.Normalize(f)
		if !languages.IsValid(code) {
			return nil, fmt.Errorf("unsupported target language: %s", f)
		}
		targets = append(targets, code)
	}
	return targets, nil
}

// ReadTargetsFile reads targets from a file
// Supports formats:
// - one code per line: "fr-FR"
// - several codes per line: "de, it"
// - comments: "# nordic" (ignored up to end of line)
func ReadTargetsFile(filename string) ([]string, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}

	var targets []string
	for n, line := range strings.Split(string(content), "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		parsed, err := ParseTargets(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", filename, n+1, err)
		}
		targets = append(targets, parsed...)
	}

	return targets, nil
}
