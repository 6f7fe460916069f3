package translation

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"codeberg.org/snonux/lingogate/internal"
)

// Result is the outcome for one batch target
type Result struct {
	Target string
	Text   string
}

// ResultSet keeps batch results in the order they were added. Duplicate
// targets produce separate entries.
type ResultSet struct {
	mu      sync.Mutex
	results []Result
}

// NewResultSet creates an empty result set
func NewResultSet() *ResultSet {
	return &ResultSet{}
}

// Add appends a result
func (rs *ResultSet) Add(target, text string) {
	rs.mu.Lock()
	rs.results = append(rs.results, Result{Target: target, Text: text})
	rs.mu.Unlock()
}

// Len returns the number of results
func (rs *ResultSet) Len() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.results)
}

// All returns a copy of the results in order
func (rs *ResultSet) All() []Result {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make([]Result, len(rs.results))
	copy(out, rs.results)
	return out
}

// Get returns the first result for target
func (rs *ResultSet) Get(target string) (string, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, r := range rs.results {
		if r.Target == target {
			return r.Text, true
		}
	}
	return "", false
}

// SaveTranslation writes text to <dir>/<lang>.txt
func SaveTranslation(dir, lang, text string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	outputFile := filepath.Join(dir, internal.SanitizeFilename(lang)+".txt")
	if err := os.WriteFile(outputFile, []byte(text+"\n"), 0644); err != nil {
		return "", fmt.Errorf("failed to write translation file: %w", err)
	}

	return outputFile, nil
}

// SaveAll writes every result with SaveTranslation. A later duplicate
// target overwrites the earlier file.
func (rs *ResultSet) SaveAll(dir string) ([]string, error) {
	var files []string
	for _, r := range rs.All() {
		file, err := SaveTranslation(dir, r.Target, r.Text)
		if err != nil {
			return files, err
		}
		files = append(files, file)
	}
	return files, nil
}
