package archive

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Dir is the name of the archive directory created next to the archived one
const Dir = "archive"

// ArchiveOutput moves a previous batch output directory into
// <parent>/archive/<name>-<timestamp> and returns the new location.
// A missing directory yields an error wrapping fs.ErrNotExist.
func ArchiveOutput(outputDir string, now time.Time) (string, error) {
	info, err := os.Stat(outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("output directory does not exist: %s: %w", outputDir, fs.ErrNotExist)
		}
		return "", fmt.Errorf("stat output directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", outputDir)
	}

	clean := filepath.Clean(outputDir)
	archiveDir := filepath.Join(filepath.Dir(clean), Dir)
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	name := filepath.Base(clean)
	archivePath := filepath.Join(archiveDir, fmt.Sprintf("%s-%s", name, now.Format("20060102-150405")))

	// Same second twice in a row
	if _, err := os.Stat(archivePath); err == nil {
		archivePath = filepath.Join(archiveDir, fmt.Sprintf("%s-%s", name, now.Format("20060102-150405.000000")))
	}

	if err := os.Rename(clean, archivePath); err != nil {
		return "", fmt.Errorf("failed to archive output directory: %w", err)
	}
	return archivePath, nil
}
