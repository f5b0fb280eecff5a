package monitor

import (
	"os"
	"path/filepath"
)

// CleanStaleLogs removes leftover files from the dispatcher's logs
// directory, typically orphans from sessions that were never dismissed.
// Returns the number of files removed; a missing directory removes
// nothing.
func CleanStaleLogs(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed
}
