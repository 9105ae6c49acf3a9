// Package confirm tracks per-item and per-provider completion markers. A
// marker is an empty file whose existence, not content, records that an item
// finished successfully. The filesystem is the single source of truth: there
// is no in-memory cache, and no deletion in the normal flow (removing a marker
// by hand is how an operator forces a re-download).
package confirm

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store reads and writes completion markers.
type Store struct{}

// Exists reports whether the marker at path is present.
func (Store) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Create writes an empty marker at path, creating parent directories as
// needed. Creating an empty file is effectively atomic: a crash leaves either
// no marker or a complete one.
func (Store) Create(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating marker directory %q: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating marker %q: %w", path, err)
	}
	return f.Close()
}
