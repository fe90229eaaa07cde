// Package fsutil holds the atomic file replacement used for every artifact
// the pipeline writes.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes the output of write to a temporary file in the
// destination directory, syncs it and renames it over path. On any failure
// the temporary file is removed and an existing file at path is untouched.
func WriteFileAtomic(path string, perm os.FileMode, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// Replace atomically moves src over dst.
func Replace(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("rename %s: %w", src, err)
	}
	return nil
}

// Move is one staged file and its final location.
type Move struct {
	Src, Dst string
}

// ReplaceAll moves every staged file over its destination. All sources are
// checked before the first rename, so a missing staged file leaves every
// destination untouched.
func ReplaceAll(moves []Move) error {
	for _, m := range moves {
		if _, err := os.Stat(m.Src); err != nil {
			return fmt.Errorf("stat %s: %w", m.Src, err)
		}
	}
	for _, m := range moves {
		if err := os.Rename(m.Src, m.Dst); err != nil {
			return fmt.Errorf("rename %s: %w", m.Src, err)
		}
	}
	return nil
}

// StagingPath is a hidden sibling of path, so the final rename stays on one
// filesystem.
func StagingPath(path string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".staging")
}

// RemoveIfExists deletes path, ignoring a missing file.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
