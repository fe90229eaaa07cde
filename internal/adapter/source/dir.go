package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
)

// DirSource reads source files from a local directory, typically
// <dir>/data-dictionary/*.xlsx and <dir>/<year>/*.csv. Zip archives found in
// the tree are expanded like downloaded ones.
type DirSource struct {
	dir    string
	opts   Options
	logger *slog.Logger
}

// NewDirSource creates a source rooted at dir.
func NewDirSource(dir string, opts Options, logger *slog.Logger) *DirSource {
	return &DirSource{dir: dir, opts: opts, logger: logger}
}

// Fetch walks the directory and classifies every regular file.
func (s *DirSource) Fetch(ctx context.Context) (domain.RawRecordSet, error) {
	c := newCollector(s.dir, s.opts, s.logger)
	err := filepath.WalkDir(s.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.dir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		return c.add(filepath.ToSlash(rel), data)
	})
	if err != nil {
		return domain.RawRecordSet{}, &domain.RetrievalError{URL: s.dir, Err: err}
	}
	return c.result()
}
