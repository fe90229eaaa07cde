// Package source retrieves the raw crash files, either by scraping the
// publisher's download page or by reading a local directory laid out the same
// way the files are published.
package source

import (
	"archive/zip"
	"bytes"
	"cmp"
	"fmt"
	"io"
	"log/slog"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
)

// Options controls how files are classified.
type Options struct {
	// DictionaryMarker identifies the data dictionary by a substring of its file name.
	DictionaryMarker string
	// FirstYear is the earliest year recognised in file names.
	FirstYear int
	// YearFrom and YearTo bound the years kept. Zero YearTo means the current year.
	YearFrom int
	YearTo   int
}

func (o Options) yearRange() (from, to int) {
	from, to = o.YearFrom, o.YearTo
	if from == 0 {
		from = o.FirstYear
	}
	if to == 0 {
		to = domain.CurrentYear()
	}
	return from, to
}

// collector accumulates classified files into a RawRecordSet.
type collector struct {
	opts   Options
	logger *slog.Logger
	set    domain.RawRecordSet
	seen   map[string]bool
}

func newCollector(sourceURL string, opts Options, logger *slog.Logger) *collector {
	return &collector{
		opts:   opts,
		logger: logger,
		set:    domain.RawRecordSet{SourceURL: sourceURL},
		seen:   make(map[string]bool),
	}
}

// add classifies one file. Zip archives are expanded in memory.
func (c *collector) add(name string, data []byte) error {
	if strings.EqualFold(path.Ext(name), ".zip") {
		return c.addZip(name, data)
	}
	c.addFile(name, data)
	return nil
}

func (c *collector) addZip(name string, data []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open archive %s: %w", name, err)
	}
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		member, err := readMember(zf)
		if err != nil {
			return fmt.Errorf("extract %s from %s: %w", zf.Name, name, err)
		}
		c.addFile(zf.Name, member)
	}
	c.logger.Debug("expanded archive", "archive", name, "members", len(zr.File))
	return nil
}

func readMember(zf *zip.File) ([]byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (c *collector) addFile(name string, data []byte) {
	base := path.Base(name)
	if c.seen[name] {
		c.logger.Debug("duplicate file skipped", "file", name)
		return
	}
	c.seen[name] = true

	if c.opts.DictionaryMarker != "" && strings.Contains(strings.ToLower(base), strings.ToLower(c.opts.DictionaryMarker)) {
		if c.set.Dictionary != nil {
			c.logger.Warn("additional data dictionary ignored", "file", name)
			return
		}
		c.set.Dictionary = &domain.RawFile{Name: base, Data: data}
		return
	}

	if !strings.EqualFold(path.Ext(base), ".csv") {
		c.logger.Debug("non-csv file skipped", "file", name)
		return
	}

	year := extractYear(base, c.opts.FirstYear)
	if year == 0 {
		year = extractYear(path.Dir(name), c.opts.FirstYear)
	}
	if year == 0 {
		c.logger.Warn("could not determine year for file", "file", name)
		return
	}
	if from, to := c.opts.yearRange(); year < from || year > to {
		c.logger.Debug("file outside year range skipped", "file", name, "year", year)
		return
	}

	c.set.Files = append(c.set.Files, domain.RawFile{Name: name, Year: year, Data: data})
}

// result returns the collected set, or a RetrievalError when no data file was kept.
func (c *collector) result() (domain.RawRecordSet, error) {
	if len(c.set.Files) == 0 {
		return domain.RawRecordSet{}, &domain.RetrievalError{URL: c.set.SourceURL, Err: domain.ErrNoDataFiles}
	}
	slices.SortFunc(c.set.Files, func(a, b domain.RawFile) int {
		return cmp.Or(cmp.Compare(a.Year, b.Year), cmp.Compare(a.Name, b.Name))
	})
	return c.set, nil
}

// extractYear returns the earliest year in [firstYear, current year] that
// appears in s, or zero.
func extractYear(s string, firstYear int) int {
	if firstYear <= 0 {
		firstYear = 2015
	}
	for y := firstYear; y <= domain.CurrentYear(); y++ {
		if strings.Contains(s, strconv.Itoa(y)) {
			return y
		}
	}
	return 0
}

// isDataLink reports whether an href points at a downloadable source file.
func isDataLink(href string) bool {
	h := strings.ToLower(href)
	for _, ext := range []string{".zip", ".xlsx", ".csv"} {
		if strings.Contains(h, ext) {
			return true
		}
	}
	return false
}
