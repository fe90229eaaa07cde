package domain

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ParsedRow is one data row keyed by canonical column. Line is the 1-based
// line of the row in its source file.
type ParsedRow struct {
	Line   int
	Values map[string]string
}

// ParsedFile is one source file mapped onto canonical columns.
type ParsedFile struct {
	Name      string
	Year      int
	HasHeader bool
	Columns   []string
	Rows      []ParsedRow
}

// ParsedSet is the raw record set with every file mapped onto canonical
// columns. Columns holds the source columns common to every file.
type ParsedSet struct {
	Files     []ParsedFile
	Columns   []string
	RawRows   int
	Malformed int
}

// ParseRecordSet reads every CSV in the set. Files without a header row take
// their column names from the data dictionary. The result only keeps the
// columns shared by every file, and fails with a SchemaMismatchError when a
// required column is not among them.
func ParseRecordSet(set RawRecordSet, vocab *Vocabulary) (ParsedSet, error) {
	if len(set.Files) == 0 {
		return ParsedSet{}, &ParseError{Err: ErrNoDataFiles}
	}

	var dictHeaders []string
	if set.Dictionary != nil {
		h, err := DictionaryHeaders(*set.Dictionary, vocab.Dictionary)
		if err != nil {
			return ParsedSet{}, err
		}
		dictHeaders = h
	}

	out := ParsedSet{Files: make([]ParsedFile, 0, len(set.Files))}
	for _, f := range set.Files {
		pf, malformed, err := parseFile(f, dictHeaders, vocab)
		if err != nil {
			return ParsedSet{}, err
		}
		if missing := missingColumns(pf.Columns, vocab.RequiredColumns); len(missing) > 0 {
			return ParsedSet{}, &SchemaMismatchError{File: f.Name, Missing: missing}
		}
		out.RawRows += len(pf.Rows) + malformed
		out.Malformed += malformed
		out.Files = append(out.Files, pf)
	}
	out.Columns = commonColumns(out.Files)
	if missing := missingColumns(out.Columns, vocab.RequiredColumns); len(missing) > 0 {
		return ParsedSet{}, &SchemaMismatchError{Missing: missing, Reason: "not shared by every file"}
	}
	return out, nil
}

func parseFile(f RawFile, dictHeaders []string, vocab *Vocabulary) (ParsedFile, int, error) {
	records, lines, err := readCSV(f.Data)
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return ParsedFile{}, 0, &ParseError{File: f.Name, Line: pe.Line, Err: pe.Err}
		}
		return ParsedFile{}, 0, &ParseError{File: f.Name, Err: err}
	}
	pf := ParsedFile{Name: f.Name, Year: f.Year}
	if len(records) == 0 {
		return ParsedFile{}, 0, &ParseError{File: f.Name, Err: errors.New("file is empty")}
	}

	positions, hasHeader := resolveHeader(records[0], vocab)
	firstData := 0
	switch {
	case hasHeader:
		firstData = 1
	case dictHeaders == nil:
		return ParsedFile{}, 0, &SchemaMismatchError{File: f.Name, Reason: "no header row and no data dictionary"}
	default:
		positions, _ = resolveHeaders(dictHeaders, vocab)
	}
	pf.HasHeader = hasHeader

	seen := make(map[string]bool)
	for _, c := range positions {
		if c != "" && !seen[c] {
			seen[c] = true
			pf.Columns = append(pf.Columns, c)
		}
	}
	for _, c := range vocab.FillMissing {
		if !seen[c] {
			seen[c] = true
			pf.Columns = append(pf.Columns, c)
		}
	}

	malformed := 0
	for i := firstData; i < len(records); i++ {
		rec := records[i]
		if len(rec) > len(positions) {
			malformed++
			continue
		}
		values := make(map[string]string, len(pf.Columns))
		for j, c := range positions {
			if c == "" || j >= len(rec) {
				continue
			}
			if _, dup := values[c]; dup {
				continue
			}
			values[c] = rec[j]
		}
		pf.Rows = append(pf.Rows, ParsedRow{Line: lines[i], Values: values})
	}
	return pf, malformed, nil
}

// readCSV decodes UTF-8 or, failing that, ISO-8859-1 bytes. Rows may have any
// number of fields; callers decide what to do with ragged rows.
func readCSV(data []byte) (records [][]string, lines []int, err error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, nil, fmt.Errorf("decode iso-8859-1: %w", err)
		}
		data = decoded
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return records, lines, nil
		}
		if err != nil {
			return nil, nil, err
		}
		line, _ := r.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line)
	}
}

// resolveHeader treats the row as a header when at least half of its cells
// name known columns.
func resolveHeader(row []string, vocab *Vocabulary) ([]string, bool) {
	positions, resolved := resolveHeaders(row, vocab)
	return positions, resolved > 0 && resolved*2 >= len(row)
}

func resolveHeaders(headers []string, vocab *Vocabulary) ([]string, int) {
	positions := make([]string, len(headers))
	resolved := 0
	for i, h := range headers {
		if c, ok := vocab.CanonicalColumn(h); ok {
			positions[i] = c
			resolved++
		}
	}
	return positions, resolved
}

func commonColumns(files []ParsedFile) []string {
	counts := make(map[string]int)
	for _, f := range files {
		for _, c := range f.Columns {
			counts[c]++
		}
	}
	var cols []string
	for _, c := range ColumnOrder {
		if counts[c] == len(files) {
			cols = append(cols, c)
		}
	}
	return cols
}

func missingColumns(have, want []string) []string {
	set := make(map[string]bool, len(have))
	for _, c := range have {
		set[c] = true
	}
	var missing []string
	for _, c := range want {
		if !set[c] {
			missing = append(missing, c)
		}
	}
	sort.Strings(missing)
	return missing
}
