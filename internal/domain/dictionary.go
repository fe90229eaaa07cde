package domain

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// DictionaryHeaders reads the column names of the headerless yearly files from
// the data dictionary workbook: the first column of the first sheet, below the
// sheet's own header row. The configured header missing from the dictionary
// is inserted after its anchor when absent.
func DictionaryHeaders(f RawFile, cfg DictionaryConfig) ([]string, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(f.Data))
	if err != nil {
		return nil, &ParseError{File: f.Name, Err: fmt.Errorf("open workbook: %w", err)}
	}
	defer func() { _ = wb.Close() }()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{File: f.Name, Err: errors.New("workbook has no sheets")}
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, &ParseError{File: f.Name, Err: fmt.Errorf("read sheet %q: %w", sheets[0], err)}
	}

	var headers []string
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		if h := strings.TrimSpace(row[0]); h != "" {
			headers = append(headers, h)
		}
	}
	if len(headers) == 0 {
		return nil, &ParseError{File: f.Name, Err: errors.New("dictionary lists no columns")}
	}
	headers, err = insertHeader(headers, cfg)
	if err != nil {
		return nil, &ParseError{File: f.Name, Err: err}
	}
	return headers, nil
}

func insertHeader(headers []string, cfg DictionaryConfig) ([]string, error) {
	if cfg.InsertHeader == "" {
		return headers, nil
	}
	want := NormalizeHeader(cfg.InsertHeader)
	anchor := -1
	for i, h := range headers {
		n := NormalizeHeader(h)
		if n == want {
			return headers, nil
		}
		if anchor < 0 && n == NormalizeHeader(cfg.InsertAfter) {
			anchor = i
		}
	}
	if anchor < 0 {
		return nil, fmt.Errorf("dictionary has no %q column to insert %q after", cfg.InsertAfter, cfg.InsertHeader)
	}
	out := make([]string, 0, len(headers)+1)
	out = append(out, headers[:anchor+1]...)
	out = append(out, cfg.InsertHeader)
	out = append(out, headers[anchor+1:]...)
	return out, nil
}
