package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorStages(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		err   error
		stage string
		msg   string
	}{
		{&RetrievalError{URL: "https://i2ds.org/datos", StatusCode: 503}, StageFetch, "retrieve https://i2ds.org/datos: unexpected status 503"},
		{&RetrievalError{URL: "https://i2ds.org/datos", Err: cause}, StageFetch, "retrieve https://i2ds.org/datos: boom"},
		{&ParseError{File: "2021/a.csv", Line: 7, Err: cause}, StageParse, "parse 2021/a.csv line 7: boom"},
		{&SchemaMismatchError{File: "2021/a.csv", Missing: []string{"latitude", "severity"}}, StageParse, "schema mismatch in 2021/a.csv: missing columns [latitude, severity]"},
		{&ValidationError{Violations: []Violation{{Rule: RuleMinRows, Detail: "0 rows, want at least 1"}}}, StageValidate, "validation failed (1 rules): min_rows: 0 rows, want at least 1"},
		{&WriteError{Path: "/data/crashes.parquet", Err: cause}, StageExport, "write /data/crashes.parquet: boom"},
		{&RenderError{Attribute: "colour", Reason: "attribute is not supported for map views"}, StageRender, `render "colour": attribute is not supported for map views`},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.msg, tt.err.Error())
			assert.Equal(t, tt.stage, StageOf(fmt.Errorf("run: %w", tt.err)))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("export: %w", &WriteError{Path: "x", Err: cause})

	assert.ErrorIs(t, err, cause)
	assert.Empty(t, StageOf(cause))
}
