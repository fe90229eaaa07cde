package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Pipeline stage names, used in errors, logs and metrics labels.
const (
	StageFetch     = "fetch"
	StageParse     = "parse"
	StageValidate  = "validate"
	StageTransform = "transform"
	StageExport    = "export"
	StagePublish   = "publish"
	StageRender    = "render"
)

// ErrNoDataFiles is returned when a source publishes nothing usable.
var ErrNoDataFiles = errors.New("no data files found")

// RetrievalError reports a network failure, a non-success status or an empty body.
type RetrievalError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *RetrievalError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("retrieve %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("retrieve %s: %v", e.URL, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// Stage reports the failing pipeline stage.
func (e *RetrievalError) Stage() string { return StageFetch }

// ParseError reports raw content whose structure cannot be read.
type ParseError struct {
	File string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("parse %s line %d: %v", e.File, e.Line, e.Err)
	case e.File != "":
		return fmt.Sprintf("parse %s: %v", e.File, e.Err)
	default:
		return fmt.Sprintf("parse: %v", e.Err)
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

// Stage reports the failing pipeline stage.
func (e *ParseError) Stage() string { return StageParse }

// SchemaMismatchError reports expected columns absent from the source.
type SchemaMismatchError struct {
	File    string
	Missing []string
	Reason  string
}

func (e *SchemaMismatchError) Error() string {
	var b strings.Builder
	b.WriteString("schema mismatch")
	if e.File != "" {
		b.WriteString(" in ")
		b.WriteString(e.File)
	}
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, ": missing columns [%s]", strings.Join(e.Missing, ", "))
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

// Stage reports the failing pipeline stage.
func (e *SchemaMismatchError) Stage() string { return StageParse }

// Violation is one failed validation rule.
type Violation struct {
	Rule   string
	Detail string
}

func (v Violation) String() string {
	return v.Rule + ": " + v.Detail
}

// ValidationError enumerates every rule the table violates.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("validation failed (%d rules): %s", len(e.Violations), strings.Join(parts, "; "))
}

// Stage reports the failing pipeline stage.
func (e *ValidationError) Stage() string { return StageValidate }

// Rules lists the names of the violated rules.
func (e *ValidationError) Rules() []string {
	rules := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		rules[i] = v.Rule
	}
	return rules
}

// WriteError reports a disk or permission failure while writing an artifact.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Stage reports the failing pipeline stage.
func (e *WriteError) Stage() string { return StageExport }

// RenderError reports a map view that cannot be produced.
type RenderError struct {
	Attribute string
	Reason    string
	Err       error
}

func (e *RenderError) Error() string {
	msg := fmt.Sprintf("render %q: %s", e.Attribute, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RenderError) Unwrap() error { return e.Err }

// Stage reports the failing pipeline stage.
func (e *RenderError) Stage() string { return StageRender }

// StageOf returns the stage reported by the first error in the chain that
// knows its stage, or "" when none does.
func StageOf(err error) string {
	var staged interface{ Stage() string }
	if errors.As(err, &staged) {
		return staged.Stage()
	}
	return ""
}
