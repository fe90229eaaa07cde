// Package vocabulary loads the canonical vocabulary, thresholds and region of
// interest from YAML. A default vocabulary for the i2ds crash data is embedded.
package vocabulary

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
)

//go:embed default.yaml
var defaultYAML []byte

// Validation errors for vocabulary files.
var (
	ErrNoColumns         = errors.New("columns must map at least one source header")
	ErrNoSeverityLevels  = errors.New("severity.levels must not be empty")
	ErrInvalidSeverity   = errors.New("severity levels need a name and a positive, unique rank")
	ErrUnknownSeverity   = errors.New("severity term maps to an undefined level")
	ErrUnknownColumn     = errors.New("unknown canonical column")
	ErrInvalidBounds     = errors.New("region.bounds must have min < max")
	ErrInvalidMonth      = errors.New("months must map to 1-12")
	ErrNoRequiredColumns = errors.New("required_columns must not be empty")
	ErrMissingFileMarker = errors.New("dictionary.file_marker is required")
	ErrCenterOutOfBounds = errors.New("region.center must lie inside region.bounds")
)

// Default returns the embedded vocabulary.
func Default() (*domain.Vocabulary, error) {
	return Parse(defaultYAML)
}

// Load reads a vocabulary file. An empty path returns the embedded default.
func Load(path string) (*domain.Vocabulary, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary file: %w", err)
	}
	v, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("vocabulary %s: %w", path, err)
	}
	return v, nil
}

// Parse decodes, normalizes and validates a vocabulary document.
func Parse(data []byte) (*domain.Vocabulary, error) {
	var v domain.Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse vocabulary yaml: %w", err)
	}
	v.Normalize()
	if err := Validate(&v); err != nil {
		return nil, fmt.Errorf("invalid vocabulary: %w", err)
	}
	return &v, nil
}

// Validate checks a normalized vocabulary for internal consistency.
func Validate(v *domain.Vocabulary) error {
	if len(v.Columns) == 0 {
		return ErrNoColumns
	}
	if len(v.RequiredColumns) == 0 {
		return ErrNoRequiredColumns
	}
	if v.Dictionary.FileMarker == "" {
		return ErrMissingFileMarker
	}

	b := v.Region.Bounds
	if b.MinLat >= b.MaxLat || b.MinLon >= b.MaxLon {
		return ErrInvalidBounds
	}
	if !b.Contains(v.Region.Center.Lat, v.Region.Center.Lon) {
		return ErrCenterOutOfBounds
	}

	if len(v.Severity.Levels) == 0 {
		return ErrNoSeverityLevels
	}
	levels := make(map[string]bool, len(v.Severity.Levels))
	ranks := make(map[int]bool, len(v.Severity.Levels))
	for _, l := range v.Severity.Levels {
		if l.Name == "" || l.Rank <= 0 || ranks[l.Rank] || levels[l.Name] {
			return fmt.Errorf("%w: %q", ErrInvalidSeverity, l.Name)
		}
		levels[l.Name] = true
		ranks[l.Rank] = true
	}
	for term, level := range v.Severity.Terms {
		if !levels[level] {
			return fmt.Errorf("%w: %q -> %q", ErrUnknownSeverity, term, level)
		}
	}
	for prefix, level := range v.Severity.Prefixes {
		if !levels[level] {
			return fmt.Errorf("%w: prefix %q -> %q", ErrUnknownSeverity, prefix, level)
		}
	}

	for src, c := range v.Columns {
		if !domain.IsSourceColumn(c) {
			return fmt.Errorf("%w: %q -> %q", ErrUnknownColumn, src, c)
		}
	}
	for _, group := range [][]string{v.RequiredColumns, v.FillMissing} {
		for _, c := range group {
			if !domain.IsSourceColumn(c) {
				return fmt.Errorf("%w: %q", ErrUnknownColumn, c)
			}
		}
	}
	for c := range v.Categories {
		if !domain.IsSourceColumn(c) {
			return fmt.Errorf("%w: category %q", ErrUnknownColumn, c)
		}
	}

	for name, m := range v.Months {
		if m < 1 || m > 12 {
			return fmt.Errorf("%w: %q -> %d", ErrInvalidMonth, name, m)
		}
	}
	return nil
}
