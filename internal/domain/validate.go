package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Validation rule names.
const (
	RuleRequiredColumns   = "required_columns"
	RuleMinRows           = "min_rows"
	RuleCategoricalValues = "categorical_values"
	RuleCoordinateBounds  = "coordinates_in_bounds"
	RuleRequiredValues    = "required_values"
	RuleRowAccounting     = "row_accounting"
)

const maxSamples = 3

// Validate checks the whole table and reports every violated rule. A table
// with zero rows never passes, whatever minRows is.
func Validate(t CrashTable, minRows int, vocab *Vocabulary) error {
	var violations []Violation

	if missing := missingColumns(t.Columns, vocab.RequiredColumns); len(missing) > 0 {
		violations = append(violations, Violation{
			Rule:   RuleRequiredColumns,
			Detail: "missing " + strings.Join(missing, ", "),
		})
	}

	minRows = max(minRows, 1)
	if len(t.Records) < minRows {
		violations = append(violations, Violation{
			Rule:   RuleMinRows,
			Detail: fmt.Sprintf("%d rows, want at least %d", len(t.Records), minRows),
		})
	}

	if v, ok := checkCategories(t, vocab); !ok {
		violations = append(violations, v)
	}

	outside := 0
	for _, r := range t.Records {
		if r.HasLocation() && !vocab.Region.Bounds.Contains(*r.Latitude, *r.Longitude) {
			outside++
		}
	}
	if outside > 0 {
		violations = append(violations, Violation{
			Rule:   RuleCoordinateBounds,
			Detail: fmt.Sprintf("%d rows outside %s", outside, vocab.Region.Name),
		})
	}

	missingID, missingSeverity := 0, 0
	for _, r := range t.Records {
		if r.IncidentID == "" {
			missingID++
		}
		if r.Severity == "" || r.SeverityLevel == 0 {
			missingSeverity++
		}
	}
	if missingID > 0 || missingSeverity > 0 {
		violations = append(violations, Violation{
			Rule:   RuleRequiredValues,
			Detail: fmt.Sprintf("%d rows without incident id, %d without severity", missingID, missingSeverity),
		})
	}

	s := t.Stats
	if accounted := s.Kept + s.Filtered + s.DroppedTotal(); s.RawRows != accounted || s.Kept != len(t.Records) {
		violations = append(violations, Violation{
			Rule: RuleRowAccounting,
			Detail: fmt.Sprintf("raw %d != kept %d + filtered %d + dropped %d (table has %d)",
				s.RawRows, s.Kept, s.Filtered, s.DroppedTotal(), len(t.Records)),
		})
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// checkCategories verifies that strict categorical columns only hold
// canonical values. All offending columns go into one violation.
func checkCategories(t CrashTable, vocab *Vocabulary) (Violation, bool) {
	allowed := map[string]map[string]bool{
		ColSeverity:       setOf(vocab.SeverityNames()),
		ColWeekday:        vocab.WeekdayNames(),
		ColLocationStatus: setOf([]string{LocationKnown, LocationUnknown, LocationGeocoded}),
	}
	for _, col := range vocab.StrictColumns() {
		allowed[col] = vocab.CategoryValues(col)
	}

	bad := make(map[string]map[string]int)
	for _, r := range t.Records {
		for col, values := range allowed {
			v, ok := r.Value(col).(string)
			if !ok || values[v] {
				continue
			}
			if bad[col] == nil {
				bad[col] = make(map[string]int)
			}
			bad[col][v]++
		}
	}
	if len(bad) == 0 {
		return Violation{}, true
	}

	cols := make([]string, 0, len(bad))
	for col := range bad {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	parts := make([]string, 0, len(cols))
	for _, col := range cols {
		values := make([]string, 0, len(bad[col]))
		total := 0
		for v, n := range bad[col] {
			values = append(values, v)
			total += n
		}
		sort.Strings(values)
		if len(values) > maxSamples {
			values = values[:maxSamples]
		}
		parts = append(parts, fmt.Sprintf("%s has %d unknown values (%s)", col, total, strings.Join(quoteAll(values), ", ")))
	}
	return Violation{Rule: RuleCategoricalValues, Detail: strings.Join(parts, "; ")}, false
}

func setOf(values []string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

func quoteAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprintf("%q", v)
	}
	return out
}
