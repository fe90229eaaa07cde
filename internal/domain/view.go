package domain

import (
	"fmt"
	"time"
)

// ViewAttributes are the columns a map view can encode as colour, mapped to
// whether the attribute is numeric (continuous ramp) or categorical.
var ViewAttributes = map[string]bool{
	ColSeverityLevel: true,
	ColTotalInjured:  true,
	ColHour:          true,
	ColSeverity:      false,
	ColInjuredGender: false,
	ColImpactPoint:   false,
	ColMunicipality:  false,
	ColCrashType:     false,
}

// HourRange is an inclusive range of hours. From > To wraps past midnight
// (22-3 covers 22:00 to 03:59).
type HourRange struct {
	From int
	To   int
}

// Contains reports whether h falls inside the range.
func (r HourRange) Contains(h int) bool {
	if r.From <= r.To {
		return h >= r.From && h <= r.To
	}
	return h >= r.From || h <= r.To
}

// ViewSpec selects which attribute to colour by and which crashes to show.
// Since and Until are inclusive calendar dates; zero values leave the window
// open.
type ViewSpec struct {
	Attribute   string
	MinSeverity int
	Since       time.Time
	Until       time.Time
	Hours       *HourRange
}

// CheckView validates a view against the attribute set and, when hasColumn is
// non-nil, against the columns present in the export.
func CheckView(spec ViewSpec, hasColumn func(string) bool) error {
	if _, ok := ViewAttributes[spec.Attribute]; !ok {
		return &RenderError{Attribute: spec.Attribute, Reason: "attribute is not supported for map views"}
	}
	if hasColumn != nil && !hasColumn(spec.Attribute) {
		return &RenderError{Attribute: spec.Attribute, Reason: "attribute not present in export"}
	}
	if spec.MinSeverity < 0 || spec.MinSeverity > 4 {
		return &RenderError{Attribute: spec.Attribute, Reason: fmt.Sprintf("min severity %d outside 0-4", spec.MinSeverity)}
	}
	if h := spec.Hours; h != nil && (h.From < 0 || h.From > 23 || h.To < 0 || h.To > 23) {
		return &RenderError{Attribute: spec.Attribute, Reason: fmt.Sprintf("hour range %d-%d outside 0-23", h.From, h.To)}
	}
	if !spec.Since.IsZero() && !spec.Until.IsZero() && spec.Until.Before(spec.Since) {
		return &RenderError{Attribute: spec.Attribute, Reason: "until is before since"}
	}
	if (!spec.Since.IsZero() || !spec.Until.IsZero()) && hasColumn != nil && !hasColumn(ColDate) {
		return &RenderError{Attribute: spec.Attribute, Reason: "date window requested but export has no date column"}
	}
	if spec.Hours != nil && hasColumn != nil && !hasColumn(ColHour) {
		return &RenderError{Attribute: spec.Attribute, Reason: "hour window requested but export has no hour column"}
	}
	return nil
}

// FilterForView keeps placeable records at or above the minimum severity,
// inside the time window and with a value for the view attribute.
func FilterForView(records []CrashRecord, spec ViewSpec) []CrashRecord {
	var out []CrashRecord
	for _, r := range records {
		if !r.HasLocation() || r.SeverityLevel < spec.MinSeverity {
			continue
		}
		if r.Value(spec.Attribute) == nil {
			continue
		}
		if !inDateWindow(r, spec) {
			continue
		}
		if spec.Hours != nil && (r.Hour == nil || !spec.Hours.Contains(*r.Hour)) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func inDateWindow(r CrashRecord, spec ViewSpec) bool {
	if spec.Since.IsZero() && spec.Until.IsZero() {
		return true
	}
	if r.Date == nil {
		return false
	}
	d, err := time.Parse(time.DateOnly, *r.Date)
	if err != nil {
		return false
	}
	if !spec.Since.IsZero() && d.Before(truncateDay(spec.Since)) {
		return false
	}
	if !spec.Until.IsZero() && d.After(truncateDay(spec.Until)) {
		return false
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MapArtifact is a rendered map view, built in memory before it is written.
type MapArtifact struct {
	Path      string
	Attribute string
	Features  int
	HTML      []byte
}
