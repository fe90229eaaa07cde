package domain

import (
	"sort"
	"strconv"
	"strings"
)

// Vocabulary is the external configuration that drives cleaning and
// validation: column renames, value translations, thresholds and the region
// of interest. Lookups expect normalized keys; call Normalize after decoding.
type Vocabulary struct {
	Region          Region                    `yaml:"region"`
	Dictionary      DictionaryConfig          `yaml:"dictionary"`
	FirstYear       int                       `yaml:"first_year"`
	NullSentinels   []string                  `yaml:"null_sentinels"`
	RequiredColumns []string                  `yaml:"required_columns"`
	FillMissing     []string                  `yaml:"fill_missing"`
	Columns         map[string]string         `yaml:"columns"`
	Months          map[string]int            `yaml:"months"`
	Weekdays        map[string]string         `yaml:"weekdays"`
	Booleans        map[string]bool           `yaml:"booleans"`
	Severity        SeverityConfig            `yaml:"severity"`
	Categories      map[string]CategoryConfig `yaml:"categories"`

	prefixes []severityPrefix
}

// Region is the geographic area of interest.
type Region struct {
	Name        string `yaml:"name"`
	StateFilter string `yaml:"state_filter"`
	Center      LatLon `yaml:"center"`
	Zoom        int    `yaml:"zoom"`
	Bounds      BBox   `yaml:"bounds"`
}

// LatLon is a WGS-84 point.
type LatLon struct {
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
}

// BBox is an inclusive latitude/longitude bounding box.
type BBox struct {
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLon float64 `yaml:"min_lon"`
	MaxLon float64 `yaml:"max_lon"`
}

// Contains reports whether the point lies inside the box.
func (b BBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// DictionaryConfig locates the data dictionary and repairs its header list.
type DictionaryConfig struct {
	FileMarker   string `yaml:"file_marker"`
	InsertAfter  string `yaml:"insert_after"`
	InsertHeader string `yaml:"insert_header"`
}

// SeverityConfig maps source damage levels to canonical severities.
type SeverityConfig struct {
	Levels   []SeverityLevel   `yaml:"levels"`
	Terms    map[string]string `yaml:"terms"`
	Prefixes map[string]string `yaml:"prefixes"`
}

// SeverityLevel is a canonical severity and its rank (1 = least severe).
type SeverityLevel struct {
	Name string `yaml:"name"`
	Rank int    `yaml:"rank"`
}

// CategoryConfig translates one categorical column. Strict columns may only
// hold the translated values.
type CategoryConfig struct {
	Strict bool              `yaml:"strict"`
	Values map[string]string `yaml:"values"`
}

type severityPrefix struct {
	prefix string
	level  string
}

// Normalize rewrites every lookup key into its normalized form and prepares
// the prefix rules (longest first). It is idempotent.
func (v *Vocabulary) Normalize() {
	v.Columns = normalizeKeys(v.Columns, NormalizeHeader)
	v.Weekdays = normalizeKeys(v.Weekdays, NormalizeToken)
	v.Booleans = normalizeKeys(v.Booleans, NormalizeToken)
	v.Severity.Terms = normalizeKeys(v.Severity.Terms, NormalizeToken)

	months := make(map[string]int, len(v.Months))
	for k, m := range v.Months {
		months[NormalizeToken(k)] = m
	}
	v.Months = months

	for name, c := range v.Categories {
		c.Values = normalizeKeys(c.Values, NormalizeToken)
		v.Categories[name] = c
	}

	sentinels := make([]string, 0, len(v.NullSentinels))
	for _, s := range v.NullSentinels {
		sentinels = append(sentinels, strings.TrimSpace(s))
	}
	v.NullSentinels = sentinels

	v.prefixes = v.prefixes[:0]
	for p, level := range v.Severity.Prefixes {
		// Prefix rules keep their trailing space: "sin " must not match "sinaloa".
		p = strings.ToLower(StripAccents(strings.TrimLeft(p, " \t")))
		v.prefixes = append(v.prefixes, severityPrefix{prefix: p, level: level})
	}
	sort.Slice(v.prefixes, func(i, j int) bool {
		if len(v.prefixes[i].prefix) != len(v.prefixes[j].prefix) {
			return len(v.prefixes[i].prefix) > len(v.prefixes[j].prefix)
		}
		return v.prefixes[i].prefix < v.prefixes[j].prefix
	})
}

func normalizeKeys[V any](m map[string]V, fn func(string) string) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[fn(k)] = v
	}
	return out
}

// IsNull reports whether a raw cell is empty or a null sentinel. The second
// result is true only for sentinel matches.
func (v *Vocabulary) IsNull(raw string) (null, sentinel bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return true, false
	}
	for _, n := range v.NullSentinels {
		if s == n {
			return true, true
		}
	}
	return false, false
}

// CanonicalColumn resolves a source header to a canonical column name.
func (v *Vocabulary) CanonicalColumn(header string) (string, bool) {
	h := NormalizeHeader(header)
	if c, ok := v.Columns[h]; ok {
		return c, IsSourceColumn(c)
	}
	if IsSourceColumn(h) {
		return h, true
	}
	return "", false
}

// TranslateSeverity maps a source damage level to a canonical severity and
// its rank. Numeric ranks are accepted as well.
func (v *Vocabulary) TranslateSeverity(raw string) (string, int, bool) {
	s := NormalizeToken(raw)
	if s == "" {
		return "", 0, false
	}
	if level, ok := v.Severity.Terms[s]; ok {
		return v.severityRank(level)
	}
	for _, p := range v.prefixes {
		if strings.HasPrefix(s, p.prefix) {
			return v.severityRank(p.level)
		}
	}
	if name, rank, ok := v.severityRank(s); ok {
		return name, rank, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		for _, l := range v.Severity.Levels {
			if l.Rank == int(f) {
				return l.Name, l.Rank, true
			}
		}
	}
	return "", 0, false
}

func (v *Vocabulary) severityRank(name string) (string, int, bool) {
	for _, l := range v.Severity.Levels {
		if l.Name == name {
			return l.Name, l.Rank, true
		}
	}
	return "", 0, false
}

// SeverityNames lists canonical severities by rank.
func (v *Vocabulary) SeverityNames() []string {
	levels := append([]SeverityLevel(nil), v.Severity.Levels...)
	sort.Slice(levels, func(i, j int) bool { return levels[i].Rank < levels[j].Rank })
	names := make([]string, len(levels))
	for i, l := range levels {
		names[i] = l.Name
	}
	return names
}

// MaxSeverityRank is the highest configured severity rank.
func (v *Vocabulary) MaxSeverityRank() int {
	maxRank := 0
	for _, l := range v.Severity.Levels {
		maxRank = max(maxRank, l.Rank)
	}
	return maxRank
}

// TranslateMonth accepts month numbers and Spanish or English month names.
func (v *Vocabulary) TranslateMonth(raw string) (int, bool) {
	s := NormalizeToken(raw)
	if n, ok := parseWholeNumber(s); ok {
		return n, n >= 1 && n <= 12
	}
	m, ok := v.Months[s]
	return m, ok
}

// TranslateWeekday maps a source weekday to its canonical name.
func (v *Vocabulary) TranslateWeekday(raw string) (string, bool) {
	s := NormalizeToken(raw)
	if w, ok := v.Weekdays[s]; ok {
		return w, true
	}
	for _, w := range v.Weekdays {
		if w == s {
			return w, true
		}
	}
	return "", false
}

// WeekdayNames is the set of canonical weekdays.
func (v *Vocabulary) WeekdayNames() map[string]bool {
	names := make(map[string]bool, 7)
	for _, w := range v.Weekdays {
		names[w] = true
	}
	return names
}

// TranslateBool maps yes/no style flags.
func (v *Vocabulary) TranslateBool(raw string) (bool, bool) {
	b, ok := v.Booleans[NormalizeToken(raw)]
	return b, ok
}

// TranslateCategory maps a categorical value. Unmapped values come back in
// snake_case with ok=false.
func (v *Vocabulary) TranslateCategory(column, raw string) (string, bool) {
	s := NormalizeToken(raw)
	if c, ok := v.Categories[column]; ok {
		if t, ok := c.Values[s]; ok {
			return t, true
		}
		for _, t := range c.Values {
			if t == s {
				return t, true
			}
		}
	}
	return snake(s), false
}

// CategoryValues returns the canonical value set of a categorical column.
func (v *Vocabulary) CategoryValues(column string) map[string]bool {
	c, ok := v.Categories[column]
	if !ok {
		return nil
	}
	values := make(map[string]bool, len(c.Values))
	for _, t := range c.Values {
		values[t] = true
	}
	return values
}

// StrictColumns lists categorical columns whose values must be canonical.
func (v *Vocabulary) StrictColumns() []string {
	var cols []string
	for name, c := range v.Categories {
		if c.Strict {
			cols = append(cols, name)
		}
	}
	sort.Strings(cols)
	return cols
}

func parseWholeNumber(s string) (int, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}
