package mapview

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Viridis control points, evenly spaced from 0 to 1.
var viridis = []colorful.Color{
	mustHex("#440154"),
	mustHex("#482878"),
	mustHex("#3e4989"),
	mustHex("#31688e"),
	mustHex("#26828e"),
	mustHex("#1f9e89"),
	mustHex("#35b779"),
	mustHex("#6ece58"),
	mustHex("#b5de2b"),
	mustHex("#fde725"),
}

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(fmt.Sprintf("mapview: bad palette colour %q: %v", s, err))
	}
	return c
}

// qualitative is the tab10 palette, cycled when a column has more values.
var qualitative = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// legendStops is the number of labelled swatches on a continuous legend.
const legendStops = 5

type legendEntry struct {
	Label string
	Color string
}

// viridisAt maps t in [0,1] onto the ramp.
func viridisAt(t float64) string {
	t = math.Max(0, math.Min(1, t))
	pos := t * float64(len(viridis)-1)
	i := int(math.Floor(pos))
	if i >= len(viridis)-1 {
		return viridis[len(viridis)-1].Hex()
	}
	return viridis[i].BlendLab(viridis[i+1], pos-float64(i)).Clamped().Hex()
}

// colorScale assigns a colour to every attribute value.
type colorScale interface {
	color(v any) string
	legend() []legendEntry
}

type continuousScale struct {
	lo, hi float64
}

func newContinuousScale(values []any) continuousScale {
	s := continuousScale{lo: math.Inf(1), hi: math.Inf(-1)}
	for _, v := range values {
		f, ok := toFloat(v)
		if !ok {
			continue
		}
		s.lo = math.Min(s.lo, f)
		s.hi = math.Max(s.hi, f)
	}
	return s
}

func (s continuousScale) position(f float64) float64 {
	if s.hi <= s.lo {
		return 0.5
	}
	return (f - s.lo) / (s.hi - s.lo)
}

func (s continuousScale) color(v any) string {
	f, _ := toFloat(v)
	return viridisAt(s.position(f))
}

func (s continuousScale) legend() []legendEntry {
	if s.hi <= s.lo {
		return []legendEntry{{Label: formatNumber(s.lo), Color: viridisAt(0.5)}}
	}
	entries := make([]legendEntry, legendStops)
	for i := range legendStops {
		t := float64(i) / float64(legendStops-1)
		entries[i] = legendEntry{
			Label: formatNumber(s.lo + t*(s.hi-s.lo)),
			Color: viridisAt(t),
		}
	}
	return entries
}

type categoricalScale struct {
	order  []string
	colors map[string]string
}

func newCategoricalScale(values []any) categoricalScale {
	s := categoricalScale{colors: make(map[string]string)}
	for _, v := range values {
		label := formatValue(v)
		if _, ok := s.colors[label]; !ok {
			s.order = append(s.order, label)
			s.colors[label] = ""
		}
	}
	slices.Sort(s.order)
	for i, label := range s.order {
		s.colors[label] = qualitative[i%len(qualitative)]
	}
	return s
}

func (s categoricalScale) color(v any) string {
	return s.colors[formatValue(v)]
}

func (s categoricalScale) legend() []legendEntry {
	entries := make([]legendEntry, len(s.order))
	for i, label := range s.order {
		entries[i] = legendEntry{Label: label, Color: s.colors[label]}
	}
	return entries
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'f', 1, 64)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return formatNumber(x)
	default:
		return fmt.Sprint(x)
	}
}
