package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripAccents folds accented letters to their ASCII base ("Daño" -> "Dano").
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeToken lower-cases, trims, strips accents and collapses inner
// whitespace. Vocabulary lookups compare normalized tokens.
func NormalizeToken(s string) string {
	s = StripAccents(strings.ToLower(strings.TrimSpace(s)))
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeHeader turns a source column header into an ASCII snake_case name:
// "Nivel Daño Vehículo" -> "nivel_dano_vehiculo", "Mes Reporte" -> "mes".
func NormalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ReplaceAll(NormalizeToken(h), " ", "_")
	h = strings.ReplaceAll(h, "_reporte", "")
	return snake(h)
}

// SnakeCase converts a free-text categorical value into the snake_case form
// used for values the vocabulary does not map.
func SnakeCase(s string) string {
	return snake(NormalizeToken(s))
}

// snake keeps [a-z0-9], replaces every other run with a single underscore and
// trims underscores at both ends.
func snake(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}
