package vocabulary

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
)

func TestDefault(t *testing.T) {
	v, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "Mexico City", v.Region.Name)
	assert.Equal(t, "ciudad", v.Region.StateFilter)
	assert.InDelta(t, 19.4326, v.Region.Center.Lat, 1e-9)
	assert.Equal(t, 10, v.Region.Zoom)
	assert.Equal(t, []string{"none", "low", "medium", "high"}, v.SeverityNames())
	assert.Equal(t, 4, v.MaxSeverityRank())
	assert.Equal(t, []string{"injured_gender"}, v.StrictColumns())

	col, ok := v.CanonicalColumn("Nivel Daño Vehículo")
	assert.True(t, ok)
	assert.Equal(t, "severity", col)

	col, ok = v.CanonicalColumn("daa_numero")
	assert.True(t, ok, "mangled legacy headers are mapped")
	assert.Equal(t, "day_of_month", col)

	_, ok = v.CanonicalColumn("animal")
	assert.False(t, ok)
}

func TestDefault_ColumnKeysAreNormalized(t *testing.T) {
	var raw struct {
		Columns map[string]string `yaml:"columns"`
	}
	require.NoError(t, yaml.Unmarshal(defaultYAML, &raw))

	for key := range raw.Columns {
		assert.Equal(t, key, domain.NormalizeHeader(key), "column key %q can never match a header", key)
	}

	v, err := Default()
	require.NoError(t, err)
	col, ok := v.CanonicalColumn("Mes Reporte")
	assert.True(t, ok)
	assert.Equal(t, "month", col)
}

func TestDefault_Translations(t *testing.T) {
	v, err := Default()
	require.NoError(t, err)

	name, rank, ok := v.TranslateSeverity("Grave")
	assert.True(t, ok)
	assert.Equal(t, "high", name)
	assert.Equal(t, 4, rank)

	name, _, ok = v.TranslateSeverity("Sin daño")
	assert.True(t, ok)
	assert.Equal(t, "none", name)

	_, _, ok = v.TranslateSeverity("Sinaloa")
	assert.False(t, ok, "prefix rules keep their trailing space")

	m, ok := v.TranslateMonth("Septiembre")
	assert.True(t, ok)
	assert.Equal(t, 9, m)

	w, ok := v.TranslateWeekday("Sábado")
	assert.True(t, ok)
	assert.Equal(t, "saturday", w)

	w, ok = v.TranslateWeekday("sunday")
	assert.True(t, ok)
	assert.Equal(t, "sunday", w)

	b, ok := v.TranslateBool("Sí")
	assert.True(t, ok)
	assert.True(t, b)

	null, sentinel := v.IsNull(`\N`)
	assert.True(t, null)
	assert.True(t, sentinel)
}

func TestLoad(t *testing.T) {
	t.Run("empty path uses default", func(t *testing.T) {
		v, err := Load("")
		require.NoError(t, err)
		assert.NotEmpty(t, v.Columns)
	})

	t.Run("custom file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vocab.yaml")
		require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o600))

		v, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "Guadalajara", v.Region.Name)
		col, ok := v.CanonicalColumn("Folio")
		assert.True(t, ok)
		assert.Equal(t, "incident_id", col)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})
}

const minimalYAML = `
region:
  name: Guadalajara
  center: {lat: 20.67, lon: -103.35}
  bounds: {min_lat: 20.4, max_lat: 20.9, min_lon: -103.6, max_lon: -103.1}
dictionary:
  file_marker: diccionario
required_columns: [incident_id, severity]
columns:
  Folio: incident_id
severity:
  levels:
    - {name: low, rank: 1}
    - {name: high, rank: 2}
  terms:
    leve: low
`

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr error
	}{
		{"unknown severity term", func(s string) string { return s + "    grave: critical\n" }, ErrUnknownSeverity},
		{"unknown column", func(s string) string {
			return replaceOnce(s, "  Folio: incident_id", "  Folio: folio_number")
		}, ErrUnknownColumn},
		{"bounds inverted", func(s string) string {
			return replaceOnce(s, "min_lat: 20.4, max_lat: 20.9", "min_lat: 20.9, max_lat: 20.4")
		}, ErrInvalidBounds},
		{"center outside", func(s string) string {
			return replaceOnce(s, "center: {lat: 20.67", "center: {lat: 19.43")
		}, ErrCenterOutOfBounds},
		{"duplicate rank", func(s string) string {
			return replaceOnce(s, "{name: high, rank: 2}", "{name: high, rank: 1}")
		}, ErrInvalidSeverity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.mutate(minimalYAML)))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParse_BadYAML(t *testing.T) {
	_, err := Parse([]byte("region: [unterminated"))
	require.Error(t, err)
}

func replaceOnce(s, old, repl string) string {
	return strings.Replace(s, old, repl, 1)
}
