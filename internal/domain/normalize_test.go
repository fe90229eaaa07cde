package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Nivel Daño Vehículo", "nivel_dano_vehiculo"},
		{"Mes Reporte", "mes"},
		{"Día Numero", "dia_numero"},
		{"  Código Postal ", "codigo_postal"},
		{"Año", "ano"},
		{"Tipo de Percance", "tipo_de_percance"},
		{"\ufeffSiniestro", "siniestro"},
		{"Punto (Impacto)", "punto_impacto"},
		{"latitude", "latitude"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeHeader(tt.in))
		})
	}
}

func TestNormalizeToken(t *testing.T) {
	assert.Equal(t, "sin dano", NormalizeToken("  SIN   DAÑO "))
	assert.Equal(t, "miercoles", NormalizeToken("Miércoles"))
	assert.Empty(t, NormalizeToken("   "))
}

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, "lateral_trasero_izq", SnakeCase("Lateral Trasero Izq."))
	assert.Equal(t, "camion_de_carga", SnakeCase("Camión de carga"))
	assert.Empty(t, SnakeCase("---"))
}

func TestStripAccents(t *testing.T) {
	assert.Equal(t, "Alvaro Obregon", StripAccents("Álvaro Obregón"))
	assert.Equal(t, "Benito Juarez", StripAccents("Benito Juárez"))
	assert.Equal(t, "plain", StripAccents("plain"))
}

func TestParseHour(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"7", 7, true},
		{"14:30", 14, true},
		{"23:59:59", 23, true},
		{"1430", 14, true},
		{"0", 0, true},
		{"24", 0, false},
		{"1475", 0, false},
		{"noche", 0, false},
		{"-1", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseHour(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDeriveDate(t *testing.T) {
	y, m, d := 2021, 2, 28
	got := deriveDate(&y, &m, &d)
	require.NotNil(t, got)
	assert.Equal(t, "2021-02-28", *got)

	bad := 30
	assert.Nil(t, deriveDate(&y, &m, &bad), "February 30th is not a date")
	assert.Nil(t, deriveDate(nil, &m, &d))
}

func TestGenerateRecordID(t *testing.T) {
	id1 := generateRecordID("A1", "2021/percances.csv", 2)
	id2 := generateRecordID("A1", "2021/percances.csv", 2)
	id3 := generateRecordID("A1", "2021/percances.csv", 3)

	assert.Equal(t, id1, id2, "same inputs produce the same id")
	assert.NotEqual(t, id1, id3, "same incident on another line gets a new id")
	assert.True(t, strings.HasPrefix(id1, "crash-"))
	assert.Len(t, id1, len("crash-")+16)
}

func TestInsertHeader(t *testing.T) {
	cfg := DictionaryConfig{InsertAfter: "Mes Reporte", InsertHeader: "Día Numero"}

	got, err := insertHeader([]string{"Siniestro", "Año", "Mes Reporte", "Día"}, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"Siniestro", "Año", "Mes Reporte", "Día Numero", "Día"}, got)

	t.Run("already present", func(t *testing.T) {
		in := []string{"Mes Reporte", "Dia Numero"}
		got, err := insertHeader(in, cfg)
		require.NoError(t, err)
		assert.Equal(t, in, got)
	})

	t.Run("missing anchor", func(t *testing.T) {
		_, err := insertHeader([]string{"Siniestro"}, cfg)
		require.Error(t, err)
	})
}

func TestHourRange(t *testing.T) {
	day := HourRange{From: 7, To: 19}
	assert.True(t, day.Contains(7))
	assert.True(t, day.Contains(19))
	assert.False(t, day.Contains(20))

	night := HourRange{From: 22, To: 3}
	assert.True(t, night.Contains(23))
	assert.True(t, night.Contains(2))
	assert.False(t, night.Contains(12))
}
