package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
)

func TestParseRecordSet_HeaderRow(t *testing.T) {
	vocab := testVocab(t)
	body := headerCSV +
		"1001,2018,Enero,5,Viernes,14,Ciudad de México,Cuauhtémoc,Reforma,19.43,-99.15,Medio,Hombre,1\n"

	parsed, err := domain.ParseRecordSet(domain.RawRecordSet{
		Files: []domain.RawFile{csvFile("2018/percances.csv", 2018, body)},
	}, vocab)

	require.NoError(t, err)
	require.Len(t, parsed.Files, 1)
	assert.True(t, parsed.Files[0].HasHeader)
	assert.Equal(t, 1, parsed.RawRows)
	assert.Contains(t, parsed.Columns, domain.ColSeverity)
	assert.Contains(t, parsed.Columns, domain.ColInjuredRole, "fill_missing columns are added")

	row := parsed.Files[0].Rows[0]
	assert.Equal(t, 2, row.Line)
	assert.Equal(t, "1001", row.Values[domain.ColIncidentID])
	assert.Equal(t, "Medio", row.Values[domain.ColSeverity])
	assert.Equal(t, "Cuauhtémoc", row.Values[domain.ColMunicipality])
}

func TestParseRecordSet_Latin1(t *testing.T) {
	vocab := testVocab(t)
	utf8Body := headerCSV +
		"1002,2018,Marzo,9,Sábado,8,Ciudad de México,Álvaro Obregón,Revolución,19.36,-99.19,Sin daño,Mujer,0\n"
	latin1, err := charmap.ISO8859_1.NewEncoder().String(utf8Body)
	require.NoError(t, err)

	parsed, err := domain.ParseRecordSet(domain.RawRecordSet{
		Files: []domain.RawFile{csvFile("2018/latin1.csv", 2018, latin1)},
	}, vocab)

	require.NoError(t, err)
	row := parsed.Files[0].Rows[0]
	assert.Equal(t, "Álvaro Obregón", row.Values[domain.ColMunicipality])
	assert.Equal(t, "Sin daño", row.Values[domain.ColSeverity])
}

func TestParseRecordSet_HeaderlessUsesDictionary(t *testing.T) {
	vocab := testVocab(t)
	dict := dictionaryFile(t,
		"Siniestro", "Año", "Mes Reporte", "Día", "Hora", "Estado", "Ciudad", "Calle",
		"Latitud", "Longitud", "Nivel Daño Vehículo")
	body := "2001,2021,Abril,12,Lunes,9,Ciudad de México,Coyoacán,Av. Universidad,19.35,-99.16,Alto\n"

	parsed, err := domain.ParseRecordSet(domain.RawRecordSet{
		Dictionary: dict,
		Files:      []domain.RawFile{csvFile("2021/percances.csv", 2021, body)},
	}, vocab)

	require.NoError(t, err)
	pf := parsed.Files[0]
	assert.False(t, pf.HasHeader)
	require.Len(t, pf.Rows, 1)
	assert.Equal(t, 1, pf.Rows[0].Line)
	assert.Equal(t, "12", pf.Rows[0].Values[domain.ColDayOfMonth], "Día Numero is inserted after Mes Reporte")
	assert.Equal(t, "Lunes", pf.Rows[0].Values[domain.ColWeekday])
	assert.Equal(t, "Alto", pf.Rows[0].Values[domain.ColSeverity])
}

func TestParseRecordSet_HeaderlessWithoutDictionary(t *testing.T) {
	vocab := testVocab(t)
	body := "2001,2021,Abril,12,Lunes,9,Ciudad de México,Coyoacán,Av. Universidad,19.35,-99.16,Alto\n"

	_, err := domain.ParseRecordSet(domain.RawRecordSet{
		Files: []domain.RawFile{csvFile("2021/percances.csv", 2021, body)},
	}, vocab)

	var schemaErr *domain.SchemaMismatchError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "2021/percances.csv", schemaErr.File)
}

func TestParseRecordSet_MissingRequiredColumn(t *testing.T) {
	vocab := testVocab(t)
	body := "Siniestro,Estado,Latitud,Longitud\n1,Ciudad de México,19.4,-99.1\n"

	_, err := domain.ParseRecordSet(domain.RawRecordSet{
		Files: []domain.RawFile{csvFile("2016/percances.csv", 2016, body)},
	}, vocab)

	var schemaErr *domain.SchemaMismatchError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []string{domain.ColSeverity}, schemaErr.Missing)
	assert.Equal(t, domain.StageParse, domain.StageOf(err))
}

func TestParseRecordSet_CommonColumns(t *testing.T) {
	vocab := testVocab(t)
	a := headerCSV + "1,2017,Enero,1,Domingo,1,Ciudad de México,Tlalpan,Calle 1,19.29,-99.17,Bajo,Hombre,0\n"
	b := "Siniestro,Estado,Latitud,Longitud,Nivel Daño Vehículo\n2,Ciudad de México,19.3,-99.1,Bajo\n"

	parsed, err := domain.ParseRecordSet(domain.RawRecordSet{
		Files: []domain.RawFile{csvFile("2017/a.csv", 2017, a), csvFile("2017/b.csv", 2017, b)},
	}, vocab)

	require.NoError(t, err)
	assert.Equal(t, []string{
		domain.ColIncidentID, domain.ColState, domain.ColLatitude, domain.ColLongitude,
		domain.ColSeverity, domain.ColInjuredRole, domain.ColInjuryLevel,
	}, parsed.Columns)
	assert.Equal(t, 2, parsed.RawRows)
}

func TestParseRecordSet_RaggedRows(t *testing.T) {
	vocab := testVocab(t)
	body := "Siniestro,Estado,Latitud,Longitud,Nivel Daño Vehículo\n" +
		"1,Ciudad de México,19.3,-99.1,Bajo\n" +
		"2,Ciudad de México,19.3,-99.1,Bajo,extra,cells\n" +
		"3,Ciudad de México\n"

	parsed, err := domain.ParseRecordSet(domain.RawRecordSet{
		Files: []domain.RawFile{csvFile("2016/ragged.csv", 2016, body)},
	}, vocab)

	require.NoError(t, err)
	assert.Equal(t, 3, parsed.RawRows)
	assert.Equal(t, 1, parsed.Malformed)
	require.Len(t, parsed.Files[0].Rows, 2)
	assert.Equal(t, "3", parsed.Files[0].Rows[1].Values[domain.ColIncidentID])
	_, ok := parsed.Files[0].Rows[1].Values[domain.ColSeverity]
	assert.False(t, ok, "short rows leave trailing columns unset")
}

func TestParseRecordSet_NoFiles(t *testing.T) {
	_, err := domain.ParseRecordSet(domain.RawRecordSet{}, testVocab(t))

	var parseErr *domain.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.True(t, errors.Is(err, domain.ErrNoDataFiles))
}

func TestParseRecordSet_BrokenDictionary(t *testing.T) {
	_, err := domain.ParseRecordSet(domain.RawRecordSet{
		Dictionary: &domain.RawFile{Name: "diccionario-percances-viales-axa.xlsx", Data: []byte("not a workbook")},
		Files:      []domain.RawFile{csvFile("2021/a.csv", 2021, "1,2")},
	}, testVocab(t))

	var parseErr *domain.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "diccionario-percances-viales-axa.xlsx", parseErr.File)
}

func TestDictionaryHeaders(t *testing.T) {
	dict := dictionaryFile(t, "Siniestro", "Mes Reporte", "Estado")

	headers, err := domain.DictionaryHeaders(*dict, testVocab(t).Dictionary)

	require.NoError(t, err)
	assert.Equal(t, []string{"Siniestro", "Mes Reporte", "Día Numero", "Estado"}, headers)
}
