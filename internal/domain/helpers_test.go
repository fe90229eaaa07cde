package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
	"github.com/couchcryptid/crash-data-etl/internal/vocabulary"
)

const headerCSV = "Siniestro,Año,Mes,Día Numero,Día,Hora,Estado,Ciudad Municipio,Calle,Latitud,Longitud,Nivel Daño Vehículo,Genero Lesionado,Total Lesionados\n"

func testVocab(t *testing.T) *domain.Vocabulary {
	t.Helper()
	v, err := vocabulary.Default()
	require.NoError(t, err)
	return v
}

func csvFile(name string, year int, body string) domain.RawFile {
	return domain.RawFile{Name: name, Year: year, Data: []byte(body)}
}

// dictionaryFile builds a data dictionary workbook listing the given headers
// below a title row, the way the institute publishes it.
func dictionaryFile(t *testing.T, headers ...string) *domain.RawFile {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "A1", "Campo"))
	require.NoError(t, f.SetCellValue(sheet, "B1", "Descripción"))
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue(sheet, cell, h))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return &domain.RawFile{Name: "diccionario-percances-viales-axa-2023.xlsx", Data: buf.Bytes()}
}

func parseAndClean(t *testing.T, set domain.RawRecordSet, vocab *domain.Vocabulary) domain.CrashTable {
	t.Helper()
	parsed, err := domain.ParseRecordSet(set, vocab)
	require.NoError(t, err)
	table, err := domain.CleanTable(parsed, vocab)
	require.NoError(t, err)
	return table
}

func findIncident(t *testing.T, table domain.CrashTable, id string) domain.CrashRecord {
	t.Helper()
	for _, r := range table.Records {
		if r.IncidentID == id {
			return r
		}
	}
	require.Failf(t, "incident not found", "incident %q not in table", id)
	return domain.CrashRecord{}
}
