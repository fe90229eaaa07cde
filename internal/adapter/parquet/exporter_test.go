package parquet

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func testExporter() *Exporter {
	return NewExporter(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func sampleTable() domain.CrashTable {
	return domain.CrashTable{
		Columns: []string{domain.ColRecordID, domain.ColIncidentID, domain.ColLatitude, domain.ColLongitude, domain.ColSeverity, domain.ColSeverityLevel},
		Records: []domain.CrashRecord{
			{
				RecordID:       "crash-bbbb",
				IncidentID:     "B2",
				LocationStatus: domain.LocationUnknown,
				Severity:       "low",
				SeverityLevel:  2,
				SourceFile:     "2020/b.csv",
			},
			{
				RecordID:       "crash-aaaa",
				IncidentID:     "A1",
				Year:           ptr(2019),
				Hour:           ptr(14),
				Date:           ptr("2019-03-05"),
				Municipality:   ptr("Cuauhtemoc"),
				Latitude:       ptr(19.43),
				Longitude:      ptr(-99.13),
				LocationStatus: domain.LocationKnown,
				Severity:       "high",
				SeverityLevel:  4,
				TotalInjured:   ptr(2),
				Hospitalized:   ptr(true),
				SourceFile:     "2019/a.csv",
			},
		},
	}
}

func TestExport_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "crashes.parquet")
	table := sampleTable()

	size, err := testExporter().Export(context.Background(), table, path)
	require.NoError(t, err)
	assert.Positive(t, size)

	got, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, table.Columns, got.Columns)
	require.Len(t, got.Records, 2)
	// Sorted by incident id.
	want := []domain.CrashRecord{table.Records[1], table.Records[0]}
	if diff := cmp.Diff(want, got.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestExport_Deterministic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.parquet")
	b := filepath.Join(dir, "b.parquet")

	_, err := testExporter().Export(context.Background(), sampleTable(), a)
	require.NoError(t, err)
	_, err = testExporter().Export(context.Background(), sampleTable(), b)
	require.NoError(t, err)

	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
}

func TestExport_EmptyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crashes.parquet")

	_, err := testExporter().Export(context.Background(), domain.CrashTable{}, path)

	var we *domain.WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, path, we.Path)
	assert.NoFileExists(t, path)
}

func TestExport_UnwritableDestinationKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("file, not dir"), 0o644))

	_, err := testExporter().Export(context.Background(), sampleTable(), filepath.Join(blocker, "crashes.parquet"))

	var we *domain.WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, domain.StageExport, domain.StageOf(err))

	data, err := os.ReadFile(blocker)
	require.NoError(t, err)
	assert.Equal(t, "file, not dir", string(data))
}

func TestExport_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testExporter().Export(ctx, sampleTable(), filepath.Join(t.TempDir(), "x.parquet"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRead_NotParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.parquet")
	require.NoError(t, os.WriteFile(path, []byte("definitely not parquet"), 0o644))

	_, err := Read(path)
	require.Error(t, err)
}

func TestRead_MissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.parquet"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open export")
}
