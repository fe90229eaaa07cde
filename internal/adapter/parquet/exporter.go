// Package parquet writes the cleaned crash table as a snappy-compressed
// Parquet file and reads it back for rendering and integrity checks.
package parquet

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	parquetgo "github.com/parquet-go/parquet-go"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
	"github.com/couchcryptid/crash-data-etl/internal/fsutil"
)

// ColumnsKey is the key/value metadata entry listing the table's columns.
const ColumnsKey = "crash.columns"

const readBatch = 1024

var errEmptyTable = errors.New("table has no records")

// Exporter writes crash tables to Parquet files.
type Exporter struct {
	logger *slog.Logger
}

// NewExporter creates an exporter.
func NewExporter(logger *slog.Logger) *Exporter {
	return &Exporter{logger: logger}
}

// Export atomically replaces path with the table and returns the file size.
// Rows are ordered by incident id then record id; the file carries no
// wall-clock metadata so re-exporting the same table is byte-identical.
func (e *Exporter) Export(ctx context.Context, t domain.CrashTable, path string) (int64, error) {
	if len(t.Records) == 0 {
		return 0, &domain.WriteError{Path: path, Err: errEmptyTable}
	}
	if err := ctx.Err(); err != nil {
		return 0, &domain.WriteError{Path: path, Err: err}
	}

	records := slices.Clone(t.Records)
	slices.SortFunc(records, func(a, b domain.CrashRecord) int {
		return cmp.Or(cmp.Compare(a.IncidentID, b.IncidentID), cmp.Compare(a.RecordID, b.RecordID))
	})

	err := fsutil.WriteFileAtomic(path, 0o644, func(w io.Writer) error {
		return encode(w, records, t.Columns)
	})
	if err != nil {
		return 0, &domain.WriteError{Path: path, Err: err}
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, &domain.WriteError{Path: path, Err: err}
	}
	e.logger.Info("table exported", "path", path, "rows", len(records), "bytes", info.Size())
	return info.Size(), nil
}

func encode(w io.Writer, records []domain.CrashRecord, columns []string) error {
	pw := parquetgo.NewGenericWriter[domain.CrashRecord](w,
		parquetgo.Compression(&parquetgo.Snappy),
		parquetgo.KeyValueMetadata(ColumnsKey, strings.Join(columns, ",")),
	)
	if _, err := pw.Write(records); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

// Read is the package-level Read, so an Exporter can serve both directions.
func (e *Exporter) Read(path string) (domain.ExportedTable, error) {
	return Read(path)
}

// Read loads an exported file.
func Read(path string) (domain.ExportedTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.ExportedTable{}, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return domain.ExportedTable{}, fmt.Errorf("stat export: %w", err)
	}
	pf, err := parquetgo.OpenFile(f, info.Size())
	if err != nil {
		return domain.ExportedTable{}, fmt.Errorf("open parquet %s: %w", path, err)
	}

	table := domain.ExportedTable{Path: path}
	if cols, ok := pf.Lookup(ColumnsKey); ok && cols != "" {
		table.Columns = strings.Split(cols, ",")
	}

	r := parquetgo.NewGenericReader[domain.CrashRecord](f)
	defer r.Close()

	table.Records = make([]domain.CrashRecord, 0, r.NumRows())
	buf := make([]domain.CrashRecord, readBatch)
	for {
		// Nil out pointers so decoded values are not written into records already appended.
		clear(buf)
		n, err := r.Read(buf)
		table.Records = append(table.Records, buf[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.ExportedTable{}, fmt.Errorf("read rows: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return table, nil
}
