// Command validate performs integrity checks over an exported crash file:
// schema metadata, value domains, location consistency, ordering and, when a
// source directory is given, parity with a fresh clean of that source.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -export cleaned_crash_data.parquet \
//	  -source-dir testdata/source
package main

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	gocmp "github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/couchcryptid/crash-data-etl/internal/adapter/parquet"
	"github.com/couchcryptid/crash-data-etl/internal/adapter/source"
	"github.com/couchcryptid/crash-data-etl/internal/domain"
	"github.com/couchcryptid/crash-data-etl/internal/vocabulary"
)

// maxErrors caps the detail printed per phase.
const maxErrors = 20

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	exportPath := flag.String("export", "cleaned_crash_data.parquet", "path to the exported Parquet file")
	sourceDir := flag.String("source-dir", "", "optional source directory to re-clean and compare against")
	vocabFile := flag.String("vocabulary", "", "vocabulary YAML (default: embedded)")
	flag.Parse()

	os.Exit(run(*exportPath, *sourceDir, *vocabFile))
}

func run(exportPath, sourceDir, vocabFile string) int {
	fmt.Println("=== Crash Export Integrity Validation ===")
	fmt.Println()

	vocab, err := loadVocabulary(vocabFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load vocabulary: %v\n", err)
		return 1
	}
	exported, err := parquet.Read(exportPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read export: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateSchema(exported, vocab),
		validateValues(exported, vocab),
		validateLocations(exported, vocab),
		validateOrdering(exported),
	}
	if sourceDir != "" {
		phases = append(phases, validateSourceParity(exported, sourceDir, vocab))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d in %s (%d columns)\n", len(exported.Records), exportPath, len(exported.Columns))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == maxErrors {
				fmt.Printf("  ... %d more\n", len(p.errors)-maxErrors)
				break
			}
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadVocabulary(path string) (*domain.Vocabulary, error) {
	if path == "" {
		return vocabulary.Default()
	}
	return vocabulary.Load(path)
}

// ── Phase 1: Schema ──
// The file lists its columns and every required column is among them.

func validateSchema(t domain.ExportedTable, vocab *domain.Vocabulary) *phase {
	p := &phase{name: "Phase 1: Schema (column metadata)"}

	if len(t.Columns) == 0 {
		p.errorf("export has no %q metadata", parquet.ColumnsKey)
		return p
	}
	for _, col := range vocab.RequiredColumns {
		if !t.HasColumn(col) {
			p.errorf("required column %q missing", col)
		}
	}
	for _, col := range []string{domain.ColRecordID, domain.ColLocationStatus, domain.ColSeverityLevel} {
		if !t.HasColumn(col) {
			p.errorf("derived column %q missing", col)
		}
	}
	if len(t.Records) == 0 {
		p.errorf("export has no rows")
	}
	return p
}

// ── Phase 2: Values ──
// Every value is in its canonical domain.

func validateValues(t domain.ExportedTable, vocab *domain.Vocabulary) *phase {
	p := &phase{name: "Phase 2: Values (canonical domains)"}

	ranks := map[string]int{}
	for _, l := range vocab.Severity.Levels {
		ranks[l.Name] = l.Rank
	}
	weekdays := vocab.WeekdayNames()
	strict := map[string]map[string]bool{}
	for _, col := range vocab.StrictColumns() {
		strict[col] = vocab.CategoryValues(col)
	}

	for i := range t.Records {
		r := &t.Records[i]
		if r.IncidentID == "" {
			p.errorf("record %s: empty incident id", r.RecordID)
		}
		if rank, ok := ranks[r.Severity]; !ok {
			p.errorf("record %s: severity %q not canonical", r.RecordID, r.Severity)
		} else if rank != r.SeverityLevel {
			p.errorf("record %s: severity %q has level %d, want %d", r.RecordID, r.Severity, r.SeverityLevel, rank)
		}
		if r.Weekday != nil && !weekdays[*r.Weekday] {
			p.errorf("record %s: weekday %q not canonical", r.RecordID, *r.Weekday)
		}
		if r.Hour != nil && (*r.Hour < 0 || *r.Hour > 23) {
			p.errorf("record %s: hour %d outside 0-23", r.RecordID, *r.Hour)
		}
		for col, values := range strict {
			if v, ok := r.Value(col).(string); ok && !values[v] {
				p.errorf("record %s: %s %q not canonical", r.RecordID, col, v)
			}
		}
		checkDate(p, r)
	}
	return p
}

func checkDate(p *phase, r *domain.CrashRecord) {
	if r.Date == nil {
		return
	}
	d, err := time.Parse(time.DateOnly, *r.Date)
	if err != nil {
		p.errorf("record %s: date %q: %v", r.RecordID, *r.Date, err)
		return
	}
	if r.Year != nil && d.Year() != *r.Year {
		p.errorf("record %s: date %s disagrees with year %d", r.RecordID, *r.Date, *r.Year)
	}
	if r.Month != nil && int(d.Month()) != *r.Month {
		p.errorf("record %s: date %s disagrees with month %d", r.RecordID, *r.Date, *r.Month)
	}
	if r.DayOfMonth != nil && d.Day() != *r.DayOfMonth {
		p.errorf("record %s: date %s disagrees with day %d", r.RecordID, *r.Date, *r.DayOfMonth)
	}
}

// ── Phase 3: Locations ──
// Placed records sit inside the region; unknown ones carry no coordinates.

func validateLocations(t domain.ExportedTable, vocab *domain.Vocabulary) *phase {
	p := &phase{name: "Phase 3: Locations (region bounds)"}
	bounds := vocab.Region.Bounds

	for i := range t.Records {
		r := &t.Records[i]
		switch r.LocationStatus {
		case domain.LocationKnown, domain.LocationGeocoded:
			if r.Latitude == nil || r.Longitude == nil {
				p.errorf("record %s: %s location without coordinates", r.RecordID, r.LocationStatus)
				continue
			}
			if !bounds.Contains(*r.Latitude, *r.Longitude) {
				p.errorf("record %s: (%g, %g) outside %s", r.RecordID, *r.Latitude, *r.Longitude, vocab.Region.Name)
			}
		case domain.LocationUnknown:
			if r.Latitude != nil || r.Longitude != nil {
				p.errorf("record %s: unknown location carries coordinates", r.RecordID)
			}
		default:
			p.errorf("record %s: location status %q", r.RecordID, r.LocationStatus)
		}
	}
	return p
}

// ── Phase 4: Ordering ──
// Record ids are unique and rows are sorted by incident id then record id.

func validateOrdering(t domain.ExportedTable) *phase {
	p := &phase{name: "Phase 4: Ordering (unique, sorted)"}

	seen := make(map[string]bool, len(t.Records))
	for i := range t.Records {
		id := t.Records[i].RecordID
		if seen[id] {
			p.errorf("duplicate record id %s", id)
		}
		seen[id] = true
	}
	sorted := slices.IsSortedFunc(t.Records, func(a, b domain.CrashRecord) int {
		return cmp.Or(cmp.Compare(a.IncidentID, b.IncidentID), cmp.Compare(a.RecordID, b.RecordID))
	})
	if !sorted {
		p.errorf("rows are not ordered by incident id, record id")
	}
	return p
}

// ── Phase 5: Source Parity ──
// Re-cleaning the source yields the exported rows. Geocoded coordinates are
// only in the export, so location fields are ignored for those rows.

func validateSourceParity(t domain.ExportedTable, dir string, vocab *domain.Vocabulary) *phase {
	p := &phase{name: "Phase 5: Source Parity (re-clean)"}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	src := source.NewDirSource(dir, source.Options{
		DictionaryMarker: vocab.Dictionary.FileMarker,
		FirstYear:        vocab.FirstYear,
	}, logger)
	set, err := src.Fetch(context.Background())
	if err != nil {
		p.errorf("fetch source: %v", err)
		return p
	}
	parsed, err := domain.ParseRecordSet(set, vocab)
	if err != nil {
		p.errorf("parse source: %v", err)
		return p
	}
	cleaned, err := domain.CleanTable(parsed, vocab)
	if err != nil {
		p.errorf("clean source: %v", err)
		return p
	}

	if len(cleaned.Records) != len(t.Records) {
		p.errorf("row count: source cleans to %d, export has %d", len(cleaned.Records), len(t.Records))
	}

	want := make(map[string]domain.CrashRecord, len(cleaned.Records))
	for _, r := range cleaned.Records {
		want[r.RecordID] = r
	}
	ignoreLocation := cmpopts.IgnoreFields(domain.CrashRecord{}, "Latitude", "Longitude", "LocationStatus")
	for _, got := range t.Records {
		w, ok := want[got.RecordID]
		if !ok {
			p.errorf("record %s not produced by the source", got.RecordID)
			continue
		}
		var diff string
		if got.LocationStatus == domain.LocationGeocoded {
			diff = gocmp.Diff(w, got, ignoreLocation)
		} else {
			diff = gocmp.Diff(w, got)
		}
		if diff != "" {
			p.errorf("record %s differs (-source +export):\n%s", got.RecordID, diff)
		}
	}
	return p
}
