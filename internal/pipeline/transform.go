package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
)

// Cleaner turns a fetched record set into a cleaned crash table using the
// configured vocabulary.
type Cleaner struct {
	vocab  *domain.Vocabulary
	logger *slog.Logger
}

// NewCleaner creates a Cleaner.
func NewCleaner(vocab *domain.Vocabulary, logger *slog.Logger) *Cleaner {
	return &Cleaner{vocab: vocab, logger: logger}
}

// Vocabulary returns the vocabulary the cleaner translates into.
func (c *Cleaner) Vocabulary() *domain.Vocabulary {
	return c.vocab
}

// Clean parses every file and cleans the combined rows.
func (c *Cleaner) Clean(set domain.RawRecordSet) (domain.CrashTable, error) {
	parsed, err := domain.ParseRecordSet(set, c.vocab)
	if err != nil {
		return domain.CrashTable{}, err
	}
	for _, f := range parsed.Files {
		c.logger.Debug("file parsed", "file", f.Name, "year", f.Year, "rows", len(f.Rows), "has_header", f.HasHeader)
	}

	table, err := domain.CleanTable(parsed, c.vocab)
	if err != nil {
		return domain.CrashTable{}, err
	}
	s := table.Stats
	c.logger.Info("table cleaned",
		"files", s.Files,
		"raw_rows", s.RawRows,
		"kept", s.Kept,
		"filtered", s.Filtered,
		"dropped", s.DroppedTotal(),
		"coerced", s.Coerced,
		"null_values", s.NullValues,
		"unknown_location", s.UnknownLocation,
	)
	for reason, n := range s.Dropped {
		if n > 0 {
			c.logger.Warn("rows dropped", "reason", reason, "rows", n)
		}
	}
	return table, nil
}

// Enricher fills unknown locations by forward geocoding.
type Enricher struct {
	geocoder domain.Geocoder
	bounds   domain.BBox
	logger   *slog.Logger
}

// NewEnricher creates an Enricher. Pass a nil geocoder to disable geocoding
// enrichment.
func NewEnricher(geocoder domain.Geocoder, bounds domain.BBox, logger *slog.Logger) *Enricher {
	return &Enricher{
		geocoder: geocoder,
		bounds:   bounds,
		logger:   logger,
	}
}

// Enrich geocodes every record with an unknown location and a street.
func (e *Enricher) Enrich(ctx context.Context, t domain.CrashTable) (domain.CrashTable, error) {
	if e == nil || e.geocoder == nil {
		return t, nil
	}
	for i := range t.Records {
		if err := ctx.Err(); err != nil {
			return t, err
		}
		rec, ok := domain.EnrichWithGeocoding(ctx, t.Records[i], e.geocoder, e.bounds, e.logger)
		if !ok {
			continue
		}
		t.Records[i] = rec
		t.Stats.Geocoded++
		t.Stats.UnknownLocation--
	}
	e.logger.Info("geocoding finished", "geocoded", t.Stats.Geocoded, "still_unknown", t.Stats.UnknownLocation)
	return t, nil
}
