package domain

import (
	"context"
	"log/slog"
)

// EnrichWithGeocoding fills in coordinates for a record whose location is
// unknown but which carries a street. Results outside the region are
// discarded. If geocoder is nil or geocoding fails the record is returned
// unchanged (graceful degradation); the bool reports whether it was geocoded.
func EnrichWithGeocoding(ctx context.Context, rec CrashRecord, geocoder Geocoder, bounds BBox, logger *slog.Logger) (CrashRecord, bool) {
	if geocoder == nil || rec.LocationStatus != LocationUnknown || rec.Street == nil {
		return rec, false
	}
	municipality := ""
	if rec.Municipality != nil {
		municipality = *rec.Municipality
	}

	result, err := geocoder.ForwardGeocode(ctx, *rec.Street, municipality)
	if err != nil {
		logger.Warn("forward geocoding failed",
			"record_id", rec.RecordID,
			"street", *rec.Street,
			"municipality", municipality,
			"error", err,
		)
		return rec, false
	}
	if result.Lat == 0 && result.Lon == 0 {
		return rec, false
	}
	if !bounds.Contains(result.Lat, result.Lon) {
		logger.Debug("geocoding result outside region",
			"record_id", rec.RecordID,
			"lat", result.Lat,
			"lon", result.Lon,
		)
		return rec, false
	}

	lat, lon := result.Lat, result.Lon
	rec.Latitude, rec.Longitude = &lat, &lon
	rec.LocationStatus = LocationGeocoded
	return rec, true
}
