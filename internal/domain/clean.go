package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CleanTable converts parsed rows into crash records: nulls are normalized,
// values are coerced and translated, rows outside the state filter are
// filtered and rows without an incident id or a usable severity are dropped.
// Stats account for every raw row.
func CleanTable(parsed ParsedSet, vocab *Vocabulary) (CrashTable, error) {
	stateFilter := NormalizeToken(vocab.Region.StateFilter)
	if stateFilter != "" && !slices.Contains(parsed.Columns, ColState) {
		return CrashTable{}, &SchemaMismatchError{
			Missing: []string{ColState},
			Reason:  fmt.Sprintf("state filter %q needs a state column", vocab.Region.StateFilter),
		}
	}

	stats := Stats{
		Files:   len(parsed.Files),
		RawRows: parsed.RawRows,
		Dropped: map[string]int{},
	}
	if parsed.Malformed > 0 {
		stats.Dropped[DropMalformedRow] = parsed.Malformed
	}

	c := cleaner{vocab: vocab, stats: &stats}
	var records []CrashRecord
	for _, f := range parsed.Files {
		for _, row := range f.Rows {
			rec, reason, ok := c.cleanRow(f.Name, row)
			switch {
			case reason != "":
				stats.Dropped[reason]++
			case !ok:
				stats.Filtered++
			default:
				records = append(records, rec)
			}
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].IncidentID != records[j].IncidentID {
			return records[i].IncidentID < records[j].IncidentID
		}
		return records[i].RecordID < records[j].RecordID
	})
	stats.Kept = len(records)

	return CrashTable{
		Columns: tableColumns(parsed.Columns),
		Records: records,
		Stats:   stats,
	}, nil
}

// tableColumns adds the derived columns to the shared source columns, in
// export order.
func tableColumns(source []string) []string {
	have := make(map[string]bool, len(source)+len(derivedColumns))
	for _, c := range source {
		have[c] = true
	}
	for _, c := range derivedColumns {
		have[c] = true
	}
	cols := make([]string, 0, len(have))
	for _, c := range ColumnOrder {
		if have[c] {
			cols = append(cols, c)
		}
	}
	return cols
}

type cleaner struct {
	vocab *Vocabulary
	stats *Stats
}

// value returns the trimmed cell or nil for nulls and columns the table does
// not carry.
func (c *cleaner) value(row ParsedRow, col string) *string {
	raw, ok := row.Values[col]
	if !ok {
		return nil
	}
	null, sentinel := c.vocab.IsNull(raw)
	if sentinel {
		c.stats.NullValues++
	}
	if null {
		return nil
	}
	s := strings.TrimSpace(raw)
	return &s
}

// cleanRow returns the record, or a drop reason, or ok=false when the row is
// outside the state filter.
func (c *cleaner) cleanRow(file string, row ParsedRow) (rec CrashRecord, dropReason string, ok bool) {
	id := c.value(row, ColIncidentID)
	if id == nil {
		return CrashRecord{}, DropMissingID, false
	}

	rec.IncidentID = *id
	rec.SourceFile = file
	rec.RecordID = generateRecordID(rec.IncidentID, file, row.Line)

	rec.State = c.text(row, ColState)
	if filter := NormalizeToken(c.vocab.Region.StateFilter); filter != "" {
		if rec.State == nil || !strings.Contains(NormalizeToken(*rec.State), filter) {
			return CrashRecord{}, "", false
		}
	}

	sev := c.value(row, ColSeverity)
	if sev == nil {
		return CrashRecord{}, DropInvalidSeverity, false
	}
	name, rank, found := c.vocab.TranslateSeverity(*sev)
	if !found {
		return CrashRecord{}, DropInvalidSeverity, false
	}
	rec.Severity, rec.SeverityLevel = name, rank

	rec.Year = c.integer(row, ColYear)
	rec.Month = c.month(row)
	rec.DayOfMonth = c.integer(row, ColDayOfMonth)
	rec.Weekday = c.weekday(row)
	rec.Hour = c.hour(row)
	rec.Date = deriveDate(rec.Year, rec.Month, rec.DayOfMonth)

	rec.Municipality = c.text(row, ColMunicipality)
	rec.Street = c.text(row, ColStreet)
	rec.PostalCode = c.postalCode(row)
	c.location(row, &rec)

	rec.CrashType = c.category(row, ColCrashType)
	rec.VehicleType = c.category(row, ColVehicleType)
	rec.VehicleBrand = c.text(row, ColVehicleBrand)
	rec.VehicleModel = c.integer(row, ColVehicleModel)
	rec.VehicleColor = c.category(row, ColVehicleColor)
	rec.ImpactPoint = c.category(row, ColImpactPoint)

	rec.TotalInjured = c.integer(row, ColTotalInjured)
	rec.InjuredAge = c.integer(row, ColInjuredAge)
	rec.InjuredGender = c.category(row, ColInjuredGender)
	rec.InjuredRole = c.category(row, ColInjuredRole)
	rec.InjuryLevel = c.category(row, ColInjuryLevel)
	rec.Hospitalized = c.boolean(row, ColHospitalized)
	rec.Deceased = c.boolean(row, ColDeceased)

	rec.Ambulance = c.boolean(row, ColAmbulance)
	rec.ThirdPartyFled = c.boolean(row, ColThirdPartyFled)
	rec.Insurer = c.text(row, ColInsurer)
	rec.TaxiService = c.boolean(row, ColTaxiService)

	return rec, "", true
}

func (c *cleaner) text(row ParsedRow, col string) *string {
	v := c.value(row, col)
	if v == nil {
		return nil
	}
	s := strings.Join(strings.Fields(StripAccents(*v)), " ")
	return &s
}

func (c *cleaner) category(row ParsedRow, col string) *string {
	v := c.value(row, col)
	if v == nil {
		return nil
	}
	t, _ := c.vocab.TranslateCategory(col, *v)
	if t == "" {
		c.stats.Coerced++
		return nil
	}
	return &t
}

func (c *cleaner) integer(row ParsedRow, col string) *int {
	v := c.value(row, col)
	if v == nil {
		return nil
	}
	n, ok := parseWholeNumber(*v)
	if !ok {
		c.stats.Coerced++
		return nil
	}
	return &n
}

func (c *cleaner) boolean(row ParsedRow, col string) *bool {
	v := c.value(row, col)
	if v == nil {
		return nil
	}
	b, ok := c.vocab.TranslateBool(*v)
	if !ok {
		c.stats.Coerced++
		return nil
	}
	return &b
}

func (c *cleaner) month(row ParsedRow) *int {
	v := c.value(row, ColMonth)
	if v == nil {
		return nil
	}
	m, ok := c.vocab.TranslateMonth(*v)
	if !ok {
		c.stats.Coerced++
		return nil
	}
	return &m
}

func (c *cleaner) weekday(row ParsedRow) *string {
	v := c.value(row, ColWeekday)
	if v == nil {
		return nil
	}
	w, ok := c.vocab.TranslateWeekday(*v)
	if !ok {
		c.stats.Coerced++
		return nil
	}
	return &w
}

func (c *cleaner) hour(row ParsedRow) *int {
	v := c.value(row, ColHour)
	if v == nil {
		return nil
	}
	h, ok := parseHour(*v)
	if !ok {
		c.stats.Coerced++
		return nil
	}
	return &h
}

// postalCode keeps codes as text; exports through spreadsheets turn "01000"
// into "1000.0", so whole numbers are re-padded to five digits.
func (c *cleaner) postalCode(row ParsedRow) *string {
	v := c.value(row, ColPostalCode)
	if v == nil {
		return nil
	}
	if n, ok := parseWholeNumber(*v); ok && n >= 0 && n < 100000 {
		s := fmt.Sprintf("%05d", n)
		return &s
	}
	return v
}

// location sets coordinates and location status. Missing, zero or
// unparseable coordinates leave the location unknown. Transposed pairs are
// swapped when that lands them inside the region; pairs that stay outside
// the region are treated as unknown.
func (c *cleaner) location(row ParsedRow, rec *CrashRecord) {
	rec.LocationStatus = LocationUnknown
	lat, latOK := c.coordinate(row, ColLatitude)
	lon, lonOK := c.coordinate(row, ColLongitude)
	defer func() {
		if rec.LocationStatus == LocationUnknown {
			c.stats.UnknownLocation++
		}
	}()
	if !latOK || !lonOK || (lat == 0 && lon == 0) {
		return
	}
	bounds := c.vocab.Region.Bounds
	switch {
	case bounds.Contains(lat, lon):
	case bounds.Contains(lon, lat):
		lat, lon = lon, lat
		c.stats.SwappedCoordinates++
	default:
		c.stats.OutOfBounds++
		return
	}
	rec.Latitude, rec.Longitude = &lat, &lon
	rec.LocationStatus = LocationKnown
}

func (c *cleaner) coordinate(row ParsedRow, col string) (float64, bool) {
	v := c.value(row, col)
	if v == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(*v, ",", "."), 64)
	if err != nil {
		c.stats.Coerced++
		return 0, false
	}
	return f, true
}

// parseHour accepts "14", "14:30", "14:30:00" and "1430".
func parseHour(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	n, ok := parseWholeNumber(s)
	if !ok || n < 0 {
		return 0, false
	}
	switch {
	case n <= 23:
		return n, true
	case n >= 100 && n <= 2359 && n%100 < 60:
		return n / 100, true
	default:
		return 0, false
	}
}

func deriveDate(year, month, day *int) *string {
	if year == nil || month == nil || day == nil {
		return nil
	}
	t := time.Date(*year, time.Month(*month), *day, 0, 0, 0, 0, time.UTC)
	if t.Year() != *year || int(t.Month()) != *month || t.Day() != *day {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}

// generateRecordID derives a stable id from the incident id and the row's
// position in its source file. Incident ids repeat once per injured person.
func generateRecordID(incidentID, file string, line int) string {
	h := sha256.Sum256([]byte(incidentID + "|" + file + "|" + strconv.Itoa(line)))
	return "crash-" + hex.EncodeToString(h[:8])
}
