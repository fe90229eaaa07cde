package domain

import "slices"

// RawFile is one downloaded or extracted source file.
type RawFile struct {
	Name string
	Year int // 0 for the data dictionary
	Data []byte
}

// RawRecordSet is everything fetched for one run: the data dictionary (when
// published) and the yearly CSV files, sorted by year then name.
type RawRecordSet struct {
	SourceURL  string
	Dictionary *RawFile
	Files      []RawFile
}

// Location status values.
const (
	LocationKnown    = "known"
	LocationUnknown  = "unknown"
	LocationGeocoded = "geocoded"
)

// CrashRecord is one cleaned crash row in the canonical vocabulary. Nullable
// attributes are pointers; the parquet tags define the export schema.
type CrashRecord struct {
	RecordID   string `parquet:"record_id" json:"record_id"`
	IncidentID string `parquet:"incident_id" json:"incident_id"`

	Year       *int    `parquet:"year" json:"year,omitempty"`
	Month      *int    `parquet:"month" json:"month,omitempty"`
	DayOfMonth *int    `parquet:"day_of_month" json:"day_of_month,omitempty"`
	Weekday    *string `parquet:"weekday" json:"weekday,omitempty"`
	Hour       *int    `parquet:"hour" json:"hour,omitempty"`
	Date       *string `parquet:"date" json:"date,omitempty"` // YYYY-MM-DD

	State        *string  `parquet:"state" json:"state,omitempty"`
	Municipality *string  `parquet:"municipality" json:"municipality,omitempty"`
	Street       *string  `parquet:"street" json:"street,omitempty"`
	PostalCode   *string  `parquet:"postal_code" json:"postal_code,omitempty"`
	Latitude     *float64 `parquet:"latitude" json:"latitude,omitempty"`
	Longitude    *float64 `parquet:"longitude" json:"longitude,omitempty"`

	LocationStatus string `parquet:"location_status" json:"location_status"`
	Severity       string `parquet:"severity" json:"severity"`
	SeverityLevel  int    `parquet:"severity_level" json:"severity_level"`

	CrashType    *string `parquet:"crash_type" json:"crash_type,omitempty"`
	VehicleType  *string `parquet:"vehicle_type" json:"vehicle_type,omitempty"`
	VehicleBrand *string `parquet:"vehicle_brand" json:"vehicle_brand,omitempty"`
	VehicleModel *int    `parquet:"vehicle_model" json:"vehicle_model,omitempty"`
	VehicleColor *string `parquet:"vehicle_color" json:"vehicle_color,omitempty"`
	ImpactPoint  *string `parquet:"impact_point" json:"impact_point,omitempty"`

	TotalInjured  *int    `parquet:"total_injured" json:"total_injured,omitempty"`
	InjuredAge    *int    `parquet:"injured_age" json:"injured_age,omitempty"`
	InjuredGender *string `parquet:"injured_gender" json:"injured_gender,omitempty"`
	InjuredRole   *string `parquet:"injured_role" json:"injured_role,omitempty"`
	InjuryLevel   *string `parquet:"injury_level" json:"injury_level,omitempty"`
	Hospitalized  *bool   `parquet:"hospitalized" json:"hospitalized,omitempty"`
	Deceased      *bool   `parquet:"deceased" json:"deceased,omitempty"`

	Ambulance      *bool   `parquet:"ambulance" json:"ambulance,omitempty"`
	ThirdPartyFled *bool   `parquet:"third_party_fled" json:"third_party_fled,omitempty"`
	Insurer        *string `parquet:"insurer" json:"insurer,omitempty"`
	TaxiService    *bool   `parquet:"taxi_service" json:"taxi_service,omitempty"`

	SourceFile string `parquet:"source_file" json:"source_file"`
}

// HasLocation reports whether the record can be placed on a map.
func (r CrashRecord) HasLocation() bool {
	return r.LocationStatus != LocationUnknown && r.Latitude != nil && r.Longitude != nil
}

// Value returns the value of a canonical column, or nil when the column is
// null or unknown. Pointer fields are dereferenced.
func (r CrashRecord) Value(column string) any {
	switch column {
	case ColRecordID:
		return r.RecordID
	case ColIncidentID:
		return r.IncidentID
	case ColYear:
		return derefInt(r.Year)
	case ColMonth:
		return derefInt(r.Month)
	case ColDayOfMonth:
		return derefInt(r.DayOfMonth)
	case ColWeekday:
		return derefString(r.Weekday)
	case ColHour:
		return derefInt(r.Hour)
	case ColDate:
		return derefString(r.Date)
	case ColState:
		return derefString(r.State)
	case ColMunicipality:
		return derefString(r.Municipality)
	case ColStreet:
		return derefString(r.Street)
	case ColPostalCode:
		return derefString(r.PostalCode)
	case ColLatitude:
		return derefFloat(r.Latitude)
	case ColLongitude:
		return derefFloat(r.Longitude)
	case ColLocationStatus:
		return r.LocationStatus
	case ColSeverity:
		return r.Severity
	case ColSeverityLevel:
		return r.SeverityLevel
	case ColCrashType:
		return derefString(r.CrashType)
	case ColVehicleType:
		return derefString(r.VehicleType)
	case ColVehicleBrand:
		return derefString(r.VehicleBrand)
	case ColVehicleModel:
		return derefInt(r.VehicleModel)
	case ColVehicleColor:
		return derefString(r.VehicleColor)
	case ColImpactPoint:
		return derefString(r.ImpactPoint)
	case ColTotalInjured:
		return derefInt(r.TotalInjured)
	case ColInjuredAge:
		return derefInt(r.InjuredAge)
	case ColInjuredGender:
		return derefString(r.InjuredGender)
	case ColInjuredRole:
		return derefString(r.InjuredRole)
	case ColInjuryLevel:
		return derefString(r.InjuryLevel)
	case ColHospitalized:
		return derefBool(r.Hospitalized)
	case ColDeceased:
		return derefBool(r.Deceased)
	case ColAmbulance:
		return derefBool(r.Ambulance)
	case ColThirdPartyFled:
		return derefBool(r.ThirdPartyFled)
	case ColInsurer:
		return derefString(r.Insurer)
	case ColTaxiService:
		return derefBool(r.TaxiService)
	case ColSourceFile:
		return r.SourceFile
	default:
		return nil
	}
}

func derefInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func derefFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func derefString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func derefBool(p *bool) any {
	if p == nil {
		return nil
	}
	return *p
}

// Stats counts what happened to source rows during parsing and cleaning.
type Stats struct {
	Files              int            `json:"files"`
	RawRows            int            `json:"raw_rows"`
	Kept               int            `json:"kept"`
	Filtered           int            `json:"filtered"` // outside the region's state filter
	Dropped            map[string]int `json:"dropped"`  // by reason
	Coerced            int            `json:"coerced"`  // non-null values that failed type conversion
	NullValues         int            `json:"null_values"`
	UnknownLocation    int            `json:"unknown_location"`
	OutOfBounds        int            `json:"out_of_bounds"` // coordinates outside the region, kept as unknown
	SwappedCoordinates int            `json:"swapped_coordinates"`
	Geocoded           int            `json:"geocoded"`
}

// DroppedTotal sums drops across reasons.
func (s Stats) DroppedTotal() int {
	n := 0
	for _, c := range s.Dropped {
		n += c
	}
	return n
}

// Drop reasons.
const (
	DropMissingID       = "missing_id"
	DropInvalidSeverity = "invalid_severity"
	DropMalformedRow    = "malformed_row"
)

// CrashTable is the cleaned in-memory table. Columns lists the canonical
// columns available in every source file plus the derived ones.
type CrashTable struct {
	Columns []string
	Records []CrashRecord
	Stats   Stats
}

// HasColumn reports whether the table carries the given canonical column.
func (t CrashTable) HasColumn(column string) bool {
	return slices.Contains(t.Columns, column)
}

// ExportedTable is a crash table read back from the columnar export.
type ExportedTable struct {
	Path    string
	Columns []string
	Records []CrashRecord
}

// HasColumn reports whether the export carries the given canonical column.
// Files without column metadata are treated as carrying every column.
func (t ExportedTable) HasColumn(column string) bool {
	if len(t.Columns) == 0 {
		return isCanonicalColumn(column)
	}
	return slices.Contains(t.Columns, column)
}
