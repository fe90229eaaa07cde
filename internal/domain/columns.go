package domain

// Canonical column names. These are also the Parquet column names.
const (
	ColRecordID       = "record_id"
	ColIncidentID     = "incident_id"
	ColYear           = "year"
	ColMonth          = "month"
	ColDayOfMonth     = "day_of_month"
	ColWeekday        = "weekday"
	ColHour           = "hour"
	ColDate           = "date"
	ColState          = "state"
	ColMunicipality   = "municipality"
	ColStreet         = "street"
	ColPostalCode     = "postal_code"
	ColLatitude       = "latitude"
	ColLongitude      = "longitude"
	ColLocationStatus = "location_status"
	ColSeverity       = "severity"
	ColSeverityLevel  = "severity_level"
	ColCrashType      = "crash_type"
	ColVehicleType    = "vehicle_type"
	ColVehicleBrand   = "vehicle_brand"
	ColVehicleModel   = "vehicle_model"
	ColVehicleColor   = "vehicle_color"
	ColImpactPoint    = "impact_point"
	ColTotalInjured   = "total_injured"
	ColInjuredAge     = "injured_age"
	ColInjuredGender  = "injured_gender"
	ColInjuredRole    = "injured_role"
	ColInjuryLevel    = "injury_level"
	ColHospitalized   = "hospitalized"
	ColDeceased       = "deceased"
	ColAmbulance      = "ambulance"
	ColThirdPartyFled = "third_party_fled"
	ColInsurer        = "insurer"
	ColTaxiService    = "taxi_service"
	ColSourceFile     = "source_file"
)

type columnKind int

const (
	kindDerived columnKind = iota
	kindID
	kindText
	kindCategory
	kindInt
	kindFloat
	kindBool
	kindMonth
	kindWeekday
	kindSeverity
)

// sourceColumns are the canonical columns a source file can carry, in export
// order. Derived columns are computed during cleaning.
var sourceColumns = []struct {
	name string
	kind columnKind
}{
	{ColIncidentID, kindID},
	{ColYear, kindInt},
	{ColMonth, kindMonth},
	{ColDayOfMonth, kindInt},
	{ColWeekday, kindWeekday},
	{ColHour, kindInt},
	{ColState, kindText},
	{ColMunicipality, kindText},
	{ColStreet, kindText},
	{ColPostalCode, kindText},
	{ColLatitude, kindFloat},
	{ColLongitude, kindFloat},
	{ColSeverity, kindSeverity},
	{ColCrashType, kindCategory},
	{ColVehicleType, kindCategory},
	{ColVehicleBrand, kindText},
	{ColVehicleModel, kindInt},
	{ColVehicleColor, kindCategory},
	{ColImpactPoint, kindCategory},
	{ColTotalInjured, kindInt},
	{ColInjuredAge, kindInt},
	{ColInjuredGender, kindCategory},
	{ColInjuredRole, kindCategory},
	{ColInjuryLevel, kindCategory},
	{ColHospitalized, kindBool},
	{ColDeceased, kindBool},
	{ColAmbulance, kindBool},
	{ColThirdPartyFled, kindBool},
	{ColInsurer, kindText},
	{ColTaxiService, kindBool},
}

var derivedColumns = []string{
	ColRecordID,
	ColDate,
	ColLocationStatus,
	ColSeverityLevel,
	ColSourceFile,
}

// ColumnOrder is the canonical column order of the export.
var ColumnOrder = []string{
	ColRecordID, ColIncidentID,
	ColYear, ColMonth, ColDayOfMonth, ColWeekday, ColHour, ColDate,
	ColState, ColMunicipality, ColStreet, ColPostalCode, ColLatitude, ColLongitude,
	ColLocationStatus, ColSeverity, ColSeverityLevel,
	ColCrashType, ColVehicleType, ColVehicleBrand, ColVehicleModel, ColVehicleColor, ColImpactPoint,
	ColTotalInjured, ColInjuredAge, ColInjuredGender, ColInjuredRole, ColInjuryLevel, ColHospitalized, ColDeceased,
	ColAmbulance, ColThirdPartyFled, ColInsurer, ColTaxiService,
	ColSourceFile,
}

var columnKinds = func() map[string]columnKind {
	m := make(map[string]columnKind, len(sourceColumns)+len(derivedColumns))
	for _, c := range sourceColumns {
		m[c.name] = c.kind
	}
	for _, c := range derivedColumns {
		m[c] = kindDerived
	}
	return m
}()

func isCanonicalColumn(name string) bool {
	_, ok := columnKinds[name]
	return ok
}

// IsSourceColumn reports whether a canonical column can come from a source file.
func IsSourceColumn(name string) bool {
	k, ok := columnKinds[name]
	return ok && k != kindDerived
}
