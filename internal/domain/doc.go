// Package domain models the Mexico City vehicle-crash records published by the
// International Data Institute (i2ds) as AXA "percances viales" open data.
//
// # Data Source
//
// The institute's open-data page links one ZIP archive (or CSV) per year plus a
// data dictionary workbook named "diccionario-percances-viales-axa-*.xlsx".
// Archives for 2015-2019 carry a header row; later years are headerless and take
// their column names from the first column of the dictionary, with "Día Numero"
// inserted after "Mes Reporte" because the dictionary omits it.
//
// # Source Conventions
//
// Encoding:
//
//	CSVs are ISO-8859-1. Headers are normalized to ASCII snake_case
//	("Nivel Daño Vehículo" -> "nivel_dano_vehiculo"); older exports that went
//	through a broken decoder produce mangled names such as "daa_numero", which the
//	vocabulary maps as well.
//
// Null values:
//
//	"\N" is the MySQL export sentinel for NULL. Empty cells are also null.
//
// Severity:
//
//	The vehicle damage level ("Sin daño", "Bajo", "Medio", "Alto") is the crash
//	severity. It is translated to none/low/medium/high with ranks 1-4.
//
// Location:
//
//	Latitude/longitude in WGS-84. Missing or unparseable coordinates are kept
//	with [LocationUnknown] instead of dropping the row; rows whose coordinates
//	are transposed are repaired when swapping them lands inside the region.
//
// # Canonical Vocabulary
//
// Column names and categorical values are translated to English through a
// [Vocabulary] loaded from YAML, so the mapping tables, thresholds and region
// bounding box live outside the code.
//
// # ID Generation
//
// Incident ids repeat once per injured person, so every row also gets a
// deterministic record id: a SHA-256 prefix of incident|file|line. Re-running the
// pipeline on the same snapshot produces the same ids. See [generateRecordID].
package domain
