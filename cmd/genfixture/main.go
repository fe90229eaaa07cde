// Command genfixture writes a synthetic source directory shaped like the
// institute's publication: a data dictionary workbook, headerless Latin-1
// CSVs for the early years, CSVs with headers for later years and one year
// packed in a zip. Rows include the dirt the cleaner has to handle. The
// directory is then read back through the real fetcher and cleaner and the
// resulting counts are printed for updating test assertions.
//
// Usage:
//
//	go run ./cmd/genfixture -out testdata/source -rows 200 -seed 7
package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/couchcryptid/crash-data-etl/internal/adapter/source"
	"github.com/couchcryptid/crash-data-etl/internal/domain"
	"github.com/couchcryptid/crash-data-etl/internal/vocabulary"
)

// headers is the column list of the data dictionary. The day-of-month column
// is left out on purpose; the cleaner re-inserts it after "Mes Reporte".
var headers = []string{
	"Siniestro", "Año", "Mes Reporte", "Día", "Hora", "Estado", "Ciudad Municipio",
	"Calle", "Codigo Postal", "Latitud", "Longitud", "Nivel Daño Vehículo",
	"Tipo de Percance", "Tipo Vehículo", "Marca", "Modelo", "Color",
	"Punto Impacto", "Total Lesionados", "Edad Lesionado", "Genero Lesionado",
}

var (
	months       = []string{"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio", "Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre"}
	weekdays     = []string{"Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado", "Domingo"}
	alcaldias    = []string{"Cuauhtémoc", "Coyoacán", "Benito Juárez", "Iztapalapa", "Tlalpan", "Miguel Hidalgo", "Gustavo A. Madero", "Álvaro Obregón"}
	streets      = []string{"Paseo de la Reforma", "Av. Insurgentes Sur", "Calzada de Tlalpan", "Eje Central", "Av. Universidad", "Periférico Sur", "Viaducto Miguel Alemán"}
	severities   = []string{"Sin daño", "Leve", "Bajo", "Medio", "Moderado", "Alto", "Grave", "Pérdida total"}
	crashTypes   = []string{"Colisión", "Choque", "Atropello", "Volcadura", "Cristales", "Robo"}
	vehicleTypes = []string{"Automóvil", "Camioneta", "Motocicleta", "Camión", "Autobús", "Taxi"}
	brands       = []string{"Nissan", "Volkswagen", "Chevrolet", "Toyota", "Honda", "Kia"}
	colors       = []string{"Blanco", "Negro", "Gris", "Plata", "Rojo", "Azul"}
	impacts      = []string{"Frontal", "Trasero", "Lateral izquierdo", "Lateral derecho", "Volcadura"}
	genders      = []string{"Hombre", "Mujer", "Masculino", "Femenino", "No especificado"}
)

func main() {
	out := flag.String("out", "testdata/source", "directory to write the fixture into")
	rows := flag.Int("rows", 200, "rows per year")
	seed := flag.Uint64("seed", 7, "random seed")
	from := flag.Int("from", 2019, "first year")
	to := flag.Int("to", 2022, "last year")
	headerlessUntil := flag.Int("headerless-until", 2020, "years up to this one are written without a header row, in Latin-1")
	zipYear := flag.Int("zip-year", 2022, "year packed in a zip archive (0 for none)")
	flag.Parse()

	g := &generator{rng: rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))}
	if err := g.write(*out, *from, *to, *rows, *headerlessUntil, *zipYear); err != nil {
		log.Fatal(err)
	}
	if err := summarize(*out); err != nil {
		log.Fatal(err)
	}
}

type generator struct {
	rng  *rand.Rand
	next int
}

func (g *generator) write(out string, from, to, rows, headerlessUntil, zipYear int) error {
	if err := os.MkdirAll(filepath.Join(out, "data-dictionary"), 0o755); err != nil {
		return err
	}
	if err := writeDictionary(filepath.Join(out, "data-dictionary", "diccionario-percances-viales-axa-2023.xlsx")); err != nil {
		return fmt.Errorf("write dictionary: %w", err)
	}

	for year := from; year <= to; year++ {
		withHeader := year > headerlessUntil
		data, err := g.yearCSV(year, rows, withHeader)
		if err != nil {
			return fmt.Errorf("year %d: %w", year, err)
		}
		name := fmt.Sprintf("percances-viales-%d.csv", year)

		if year == zipYear {
			data, err = zipped(filepath.Join(strconv.Itoa(year), name), data)
			if err != nil {
				return fmt.Errorf("zip year %d: %w", year, err)
			}
			path := filepath.Join(out, fmt.Sprintf("percances-viales-%d.zip", year))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			continue
		}

		dir := filepath.Join(out, strconv.Itoa(year))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		fmt.Printf("Wrote %s (header=%t)\n", path, withHeader)
	}
	return nil
}

func writeDictionary(path string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &[]any{"Campo", "Descripción"}); err != nil {
		return err
	}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &[]any{h, "Campo " + h}); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

// yearCSV renders one year. Headerless files carry the day-of-month column
// after the month, as the real files do, and are Latin-1 encoded.
func (g *generator) yearCSV(year, rows int, withHeader bool) ([]byte, error) {
	cols := make([]string, 0, len(headers)+1)
	for _, h := range headers {
		cols = append(cols, h)
		if h == "Mes Reporte" {
			cols = append(cols, "Día Numero")
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if withHeader {
		if err := w.Write(cols); err != nil {
			return nil, err
		}
	}
	for range rows {
		if err := w.Write(g.row(year)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	if withHeader {
		return buf.Bytes(), nil
	}
	return charmap.ISO8859_1.NewEncoder().Bytes(buf.Bytes())
}

func (g *generator) row(year int) []string {
	g.next++
	id := strconv.Itoa(100000 + g.next)
	month := g.rng.IntN(12)
	lat := 19.19 + g.rng.Float64()*0.36
	lon := -99.32 + g.rng.Float64()*0.35
	state := "Ciudad de México"
	severity := pick(g.rng, severities)
	gender := pick(g.rng, genders)
	latS, lonS := strconv.FormatFloat(lat, 'f', 6, 64), strconv.FormatFloat(lon, 'f', 6, 64)

	switch g.rng.IntN(20) {
	case 0:
		state = "Estado de México"
	case 1:
		latS, lonS = "", ""
	case 2:
		latS, lonS = lonS, latS
	case 3:
		latS, lonS = "20.6736", "-103.344"
	case 4:
		id = `\N`
	case 5:
		severity = "Sinaloa"
	case 6:
		gender = " MUJER "
	case 7:
		latS = "NULL"
	}

	return []string{
		id,
		strconv.Itoa(year),
		months[month],
		strconv.Itoa(1 + g.rng.IntN(28)),
		pick(g.rng, weekdays),
		fmt.Sprintf("%02d:%02d", g.rng.IntN(24), g.rng.IntN(60)),
		state,
		pick(g.rng, alcaldias),
		pick(g.rng, streets),
		fmt.Sprintf("%05d", 1000+g.rng.IntN(15000)),
		latS,
		lonS,
		severity,
		pick(g.rng, crashTypes),
		pick(g.rng, vehicleTypes),
		pick(g.rng, brands),
		strconv.Itoa(2000 + g.rng.IntN(24)),
		pick(g.rng, colors),
		pick(g.rng, impacts),
		strconv.Itoa(g.rng.IntN(4)),
		strconv.Itoa(18 + g.rng.IntN(60)),
		gender,
	}
}

func pick(rng *rand.Rand, values []string) string {
	return values[rng.IntN(len(values))]
}

func zipped(name string, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(filepath.ToSlash(name))
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// summarize reads the fixture back the way a run would and prints the counts.
func summarize(dir string) error {
	vocab, err := vocabulary.Default()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	src := source.NewDirSource(dir, source.Options{
		DictionaryMarker: vocab.Dictionary.FileMarker,
		FirstYear:        vocab.FirstYear,
	}, logger)

	set, err := src.Fetch(context.Background())
	if err != nil {
		return fmt.Errorf("fetch fixture: %w", err)
	}
	parsed, err := domain.ParseRecordSet(set, vocab)
	if err != nil {
		return fmt.Errorf("parse fixture: %w", err)
	}
	cleaned, err := domain.CleanTable(parsed, vocab)
	if err != nil {
		return fmt.Errorf("clean fixture: %w", err)
	}

	s := cleaned.Stats
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Stats for updating test assertions")
	t.AppendHeader(table.Row{"Count", "Value"})
	t.AppendRows([]table.Row{
		{"files", s.Files},
		{"raw rows", s.RawRows},
		{"kept", s.Kept},
		{"filtered", s.Filtered},
		{"dropped missing_id", s.Dropped[domain.DropMissingID]},
		{"dropped invalid_severity", s.Dropped[domain.DropInvalidSeverity]},
		{"dropped malformed_row", s.Dropped[domain.DropMalformedRow]},
		{"coerced", s.Coerced},
		{"null values", s.NullValues},
		{"unknown location", s.UnknownLocation},
		{"out of bounds", s.OutOfBounds},
		{"swapped coordinates", s.SwappedCoordinates},
	})
	t.Render()

	if err := domain.Validate(cleaned, 1, vocab); err != nil {
		fmt.Printf("\nValidation: %v\n", err)
	} else {
		fmt.Println("\nValidation: pass")
	}
	return nil
}
