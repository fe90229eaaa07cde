// Package mapview renders exported crash tables as self-contained Leaflet
// maps, one HTML file per colour attribute.
package mapview

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/couchcryptid/crash-data-etl/internal/adapter/parquet"
	"github.com/couchcryptid/crash-data-etl/internal/domain"
	"github.com/couchcryptid/crash-data-etl/internal/fsutil"
)

//go:embed map.html.tmpl
var mapTemplate string

var page = template.Must(template.New("map").Parse(mapTemplate))

var errNoMatches = errors.New("no crashes match the view")

// Renderer builds and writes map artifacts into a directory.
type Renderer struct {
	dir    string
	region domain.Region
	logger *slog.Logger
}

// NewRenderer creates a renderer writing into dir.
func NewRenderer(dir string, region domain.Region, logger *slog.Logger) *Renderer {
	return &Renderer{
		dir:    dir,
		region: region,
		logger: logger,
	}
}

// ArtifactPath is where the full map for an attribute is written.
func (r *Renderer) ArtifactPath(attribute string) string {
	return filepath.Join(r.dir, "crash_map_"+attribute+".html")
}

// ViewPath is where the map for spec is written. A date or hour window is
// part of the name so a windowed view never replaces the full map.
func (r *Renderer) ViewPath(spec domain.ViewSpec) string {
	var window []string
	if !spec.Since.IsZero() {
		window = append(window, "from-"+spec.Since.Format(time.DateOnly))
	}
	if !spec.Until.IsZero() {
		window = append(window, "to-"+spec.Until.Format(time.DateOnly))
	}
	if spec.Hours != nil {
		window = append(window, fmt.Sprintf("h%02d-%02d", spec.Hours.From, spec.Hours.To))
	}
	if len(window) == 0 {
		return r.ArtifactPath(spec.Attribute)
	}
	name := "crash_map_" + spec.Attribute + "_" + strings.Join(window, "_") + ".html"
	return filepath.Join(r.dir, name)
}

// Render reads the export at exportPath and writes the map for spec to out,
// or to ViewPath(spec) when out is empty.
func (r *Renderer) Render(ctx context.Context, exportPath string, spec domain.ViewSpec, out string) (string, error) {
	table, err := parquet.Read(exportPath)
	if err != nil {
		return "", &domain.RenderError{Attribute: spec.Attribute, Reason: "read export", Err: err}
	}
	a, err := r.Build(ctx, table, spec)
	if err != nil {
		return "", err
	}
	if out != "" {
		a.Path = out
	}
	if err := r.Save(a); err != nil {
		return "", err
	}
	return a.Path, nil
}

// Build renders the map in memory. Nothing is written.
func (r *Renderer) Build(ctx context.Context, table domain.ExportedTable, spec domain.ViewSpec) (domain.MapArtifact, error) {
	if err := domain.CheckView(spec, table.HasColumn); err != nil {
		return domain.MapArtifact{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.MapArtifact{}, &domain.RenderError{Attribute: spec.Attribute, Reason: "canceled", Err: err}
	}

	records := domain.FilterForView(table.Records, spec)
	if len(records) == 0 {
		return domain.MapArtifact{}, &domain.RenderError{Attribute: spec.Attribute, Reason: "nothing to plot", Err: errNoMatches}
	}

	values := make([]any, len(records))
	for i, rec := range records {
		values[i] = rec.Value(spec.Attribute)
	}
	var scale colorScale
	if domain.ViewAttributes[spec.Attribute] {
		scale = newContinuousScale(values)
	} else {
		scale = newCategoricalScale(values)
	}

	fc := geojson.NewFeatureCollection()
	for i, rec := range records {
		fc.Append(feature(rec, values[i], scale))
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return domain.MapArtifact{}, &domain.RenderError{Attribute: spec.Attribute, Reason: "encode geojson", Err: err}
	}

	label := cases.Title(language.English).String(strings.ReplaceAll(spec.Attribute, "_", " "))
	var buf bytes.Buffer
	err = page.Execute(&buf, pageData{
		Title:      fmt.Sprintf("%s - %s", r.region.Name, label),
		Attribute:  spec.Attribute,
		Label:      label,
		CenterLat:  r.region.Center.Lat,
		CenterLon:  r.region.Center.Lon,
		Zoom:       r.region.Zoom,
		GeoJSON:    template.JS(data),
		Legend:     scale.legend(),
		Continuous: domain.ViewAttributes[spec.Attribute],
		Count:      len(records),
	})
	if err != nil {
		return domain.MapArtifact{}, &domain.RenderError{Attribute: spec.Attribute, Reason: "execute template", Err: err}
	}

	return domain.MapArtifact{
		Path:      r.ViewPath(spec),
		Attribute: spec.Attribute,
		Features:  len(records),
		HTML:      buf.Bytes(),
	}, nil
}

// Save atomically writes a built artifact.
func (r *Renderer) Save(a domain.MapArtifact) error {
	err := fsutil.WriteFileAtomic(a.Path, 0o644, func(w io.Writer) error {
		_, err := w.Write(a.HTML)
		return err
	})
	if err != nil {
		return &domain.RenderError{Attribute: a.Attribute, Reason: "write artifact", Err: err}
	}
	r.logger.Info("map rendered", "attribute", a.Attribute, "path", a.Path, "features", a.Features)
	return nil
}

// Stage writes a built artifact to a hidden sibling of its path and returns
// the staged location. The caller moves it into place.
func (r *Renderer) Stage(a domain.MapArtifact) (string, error) {
	staged := fsutil.StagingPath(a.Path)
	err := fsutil.WriteFileAtomic(staged, 0o644, func(w io.Writer) error {
		_, err := w.Write(a.HTML)
		return err
	})
	if err != nil {
		return "", &domain.RenderError{Attribute: a.Attribute, Reason: "stage artifact", Err: err}
	}
	r.logger.Debug("map staged", "attribute", a.Attribute, "path", staged, "features", a.Features)
	return staged, nil
}

func feature(rec domain.CrashRecord, value any, scale colorScale) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{*rec.Longitude, *rec.Latitude})
	f.Properties["record_id"] = rec.RecordID
	f.Properties["incident_id"] = rec.IncidentID
	f.Properties["severity"] = rec.Severity
	f.Properties["value"] = formatValue(value)
	f.Properties["color"] = scale.color(value)
	if rec.Date != nil {
		f.Properties["date"] = *rec.Date
	}
	if rec.Municipality != nil {
		f.Properties["municipality"] = *rec.Municipality
	}
	if rec.Street != nil {
		f.Properties["street"] = *rec.Street
	}
	if rec.LocationStatus == domain.LocationGeocoded {
		f.Properties["geocoded"] = true
	}
	return f
}

type pageData struct {
	Title      string
	Attribute  string
	Label      string
	CenterLat  float64
	CenterLon  float64
	Zoom       int
	GeoJSON    template.JS
	Legend     []legendEntry
	Continuous bool
	Count      int
}
