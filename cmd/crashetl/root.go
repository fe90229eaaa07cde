package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/crash-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/crash-data-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/crash-data-etl/internal/adapter/mapview"
	"github.com/couchcryptid/crash-data-etl/internal/adapter/parquet"
	"github.com/couchcryptid/crash-data-etl/internal/adapter/source"
	"github.com/couchcryptid/crash-data-etl/internal/config"
	"github.com/couchcryptid/crash-data-etl/internal/domain"
	"github.com/couchcryptid/crash-data-etl/internal/observability"
	"github.com/couchcryptid/crash-data-etl/internal/pipeline"
	"github.com/couchcryptid/crash-data-etl/internal/vocabulary"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// overrides are the flags shared by commands that touch the pipeline
// configuration. Only flags the user set replace the environment values.
type overrides struct {
	sourceDir   string
	outputDir   string
	minRows     int
	attributes  []string
	minSeverity int
}

func (o *overrides) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.sourceDir, "source-dir", "", "read source files from a local directory instead of SOURCE_URL")
	f.StringVar(&o.outputDir, "output-dir", "", "directory for the export file (and maps unless MAP_DIR is set)")
	f.IntVar(&o.minRows, "min-rows", 1, "minimum number of cleaned rows for a run to pass validation")
	f.StringSliceVar(&o.attributes, "attribute", nil, "map attribute to render, repeatable")
	f.IntVar(&o.minSeverity, "min-severity", 1, "lowest severity level (0-4) shown on maps")
}

func (o *overrides) apply(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("source-dir") {
		cfg.SourceDir = o.sourceDir
	}
	if f.Changed("output-dir") {
		if cfg.MapDir == cfg.OutputDir {
			cfg.MapDir = o.outputDir
		}
		cfg.OutputDir = o.outputDir
	}
	if f.Changed("min-rows") {
		if o.minRows < 1 {
			return config.ErrInvalidMinRows
		}
		cfg.MinRows = o.minRows
	}
	if f.Changed("attribute") {
		for _, a := range o.attributes {
			if _, ok := domain.ViewAttributes[a]; !ok {
				return fmt.Errorf("%w: %q", config.ErrUnknownMapAttribute, a)
			}
		}
		cfg.MapAttributes = o.attributes
	}
	if f.Changed("min-severity") {
		if o.minSeverity < 0 || o.minSeverity > 4 {
			return config.ErrInvalidMinSeverity
		}
		cfg.MinSeverity = o.minSeverity
	}
	return nil
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "crashetl",
		Short:         "Mexico City crash data ETL",
		Long:          "Fetches the i2ds crash open data, cleans and validates it, exports Parquet and renders maps.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// A missing .env is fine; the environment is used as is.
			_ = godotenv.Load()
		},
	}
	root.AddCommand(
		newRunCommand(),
		newRenderCommand(),
		newServeCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "crashetl %s\n", version)
			},
		},
	)
	return root
}

// app holds everything a command needs after configuration is loaded.
type app struct {
	cfg     *config.Config
	vocab   *domain.Vocabulary
	logger  *slog.Logger
	metrics *observability.Metrics
	closers []io.Closer
}

func loadApp(cmd *cobra.Command, o *overrides, metrics *observability.Metrics) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o != nil {
		if err := o.apply(cmd, cfg); err != nil {
			return nil, err
		}
	}

	logger := observability.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	vocab, err := loadVocabulary(cfg.VocabularyFile)
	if err != nil {
		return nil, err
	}
	if cfg.StateFilter != nil {
		vocab.Region.StateFilter = *cfg.StateFilter
	}
	return &app{cfg: cfg, vocab: vocab, logger: logger, metrics: metrics}, nil
}

func loadVocabulary(path string) (*domain.Vocabulary, error) {
	if path == "" {
		return vocabulary.Default()
	}
	v, err := vocabulary.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	return v, nil
}

func (a *app) renderer() *mapview.Renderer {
	return mapview.NewRenderer(a.cfg.MapDir, a.vocab.Region, a.logger)
}

func (a *app) views() []domain.ViewSpec {
	views := make([]domain.ViewSpec, 0, len(a.cfg.MapAttributes))
	for _, attr := range a.cfg.MapAttributes {
		views = append(views, domain.ViewSpec{Attribute: attr, MinSeverity: a.cfg.MinSeverity})
	}
	return views
}

func (a *app) fetcher() pipeline.Fetcher {
	opts := source.Options{
		DictionaryMarker: a.vocab.Dictionary.FileMarker,
		FirstYear:        a.vocab.FirstYear,
		YearFrom:         a.cfg.YearFrom,
		YearTo:           a.cfg.YearTo,
	}
	if a.cfg.SourceDir != "" {
		a.logger.Info("reading source directory", "dir", a.cfg.SourceDir)
		return source.NewDirSource(a.cfg.SourceDir, opts, a.logger)
	}
	a.logger.Info("fetching source page", "url", a.cfg.SourceURL)
	return source.NewHTTPSource(a.cfg.SourceURL, a.cfg.LinkSelector, a.cfg.HTTPTimeout, opts, a.logger)
}

func (a *app) geocoder() domain.Geocoder {
	if !a.cfg.MapboxEnabled {
		a.metrics.GeocodeEnabled.Set(0)
		a.logger.Info("mapbox geocoding disabled")
		return nil
	}
	a.metrics.GeocodeEnabled.Set(1)
	client := mapbox.NewClient(a.cfg.MapboxToken, a.cfg.MapboxTimeout, a.vocab.Region, a.metrics, a.logger)
	a.logger.Info("mapbox geocoding enabled", "cache_size", a.cfg.MapboxCacheSize, "timeout", a.cfg.MapboxTimeout)
	return mapbox.NewCachedGeocoder(client, a.cfg.MapboxCacheSize, a.metrics)
}

// newPipeline wires every stage from the loaded configuration.
func (a *app) newPipeline(progress func(string)) *pipeline.Pipeline {
	stages := pipeline.Stages{
		Fetcher:  a.fetcher(),
		Cleaner:  pipeline.NewCleaner(a.vocab, a.logger),
		Enricher: pipeline.NewEnricher(a.geocoder(), a.vocab.Region.Bounds, a.logger),
		Exporter: parquet.NewExporter(a.logger),
		Maps:     a.renderer(),
	}
	if a.cfg.PublishEnabled() {
		w := kafka.NewWriter(a.cfg.KafkaBrokers, a.cfg.KafkaTopic, a.logger)
		stages.Publisher = w
		a.closers = append(a.closers, w)
		a.logger.Info("publishing enabled", "brokers", a.cfg.KafkaBrokers, "topic", a.cfg.KafkaTopic)
	}
	opts := pipeline.Options{
		ExportPath: a.cfg.ExportPath(),
		MinRows:    a.cfg.MinRows,
		Views:      a.views(),
		Progress:   progress,
	}
	return pipeline.New(stages, opts, a.logger, a.metrics)
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Error("close failed", "error", err)
		}
	}
}
