package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
)

// DefaultSourceURL is the publisher's open-data page.
const DefaultSourceURL = "https://i2ds.org/datos-abiertos/"

var (
	ErrInvalidHTTPTimeout   = errors.New("invalid HTTP_TIMEOUT")
	ErrInvalidMapboxTimeout = errors.New("invalid MAPBOX_TIMEOUT")
	ErrInvalidMinRows       = errors.New("MIN_ROWS must be a positive integer")
	ErrInvalidMinSeverity   = errors.New("MIN_SEVERITY must be between 0 and 4")
	ErrInvalidYearRange     = errors.New("invalid YEAR_FROM/YEAR_TO range")
	ErrUnknownMapAttribute  = errors.New("unsupported MAP_ATTRIBUTES entry")
	ErrMapboxTokenMissing   = errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	ErrNoSource             = errors.New("one of SOURCE_URL or SOURCE_DIR is required")
)

// Config holds all run settings, populated from environment variables.
type Config struct {
	SourceURL    string
	SourceDir    string
	LinkSelector string
	HTTPTimeout  time.Duration
	YearFrom     int
	YearTo       int

	OutputDir  string
	ExportFile string
	MapDir     string

	MinRows       int
	MapAttributes []string
	MinSeverity   int
	// StateFilter overrides the vocabulary's region filter when set. An empty
	// string disables filtering.
	StateFilter    *string
	VocabularyFile string

	LogLevel        string
	LogFormat       string
	HTTPAddr        string
	ShutdownTimeout time.Duration
	Schedule        string

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	// Publishing is disabled when no brokers are configured.
	KafkaBrokers []string
	KafkaTopic   string
}

// ExportPath is the destination of the Parquet export.
func (c *Config) ExportPath() string {
	return filepath.Join(c.OutputDir, c.ExportFile)
}

// PublishEnabled reports whether exported records are sent to Kafka.
func (c *Config) PublishEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	httpTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("HTTP_TIMEOUT", "60s"))
	if err != nil || httpTimeout <= 0 {
		return nil, ErrInvalidHTTPTimeout
	}
	mapboxTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("MAPBOX_TIMEOUT", "5s"))
	if err != nil || mapboxTimeout <= 0 {
		return nil, ErrInvalidMapboxTimeout
	}

	minRows, err := parseInt("MIN_ROWS", 1)
	if err != nil || minRows < 1 {
		return nil, ErrInvalidMinRows
	}
	minSeverity, err := parseInt("MIN_SEVERITY", 1)
	if err != nil || minSeverity < 0 || minSeverity > 4 {
		return nil, ErrInvalidMinSeverity
	}
	yearFrom, err := parseInt("YEAR_FROM", 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidYearRange, err)
	}
	yearTo, err := parseInt("YEAR_TO", 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidYearRange, err)
	}
	if yearFrom != 0 && yearTo != 0 && yearTo < yearFrom {
		return nil, ErrInvalidYearRange
	}

	attributes := splitList(sharedcfg.EnvOrDefault("MAP_ATTRIBUTES", "severity_level,total_injured,injured_gender,impact_point"))
	for _, a := range attributes {
		if _, ok := domain.ViewAttributes[a]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMapAttribute, a)
		}
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	// SOURCE_URL may be set empty to force a local SOURCE_DIR.
	sourceURL := DefaultSourceURL
	if v, ok := os.LookupEnv("SOURCE_URL"); ok {
		sourceURL = v
	}

	outputDir := sharedcfg.EnvOrDefault("OUTPUT_DIR", ".")
	cfg := &Config{
		SourceURL:    sourceURL,
		SourceDir:    os.Getenv("SOURCE_DIR"),
		LinkSelector: sharedcfg.EnvOrDefault("LINK_SELECTOR", "a"),
		HTTPTimeout:  httpTimeout,
		YearFrom:     yearFrom,
		YearTo:       yearTo,

		OutputDir:  outputDir,
		ExportFile: sharedcfg.EnvOrDefault("EXPORT_FILE", "cleaned_crash_data.parquet"),
		MapDir:     sharedcfg.EnvOrDefault("MAP_DIR", outputDir),

		MinRows:        minRows,
		MapAttributes:  attributes,
		MinSeverity:    minSeverity,
		VocabularyFile: os.Getenv("VOCABULARY_FILE"),

		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		ShutdownTimeout: shutdownTimeout,
		Schedule:        sharedcfg.EnvOrDefault("SCHEDULE", "0 3 * * *"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),

		KafkaTopic: sharedcfg.EnvOrDefault("KAFKA_TOPIC", "crash-records"),
	}
	if v, ok := os.LookupEnv("STATE_FILTER"); ok {
		cfg.StateFilter = &v
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	if cfg.SourceURL == "" && cfg.SourceDir == "" {
		return nil, ErrNoSource
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, ErrMapboxTokenMissing
	}

	return cfg, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
