package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Upstream feed locations used when the environment does not override them.
const (
	DefaultLineListSource   = "https://raw.githubusercontent.com/beoutbreakprepared/nCoV2019/master/latest_data/latestdata.csv"
	DefaultCumulativeSource = "https://raw.githubusercontent.com/CSSEGISandData/COVID-19/master/csse_covid_19_data/csse_covid_19_time_series/time_series_covid19_confirmed_US.csv"
)

// Config holds all run settings, populated from environment variables.
type Config struct {
	LineListSource    string
	CumulativeSource  string
	CountriesPath     string
	OutputDir         string
	Overwrite         bool
	Workers           int
	ExcludedCountries []string
	FetchTimeout      time.Duration

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Kafka slice sink. Publishing is off when no brokers are set.
	KafkaBrokers    []string
	KafkaSliceTopic string

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	// RunDBPath is the SQLite run ledger. Empty disables it.
	RunDBPath string
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := parsePositiveDuration("FETCH_TIMEOUT", "5m")
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	workers, err := parseWorkers()
	if err != nil {
		return nil, err
	}

	overwrite, err := parseBool("OVERWRITE", false)
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	var brokers []string
	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		LineListSource:    sharedcfg.EnvOrDefault("LINELIST_SOURCE", DefaultLineListSource),
		CumulativeSource:  sharedcfg.EnvOrDefault("CUMULATIVE_SOURCE", DefaultCumulativeSource),
		CountriesPath:     sharedcfg.EnvOrDefault("COUNTRIES_PATH", "countries.data"),
		OutputDir:         sharedcfg.EnvOrDefault("OUTPUT_DIR", "dist"),
		Overwrite:         overwrite,
		Workers:           workers,
		ExcludedCountries: parseList(sharedcfg.EnvOrDefault("EXCLUDED_COUNTRIES", "United States;Virgin Islands, U.S.;Puerto Rico")),
		FetchTimeout:      fetchTimeout,

		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:    brokers,
		KafkaSliceTopic: sharedcfg.EnvOrDefault("KAFKA_SLICE_TOPIC", "daily-slices"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),

		RunDBPath: os.Getenv("RUN_DB_PATH"),
	}

	if cfg.LineListSource == "" {
		return nil, errors.New("LINELIST_SOURCE is required")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("OUTPUT_DIR is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaSliceTopic == "" {
		return nil, errors.New("KAFKA_SLICE_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

// PublishEnabled reports whether daily slices go to Kafka.
func (c *Config) PublishEnabled() bool { return len(c.KafkaBrokers) > 0 }

func parsePositiveDuration(key, def string) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return d, nil
}

func parseWorkers() (int, error) {
	s := os.Getenv("WORKERS")
	if s == "" {
		return runtime.NumCPU(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid WORKERS %q: must be a positive integer", s)
	}
	return n, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", key, s)
	}
	return v, nil
}

// parseList splits a ';'-separated list, dropping blanks. Country names may
// contain commas, so ',' is not a separator.
func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
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
