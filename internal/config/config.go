package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Feed locations. Each is an http(s) URL, a file:// URL or a plain path;
	// the population feed may also be sqlite://path.
	RecordsURL            string
	PopulationURL         string
	PopulationSQLiteTable string
	BoundariesURL         string
	FetchTimeout          time.Duration

	RefreshInterval time.Duration // zero loads once
	FeedRetry       bool          // retry a failed load with backoff

	ThresholdsFile    string
	DefaultLayers     []string
	ReportURLTemplate string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// CORSAllowedOrigins enables CORS on the API for these origins.
	CORSAllowedOrigins []string

	// Mapbox geocoding for nearby search.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
	MapboxRateLimit float64 // requests per second

	// Snapshot publishing.
	KafkaBrokers       []string
	KafkaSnapshotTopic string
	KafkaEnabled       bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := parsePositiveDuration("FETCH_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	refreshInterval, err := time.ParseDuration(sharedcfg.EnvOrDefault("REFRESH_INTERVAL", "0s"))
	if err != nil || refreshInterval < 0 {
		return nil, errors.New("invalid REFRESH_INTERVAL")
	}
	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	mapboxRateLimit, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("MAPBOX_RATE_LIMIT", "10"), 64)
	if err != nil || mapboxRateLimit <= 0 {
		return nil, errors.New("invalid MAPBOX_RATE_LIMIT")
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		RecordsURL:            sharedcfg.EnvOrDefault("RECORDS_URL", "data/sightings.json"),
		PopulationURL:         sharedcfg.EnvOrDefault("POPULATION_URL", "data/population.json"),
		PopulationSQLiteTable: sharedcfg.EnvOrDefault("POPULATION_SQLITE_TABLE", "bigfoot_population"),
		BoundariesURL:         sharedcfg.EnvOrDefault("BOUNDARIES_URL", "data/us-states.json"),
		FetchTimeout:          fetchTimeout,
		RefreshInterval:       refreshInterval,
		FeedRetry:             os.Getenv("FEED_RETRY") == "true",

		ThresholdsFile:    os.Getenv("THRESHOLDS_FILE"),
		DefaultLayers:     parseList(sharedcfg.EnvOrDefault("DEFAULT_LAYERS", "by_count")),
		ReportURLTemplate: sharedcfg.EnvOrDefault("REPORT_URL_TEMPLATE", "https://bfro.net/GDB/show_report.asp?id=%s"),

		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		CORSAllowedOrigins: parseList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),
		MapboxRateLimit: mapboxRateLimit,

		KafkaBrokers:       brokers,
		KafkaSnapshotTopic: sharedcfg.EnvOrDefault("KAFKA_SNAPSHOT_TOPIC", "sighting-map-snapshots"),
		KafkaEnabled:       kafkaEnabled,
	}

	if cfg.RecordsURL == "" {
		return nil, errors.New("RECORDS_URL is required")
	}
	if cfg.PopulationURL == "" {
		return nil, errors.New("POPULATION_URL is required")
	}
	if cfg.BoundariesURL == "" {
		return nil, errors.New("BOUNDARIES_URL is required")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaSnapshotTopic == "" {
		return nil, errors.New("KAFKA_SNAPSHOT_TOPIC is required")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseList(s string) []string {
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
