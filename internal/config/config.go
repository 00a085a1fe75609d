// Package config loads job settings in three layers: struct defaults, an
// optional YAML file, then environment variables, the highest layer winning.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces the job's environment variables, e.g.
// ETL_MONGO_URI → mongo.uri.
const envPrefix = "ETL_"

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "ETL_CONFIG_PATH"

// Config holds all job settings.
type Config struct {
	Log      LogConfig      `koanf:"log"`
	Source   SourceConfig   `koanf:"source"`
	Region   RegionConfig   `koanf:"region"`
	Mongo    MongoConfig    `koanf:"mongo"`
	Snapshot SnapshotConfig `koanf:"snapshot"`
	Mask     MaskConfig     `koanf:"mask"`
	Media    MediaConfig    `koanf:"media"`
	Renderer RendererConfig `koanf:"renderer"`
	Alert    AlertConfig    `koanf:"alert"`
	Kafka    KafkaConfig    `koanf:"kafka"`
	Publish  PublishConfig  `koanf:"publish"`
	Retry    RetryConfig    `koanf:"retry"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type SourceConfig struct {
	// DirectoryURL is the dataset directory listing scraped for the latest run.
	DirectoryURL string `koanf:"directory_url"`
	// URL forces a specific run endpoint, skipping discovery (backfills).
	URL string `koanf:"url"`
	// Hours is the number of forecast hours ingested per run. Hour 0 is
	// always skipped because its solar fields are missing upstream.
	Hours          int           `koanf:"hours"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	// RateLimit caps raw field requests per second against the data server.
	RateLimit float64 `koanf:"rate_limit"`
}

// RegionConfig bounds the ingested grid subset in degrees; longitudes use
// the 0–360 east convention.
type RegionConfig struct {
	North float64 `koanf:"north"`
	South float64 `koanf:"south"`
	East  float64 `koanf:"east"`
	West  float64 `koanf:"west"`
}

type MongoConfig struct {
	URI                 string        `koanf:"uri"`
	Database            string        `koanf:"database"`
	StatusCollection    string        `koanf:"status_collection"`
	ForecastsCollection string        `koanf:"forecasts_collection"`
	Timeout             time.Duration `koanf:"timeout"`
}

type SnapshotConfig struct {
	Bucket string `koanf:"bucket"`
	Object string `koanf:"object"`
}

type MaskConfig struct {
	// Path to the near-land mask JSON shipped with the job image.
	Path string `koanf:"path"`
}

type MediaConfig struct {
	BaseURL   string        `koanf:"base_url"`
	AccessKey string        `koanf:"access_key"`
	Timeout   time.Duration `koanf:"timeout"`
}

type RendererConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

type AlertConfig struct {
	URL    string `koanf:"url"`
	Phone  string `koanf:"phone"`
	Key    string `koanf:"key"`
	Sender string `koanf:"sender"`
}

type KafkaConfig struct {
	Enabled bool     `koanf:"enabled"`
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

type PublishConfig struct {
	ChunkSize int `koanf:"chunk_size"`
}

type RetryConfig struct {
	Attempts  int           `koanf:"attempts"`
	BaseDelay time.Duration `koanf:"base_delay"`
	MaxDelay  time.Duration `koanf:"max_delay"`
}

type MetricsConfig struct {
	PushgatewayURL string `koanf:"pushgateway_url"`
}

func defaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Source: SourceConfig{
			DirectoryURL:   "https://nomads.ncep.noaa.gov/dods/gfs_0p25_1hr",
			Hours:          120,
			RequestTimeout: 2 * time.Minute,
			RateLimit:      4,
		},
		Region: RegionConfig{
			North: 90,
			South: -90,
			East:  359.75,
			West:  0,
		},
		Mongo: MongoConfig{
			Database:            "w4h",
			StatusCollection:    "status",
			ForecastsCollection: "forecasts",
			Timeout:             30 * time.Second,
		},
		Snapshot: SnapshotConfig{
			Object: "thermal_data.json.gz",
		},
		Mask: MaskConfig{
			Path: "near_land.json",
		},
		Media: MediaConfig{
			Timeout: 5 * time.Minute,
		},
		Renderer: RendererConfig{
			Timeout: 5 * time.Minute,
		},
		Alert: AlertConfig{
			URL:    "https://textbelt.com/text",
			Sender: "W4H",
		},
		Kafka: KafkaConfig{
			Enabled: false,
			Topic:   "forecast-refreshes",
		},
		Publish: PublishConfig{
			ChunkSize: 2500,
		},
		Retry: RetryConfig{
			Attempts:  5,
			BaseDelay: 200 * time.Millisecond,
			MaxDelay:  5 * time.Second,
		},
	}
}

// Load reads configuration from defaults, the optional config file, and the
// environment, then validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envToPath), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Kafka.Brokers = splitBrokers(cfg.Kafka.Brokers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and basic sanity.
func (c *Config) Validate() error {
	if c.Mongo.URI == "" {
		return errors.New("mongo.uri is required")
	}
	if c.Snapshot.Bucket == "" {
		return errors.New("snapshot.bucket is required")
	}
	if c.Source.DirectoryURL == "" && c.Source.URL == "" {
		return errors.New("source.directory_url or source.url is required")
	}
	if c.Source.Hours <= 0 || c.Source.Hours > 199 {
		return fmt.Errorf("source.hours must be in 1..199, got %d", c.Source.Hours)
	}
	if c.Region.North <= c.Region.South {
		return fmt.Errorf("region.north (%g) must exceed region.south (%g)", c.Region.North, c.Region.South)
	}
	if c.Publish.ChunkSize <= 0 {
		return fmt.Errorf("publish.chunk_size must be positive, got %d", c.Publish.ChunkSize)
	}
	if c.Retry.Attempts <= 0 {
		return fmt.Errorf("retry.attempts must be positive, got %d", c.Retry.Attempts)
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka.enabled is true but kafka.brokers is not set")
		}
		if c.Kafka.Topic == "" {
			return errors.New("kafka.enabled is true but kafka.topic is not set")
		}
	}
	return nil
}

// envToPath maps ETL_MONGO_URI to mongo.uri: strip the prefix, lowercase,
// and turn the first underscore into the section separator. Section names
// are single words, so deeper keys keep their own underscores
// (ETL_SOURCE_DIRECTORY_URL → source.directory_url).
func envToPath(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	return strings.Replace(key, "_", ".", 1)
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range []string{"config.yaml", "config.yml"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// splitBrokers expands a single comma-separated broker entry, the form a
// flat environment variable produces.
func splitBrokers(brokers []string) []string {
	if len(brokers) != 1 || !strings.Contains(brokers[0], ",") {
		return brokers
	}
	parts := strings.Split(brokers[0], ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
