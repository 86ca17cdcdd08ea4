package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for powerlog-ingest.
// Values come from defaults, an optional YAML file, an optional .env file
// and environment variables, in that order.
type Config struct {
	Ingest   IngestConfig   `yaml:"ingest"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// IngestConfig controls file discovery and processing.
type IngestConfig struct {
	// DataFolder is the root of the base/<bucket>/<campaign>/<master>/ tree.
	DataFolder string `yaml:"data_folder"`

	// Measurement is the time-series measurement samples are written to.
	Measurement string `yaml:"measurement"`

	// Workers is the number of files decoded in parallel.
	Workers int `yaml:"workers"`

	// ParsedPrefix is prepended to a file name once it has been ingested.
	ParsedPrefix string `yaml:"parsed_prefix"`

	// FailedDir receives files that could not be decoded or written.
	// Empty leaves failed files in place.
	FailedDir string `yaml:"failed_dir"`

	// ReportDir receives the JSON run report. Empty disables the report file.
	ReportDir string `yaml:"report_dir"`

	// SkipProcessed skips files whose content hash is already in the ledger.
	SkipProcessed bool `yaml:"skip_processed"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`

	// MetaBucket receives run and file summaries.
	MetaBucket string `yaml:"meta_bucket"`

	// RetentionDays applies to buckets created on demand. 0 keeps data forever.
	RetentionDays int `yaml:"retention_days"`

	// WriteTimeout bounds a single file write, in seconds.
	WriteTimeout int `yaml:"write_timeout"`
}

// DatabaseConfig contains SQLite ledger settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// MetricsConfig contains Prometheus Pushgateway settings.
type MetricsConfig struct {
	Enabled        bool   `yaml:"enabled"`
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load builds the configuration.
//
// The loading order is:
//  1. Default values
//  2. YAML file values, when path is not empty
//  3. Variables from a .env file in the working directory (missing file ignored)
//  4. Environment variables
//
// Environment variables follow the pattern POWERLOG_SECTION_KEY, for example
// POWERLOG_DATA_FOLDER or POWERLOG_INFLUXDB_URL. The INFLUXDB_HOST,
// INFLUXDB_ADMIN_TOKEN and INFLUXDB_ORG names are also honoured.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// .env never overrides variables already set in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			DataFolder:   "./data",
			Measurement:  "campaign",
			Workers:      1,
			ParsedPrefix: "PARSED_",
		},
		InfluxDB: InfluxDBConfig{
			URL:          "http://localhost:8086",
			MetaBucket:   "powerview_meta",
			WriteTimeout: 60,
		},
		Database: DatabaseConfig{
			Path:        "./data/powerlog.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "powerlog-ingest",
			},
			QoS:         1,
			TopicPrefix: "powerlog",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Metrics: MetricsConfig{
			Job: "powerlog_ingest",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Ingest
	if v := os.Getenv("POWERLOG_DATA_FOLDER"); v != "" {
		cfg.Ingest.DataFolder = v
	}
	if v := os.Getenv("POWERLOG_MEASUREMENT"); v != "" {
		cfg.Ingest.Measurement = v
	}
	if v := os.Getenv("POWERLOG_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ingest.Workers = n
		}
	}
	if v := os.Getenv("POWERLOG_FAILED_DIR"); v != "" {
		cfg.Ingest.FailedDir = v
	}
	if v := os.Getenv("POWERLOG_REPORT_DIR"); v != "" {
		cfg.Ingest.ReportDir = v
	}

	// InfluxDB: deployment names first, POWERLOG_ names win.
	if v := os.Getenv("INFLUXDB_HOST"); v != "" {
		cfg.InfluxDB.URL = v
		cfg.InfluxDB.Enabled = true
	}
	if v := os.Getenv("INFLUXDB_ADMIN_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("INFLUXDB_ORG"); v != "" {
		cfg.InfluxDB.Org = v
	}
	if v := os.Getenv("POWERLOG_INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
		cfg.InfluxDB.Enabled = true
	}
	if v := os.Getenv("POWERLOG_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("POWERLOG_INFLUXDB_ORG"); v != "" {
		cfg.InfluxDB.Org = v
	}

	// Database
	if v := os.Getenv("POWERLOG_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("POWERLOG_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("POWERLOG_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("POWERLOG_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Metrics
	if v := os.Getenv("POWERLOG_PUSHGATEWAY_URL"); v != "" {
		cfg.Metrics.PushgatewayURL = v
		cfg.Metrics.Enabled = true
	}
}

// Validate checks the configuration for errors.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []string

	if c.Ingest.Workers < 1 {
		errs = append(errs, "ingest.workers must be at least 1")
	}
	if c.Ingest.Measurement == "" {
		errs = append(errs, "ingest.measurement is required")
	}
	if c.Ingest.ParsedPrefix == "" {
		errs = append(errs, "ingest.parsed_prefix is required")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required (set POWERLOG_INFLUXDB_TOKEN)")
		}
		if c.InfluxDB.Org == "" {
			errs = append(errs, "influxdb.org is required")
		}
	}
	if c.InfluxDB.RetentionDays < 0 {
		errs = append(errs, "influxdb.retention_days must not be negative")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Ingest.SkipProcessed && !c.Database.Enabled {
		errs = append(errs, "ingest.skip_processed requires database.enabled")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required")
	}

	if c.Metrics.Enabled && c.Metrics.PushgatewayURL == "" {
		errs = append(errs, "metrics.pushgateway_url is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetWriteTimeout returns the per-file InfluxDB write timeout.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.InfluxDB.WriteTimeout) * time.Second
}

// GetRetention returns the retention applied to new buckets. 0 means infinite.
func (c *Config) GetRetention() time.Duration {
	return time.Duration(c.InfluxDB.RetentionDays) * 24 * time.Hour
}
