package config

import (
	"strings"
	"time"
)

// Config is the process configuration shared by the api, worker and CLI.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Model   ModelConfig   `mapstructure:"model"`
	Scoring ScoringConfig `mapstructure:"scoring"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	Redis   RedisConfig   `mapstructure:"redis"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Jobs    JobsConfig    `mapstructure:"jobs"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTPConfig struct {
	Port string `mapstructure:"port"`
}

// ModelConfig locates the model artifact. Path is a local file or a
// gs://bucket/object URI.
type ModelConfig struct {
	Path string `mapstructure:"path"`
}

// ScoringConfig holds the tunables that are safe to change per deployment.
// The decision threshold is deliberately absent: it comes from offline
// calibration of the artifact and is not an operator setting.
type ScoringConfig struct {
	Timeout            time.Duration `mapstructure:"timeout"`
	ColdStartHours     float64       `mapstructure:"cold_start_hours"`
	DefaultPaymentCode int           `mapstructure:"default_payment_code"`
}

// Ledger backends.
const (
	BackendBigQuery = "bigquery"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type LedgerConfig struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
	Project string `mapstructure:"project"`
	Dataset string `mapstructure:"dataset"`
}

// RedisConfig enables the category cache when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type NATSConfig struct {
	URL        string `mapstructure:"url"`
	Subject    string `mapstructure:"subject"`
	QueueGroup string `mapstructure:"queue_group"`
}

type JobsConfig struct {
	Workers    int `mapstructure:"workers"`
	BufferSize int `mapstructure:"buffer_size"`
	MaxRetries int `mapstructure:"max_retries"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		HTTP: HTTPConfig{
			Port: "8080",
		},
		Model: ModelConfig{
			Path: "models/fraud_detection_model.bin",
		},
		Scoring: ScoringConfig{
			Timeout:            2 * time.Second,
			ColdStartHours:     24.0,
			DefaultPaymentCode: 1,
		},
		Ledger: LedgerConfig{
			Backend: BackendSQLite,
			DSN:     "fraud.db",
			Dataset: "finance",
		},
		Redis: RedisConfig{
			TTL: time.Hour,
		},
		NATS: NATSConfig{
			Subject:    "fraud.score",
			QueueGroup: "fraud-scorers",
		},
		Jobs: JobsConfig{
			Workers:    5,
			BufferSize: 100,
			MaxRetries: 3,
		},
	}
}

// SQLDriver returns the database/sql driver name for SQL ledger backends.
func (l LedgerConfig) SQLDriver() string {
	switch strings.ToLower(l.Backend) {
	case BackendPostgres:
		return "postgres"
	case BackendSQLite:
		return "sqlite3"
	default:
		return ""
	}
}
