package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. FRAUD_LEDGER_DSN.
const EnvPrefix = "FRAUD"

// Load builds the configuration from defaults, an optional YAML file and
// FRAUD_* environment variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	setDefaults(v, cfg)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("Load: reading %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("Load: decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that
// the config file does not mention.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("http.port", cfg.HTTP.Port)
	v.SetDefault("model.path", cfg.Model.Path)
	v.SetDefault("scoring.timeout", cfg.Scoring.Timeout)
	v.SetDefault("scoring.cold_start_hours", cfg.Scoring.ColdStartHours)
	v.SetDefault("scoring.default_payment_code", cfg.Scoring.DefaultPaymentCode)
	v.SetDefault("ledger.backend", cfg.Ledger.Backend)
	v.SetDefault("ledger.dsn", cfg.Ledger.DSN)
	v.SetDefault("ledger.project", cfg.Ledger.Project)
	v.SetDefault("ledger.dataset", cfg.Ledger.Dataset)
	v.SetDefault("redis.addr", cfg.Redis.Addr)
	v.SetDefault("redis.password", cfg.Redis.Password)
	v.SetDefault("redis.db", cfg.Redis.DB)
	v.SetDefault("redis.ttl", cfg.Redis.TTL)
	v.SetDefault("nats.url", cfg.NATS.URL)
	v.SetDefault("nats.subject", cfg.NATS.Subject)
	v.SetDefault("nats.queue_group", cfg.NATS.QueueGroup)
	v.SetDefault("jobs.workers", cfg.Jobs.Workers)
	v.SetDefault("jobs.buffer_size", cfg.Jobs.BufferSize)
	v.SetDefault("jobs.max_retries", cfg.Jobs.MaxRetries)
}

// Validate rejects configurations the services cannot start with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Ledger.Backend) {
	case BackendBigQuery:
		if c.Ledger.Project == "" {
			return fmt.Errorf("config: ledger.project is required for the bigquery backend")
		}
	case BackendPostgres, BackendSQLite:
		if c.Ledger.DSN == "" {
			return fmt.Errorf("config: ledger.dsn is required for the %s backend", c.Ledger.Backend)
		}
	default:
		return fmt.Errorf("config: unknown ledger backend %q", c.Ledger.Backend)
	}
	if c.Model.Path == "" {
		return fmt.Errorf("config: model.path is required")
	}
	if c.Scoring.Timeout <= 0 {
		return fmt.Errorf("config: scoring.timeout must be > 0")
	}
	if c.Scoring.ColdStartHours < 0 {
		return fmt.Errorf("config: scoring.cold_start_hours must be >= 0")
	}
	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("config: jobs.workers must be > 0")
	}
	return nil
}
