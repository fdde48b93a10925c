package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Scoring.ColdStartHours != 24.0 {
		t.Errorf("ColdStartHours = %v, want 24", cfg.Scoring.ColdStartHours)
	}
	if cfg.Scoring.DefaultPaymentCode != 1 {
		t.Errorf("DefaultPaymentCode = %d, want 1", cfg.Scoring.DefaultPaymentCode)
	}
	if cfg.Scoring.Timeout != 2*time.Second {
		t.Errorf("Timeout = %v, want 2s", cfg.Scoring.Timeout)
	}
	if cfg.Ledger.SQLDriver() != "sqlite3" {
		t.Errorf("SQLDriver() = %q, want sqlite3", cfg.Ledger.SQLDriver())
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  format: json
ledger:
  backend: postgres
  dsn: postgres://localhost/fraud?sslmode=disable
scoring:
  timeout: 500ms
  cold_start_hours: 12
jobs:
  workers: 2
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v, want debug/json", cfg.Log)
	}
	if cfg.Ledger.SQLDriver() != "postgres" {
		t.Errorf("SQLDriver() = %q, want postgres", cfg.Ledger.SQLDriver())
	}
	if cfg.Scoring.Timeout != 500*time.Millisecond {
		t.Errorf("Timeout = %v, want 500ms", cfg.Scoring.Timeout)
	}
	if cfg.Scoring.ColdStartHours != 12 {
		t.Errorf("ColdStartHours = %v, want 12", cfg.Scoring.ColdStartHours)
	}
	if cfg.Jobs.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Jobs.Workers)
	}
	// Untouched keys keep their defaults.
	if cfg.NATS.Subject != "fraud.score" {
		t.Errorf("NATS.Subject = %q, want fraud.score", cfg.NATS.Subject)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("FRAUD_MODEL_PATH", "gs://models/fraud.bin")
	t.Setenv("FRAUD_HTTP_PORT", "9090")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Model.Path != "gs://models/fraud.bin" {
		t.Errorf("Model.Path = %q", cfg.Model.Path)
	}
	if cfg.HTTP.Port != "9090" {
		t.Errorf("HTTP.Port = %q", cfg.HTTP.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"bigquery without project", func(c *Config) { c.Ledger.Backend = BackendBigQuery }, true},
		{"bigquery with project", func(c *Config) { c.Ledger.Backend = BackendBigQuery; c.Ledger.Project = "p" }, false},
		{"unknown backend", func(c *Config) { c.Ledger.Backend = "mongo" }, true},
		{"empty dsn", func(c *Config) { c.Ledger.DSN = "" }, true},
		{"empty model path", func(c *Config) { c.Model.Path = "" }, true},
		{"zero timeout", func(c *Config) { c.Scoring.Timeout = 0 }, true},
		{"negative cold start", func(c *Config) { c.Scoring.ColdStartHours = -1 }, true},
		{"no workers", func(c *Config) { c.Jobs.Workers = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
