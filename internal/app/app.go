// Package app wires configuration into the scoring services shared by the
// api, worker and fraudctl binaries.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/fraud-scoring/internal/config"
	"github.com/dvloznov/fraud-scoring/internal/domain"
	"github.com/dvloznov/fraud-scoring/internal/gcs"
	infraBQ "github.com/dvloznov/fraud-scoring/internal/infra/bigquery"
	"github.com/dvloznov/fraud-scoring/internal/infra/rediscache"
	"github.com/dvloznov/fraud-scoring/internal/infra/sqlstore"
	"github.com/dvloznov/fraud-scoring/internal/jobs/inmemory"
	"github.com/dvloznov/fraud-scoring/internal/model"
	"github.com/dvloznov/fraud-scoring/internal/scoring"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Services holds the long-lived collaborators of a scoring process.
type Services struct {
	Ledger     domain.Ledger
	Categories domain.CategoryLookup
	Model      *model.Adapter
	Scorer     *scoring.Scorer

	// Cache is nil when redis.addr is not configured.
	Cache *rediscache.CategoryCache

	redis redis.UniversalClient
	log   zerolog.Logger
}

// Build opens the ledger, the optional category cache and the model
// adapter, and composes the scorer over them. The model is loaded lazily on
// the first score; call Services.Model.Load to fail fast at startup.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Services, error) {
	ledger, err := OpenLedger(ctx, cfg.Ledger)
	if err != nil {
		return nil, err
	}

	s := &Services{
		Ledger:     ledger,
		Categories: ledger,
		log:        log,
	}

	if cfg.Redis.Addr != "" {
		s.redis = NewRedisClient(cfg.Redis)
		s.Cache = rediscache.NewCategoryCache(s.redis, ledger, cfg.Redis.TTL, log)
		s.Categories = s.Cache
		log.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", cfg.Redis.TTL).Msg("Category cache enabled")
	}

	s.Model = model.NewAdapter(cfg.Model.Path, gcs.NewStorage(), log)
	s.Scorer = scoring.NewScorer(ScoringConfig(cfg.Scoring), scoring.Deps{
		History:    ledger,
		Stats:      ledger,
		Categories: s.Categories,
		Model:      s.Model,
	}, log)

	return s, nil
}

// Close releases the ledger and cache connections.
func (s *Services) Close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to close redis client")
		}
	}
	if s.Ledger != nil {
		if err := s.Ledger.Close(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to close ledger")
		}
	}
}

// OpenLedger connects to the configured ledger backend.
func OpenLedger(ctx context.Context, cfg config.LedgerConfig) (domain.Ledger, error) {
	switch strings.ToLower(cfg.Backend) {
	case config.BackendBigQuery:
		ledger, err := infraBQ.NewLedger(ctx, cfg.Project, cfg.Dataset)
		if err != nil {
			return nil, fmt.Errorf("OpenLedger: %w", err)
		}
		return ledger, nil
	case config.BackendPostgres, config.BackendSQLite:
		store, err := sqlstore.Open(ctx, cfg.SQLDriver(), cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("OpenLedger: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("OpenLedger: unknown backend %q", cfg.Backend)
	}
}

// NewRedisClient creates the client behind the category cache.
func NewRedisClient(cfg config.RedisConfig) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// ScoringConfig maps the operator settings onto the scorer constants. The
// decision threshold always comes from scoring.FraudThreshold.
func ScoringConfig(cfg config.ScoringConfig) scoring.Config {
	sc := scoring.DefaultConfig()
	if cfg.Timeout > 0 {
		sc.Timeout = cfg.Timeout
	}
	if cfg.ColdStartHours > 0 {
		sc.ColdStartHours = cfg.ColdStartHours
	}
	if cfg.DefaultPaymentCode > 0 {
		sc.DefaultPaymentCode = cfg.DefaultPaymentCode
	}
	return sc
}

// QueueOptions maps the jobs settings onto the in-memory queue.
func QueueOptions(cfg config.JobsConfig) inmemory.QueueOptions {
	return inmemory.QueueOptions{
		BufferSize: cfg.BufferSize,
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
	}
}
