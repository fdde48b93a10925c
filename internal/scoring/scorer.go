package scoring

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/dvloznov/fraud-scoring/internal/domain"
	"github.com/dvloznov/fraud-scoring/internal/logger"
	"github.com/rs/zerolog"
)

// FraudThreshold comes from offline calibration of the model artifact.
// A probability strictly above it is classified as fraud.
const FraudThreshold = 0.72

// DefaultTimeout bounds one scoring call, history reads and inference
// included.
const DefaultTimeout = 2 * time.Second

// Predictor runs the fraud model on a feature vector and returns the
// probability of the fraud class.
type Predictor interface {
	Predict(ctx context.Context, fv domain.FeatureVector) (float64, error)
}

// Config holds the scorer's named constants. Threshold is not read from
// configuration files; it is exposed here so tests can inject it.
type Config struct {
	Threshold          float64
	Timeout            time.Duration
	ColdStartHours     float64
	DefaultPaymentCode int
}

// DefaultConfig returns the production constants.
func DefaultConfig() Config {
	return Config{
		Threshold:          FraudThreshold,
		Timeout:            DefaultTimeout,
		ColdStartHours:     DefaultColdStartHours,
		DefaultPaymentCode: DefaultPaymentCode,
	}
}

// Deps are the read interfaces and model the scorer composes.
type Deps struct {
	History    domain.HistoryAccessor
	Stats      domain.LedgerStats
	Categories domain.CategoryLookup
	Model      Predictor
}

// Scorer classifies transactions. It is safe for concurrent use.
type Scorer struct {
	cfg      Config
	resolver *CodeResolver
	features *FeatureEngineer
	model    Predictor
	log      zerolog.Logger
}

// withDefaults replaces zero or negative fields with the production
// constants.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Threshold <= 0 {
		c.Threshold = def.Threshold
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.ColdStartHours <= 0 {
		c.ColdStartHours = def.ColdStartHours
	}
	if c.DefaultPaymentCode <= 0 {
		c.DefaultPaymentCode = def.DefaultPaymentCode
	}
	return c
}

// NewScorer wires a scorer from its collaborators. Zero-valued fields of cfg
// take their DefaultConfig values.
func NewScorer(cfg Config, deps Deps, log zerolog.Logger) *Scorer {
	cfg = cfg.withDefaults()
	resolver := NewCodeResolver(deps.Categories, cfg.DefaultPaymentCode)
	return &Scorer{
		cfg:      cfg,
		resolver: resolver,
		features: NewFeatureEngineer(deps.History, deps.Stats, resolver, cfg.ColdStartHours),
		model:    deps.Model,
		log:      log,
	}
}

// Evaluation is the full trace of one scoring attempt.
type Evaluation struct {
	Codes    Codes                `json:"-"`
	Features domain.FeatureVector `json:"features"`
	Result   domain.ScoringResult `json:"result"`
	Duration time.Duration        `json:"duration"`
}

// Score classifies tx for userID. It never fails: any error while resolving
// codes, building features, loading the model or running inference yields
// the non-fraud default so the transaction write it accompanies goes
// through. The failure is logged here, once.
func (s *Scorer) Score(ctx context.Context, tx domain.Transaction, userID string) domain.ScoringResult {
	log := logger.ForTransaction(s.log, userID, tx.ID)

	ev, err := s.Evaluate(logger.WithContext(ctx, log), tx, userID)
	if err != nil {
		log.Warn().
			Err(err).
			Str("failure_kind", domain.FailureKind(err)).
			Dur("duration", ev.Duration).
			Msg("Fraud scoring failed, returning non-fraud default")
		return domain.ScoringResult{}
	}

	log.Debug().
		Float64("fraud_probability", ev.Result.FraudProbability).
		Int("is_fraud", ev.Result.IsFraud).
		Float64("threshold", s.cfg.Threshold).
		Dur("duration", ev.Duration).
		Msg("Fraud check completed")
	return ev.Result
}

// Evaluate runs the scoring steps and reports the first failure instead of
// failing open. Score is the entry point for transaction flows; Evaluate is
// for diagnostics.
func (s *Scorer) Evaluate(ctx context.Context, tx domain.Transaction, userID string) (ev Evaluation, err error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", domain.ErrFeatureComputation, r)
		}
		ev.Duration = time.Since(start)
	}()

	codes := Codes{PaymentCode: s.resolver.ResolvePaymentCode(tx.PaymentMethod)}
	codes.MCCSimple, codes.MCCResolved = s.resolver.resolveMCC(ctx, tx.Category)
	ev.Codes = codes

	fv, err := s.features.Build(ctx, tx, userID, codes)
	if err != nil {
		return ev, fmt.Errorf("Evaluate: building features: %w", err)
	}
	ev.Features = fv

	if s.model == nil {
		return ev, fmt.Errorf("Evaluate: %w: no model configured", domain.ErrModelUnavailable)
	}
	p, err := s.model.Predict(ctx, fv)
	if err != nil {
		return ev, fmt.Errorf("Evaluate: predicting: %w", err)
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return ev, fmt.Errorf("Evaluate: %w: probability %v out of range", domain.ErrInference, p)
	}

	ev.Result = domain.ScoringResult{
		IsFraud:          s.decide(p),
		FraudProbability: p,
	}
	return ev, nil
}

func (s *Scorer) decide(p float64) int {
	if p > s.cfg.Threshold {
		return 1
	}
	return 0
}
