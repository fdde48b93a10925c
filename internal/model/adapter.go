package model

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitryikh/leaves"
	"github.com/dvloznov/fraud-scoring/internal/domain"
	"github.com/dvloznov/fraud-scoring/internal/gcs"
	"github.com/rs/zerolog"
)

// Ensemble is the slice of a gradient-boosted tree model used for scoring.
// *leaves.Ensemble satisfies it.
type Ensemble interface {
	PredictSingle(fvals []float64, nEstimators int) float64
	NFeatures() int
}

// Loader reads and parses the model artifact at path.
type Loader func(ctx context.Context, path string) (Ensemble, error)

// Info describes the loaded model.
type Info struct {
	Path      string    `json:"path"`
	Loaded    bool      `json:"loaded"`
	NFeatures int       `json:"n_features,omitempty"`
	LoadedAt  time.Time `json:"loaded_at,omitempty"`
}

type handle struct {
	ensemble Ensemble
	loadedAt time.Time
}

// Adapter owns the fraud model. The artifact is loaded on first use and
// cached for the life of the process; once loaded it is never reloaded.
// A failed load is not cached, so the next call tries again.
type Adapter struct {
	path string
	load Loader
	log  zerolog.Logger

	mu     sync.Mutex
	handle atomic.Pointer[handle]
}

// NewAdapter creates an adapter for an XGBoost binary artifact at path,
// which is a local file or a gs:// URI read through store.
func NewAdapter(path string, store gcs.ArtifactStore, log zerolog.Logger) *Adapter {
	return NewAdapterWithLoader(path, XGBoostLoader(store), log)
}

// NewAdapterWithLoader creates an adapter with a custom loader.
func NewAdapterWithLoader(path string, load Loader, log zerolog.Logger) *Adapter {
	return &Adapter{
		path: path,
		load: load,
		log:  log.With().Str("component", "model").Str("model_path", path).Logger(),
	}
}

// Load returns the cached model, loading it if this is the first call.
// Concurrent first calls share one load.
func (a *Adapter) Load(ctx context.Context) (Ensemble, error) {
	if h := a.handle.Load(); h != nil {
		return h.ensemble, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if h := a.handle.Load(); h != nil {
		return h.ensemble, nil
	}

	start := time.Now()
	ens, err := a.load(ctx, a.path)
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to load fraud model")
		if errors.Is(err, domain.ErrModelUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	if n := ens.NFeatures(); n != len(domain.FeatureNames) {
		a.log.Error().Int("n_features", n).Msg("Fraud model has wrong input width")
		return nil, fmt.Errorf("%w: model expects %d features, want %d", domain.ErrModelUnavailable, n, len(domain.FeatureNames))
	}

	a.handle.Store(&handle{ensemble: ens, loadedAt: time.Now()})
	a.log.Info().
		Int("n_features", ens.NFeatures()).
		Dur("duration", time.Since(start)).
		Msg("Fraud model loaded")
	return ens, nil
}

// Info reports the adapter's state without triggering a load.
func (a *Adapter) Info() Info {
	info := Info{Path: a.path}
	if h := a.handle.Load(); h != nil {
		info.Loaded = true
		info.NFeatures = h.ensemble.NFeatures()
		info.LoadedAt = h.loadedAt
	}
	return info
}

// Predict returns the fraud-class probability for fv, clamped to [0, 1].
// It returns early with ErrInference when ctx ends before the model does.
func (a *Adapter) Predict(ctx context.Context, fv domain.FeatureVector) (float64, error) {
	ens, err := a.Load(ctx)
	if err != nil {
		return 0, err
	}

	type result struct {
		p   float64
		err error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%w: panic: %v", domain.ErrInference, r)}
			}
		}()
		done <- result{p: ens.PredictSingle(fv.Values(), 0)}
	}()

	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %v", domain.ErrInference, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return 0, r.err
		}
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", domain.ErrInference, err)
		}
		return clamp(r.p)
	}
}

func clamp(p float64) (float64, error) {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, fmt.Errorf("%w: model returned %v", domain.ErrInference, p)
	}
	return math.Max(0, math.Min(1, p)), nil
}

// XGBoostLoader loads XGBoost binary models with the logistic transform
// applied, so predictions are probabilities. gs:// paths are fetched
// through store.
func XGBoostLoader(store gcs.ArtifactStore) Loader {
	return func(ctx context.Context, path string) (Ensemble, error) {
		if gcs.IsURI(path) {
			if store == nil {
				return nil, fmt.Errorf("%w: no artifact store for %s", domain.ErrModelUnavailable, path)
			}
			data, err := store.Fetch(ctx, path)
			if err != nil {
				return nil, fmt.Errorf("%w: fetching %s: %v", domain.ErrModelUnavailable, path, err)
			}
			ens, err := leaves.XGEnsembleFromReader(bufio.NewReader(bytes.NewReader(data)), true)
			if err != nil {
				return nil, fmt.Errorf("%w: parsing %s: %v", domain.ErrModelUnavailable, gcs.FileName(path), err)
			}
			return ens, nil
		}

		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
		}
		ens, err := leaves.XGEnsembleFromFile(path, true)
		if err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %v", domain.ErrModelUnavailable, path, err)
		}
		return ens, nil
	}
}
