package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dvloznov/fraud-scoring/internal/domain"
	"github.com/dvloznov/fraud-scoring/internal/logger"
)

// DefaultColdStartHours is used for hours_since_last_tx when a user has no
// prior transaction. Zero or infinity would push first-time users towards
// the fraud class.
const DefaultColdStartHours = 24.0

// Codes are the categorical codes resolved for one transaction.
type Codes struct {
	PaymentCode int
	MCCSimple   int
	// MCCResolved is false when the category was absent or had no usable
	// code; rarity is then measured against uncategorized transactions.
	MCCResolved bool
}

// FeatureEngineer derives the model features of one transaction.
type FeatureEngineer struct {
	history        domain.HistoryAccessor
	stats          domain.LedgerStats
	resolver       *CodeResolver
	coldStartHours float64
}

// NewFeatureEngineer creates a feature engineer. history may be nil, in
// which case every user is treated as a cold start.
func NewFeatureEngineer(history domain.HistoryAccessor, stats domain.LedgerStats, resolver *CodeResolver, coldStartHours float64) *FeatureEngineer {
	return &FeatureEngineer{
		history:        history,
		stats:          stats,
		resolver:       resolver,
		coldStartHours: coldStartHours,
	}
}

// Build computes the feature vector for tx against userID's history.
func (e *FeatureEngineer) Build(ctx context.Context, tx domain.Transaction, userID string, codes Codes) (domain.FeatureVector, error) {
	hour := tx.Timestamp.Hour()

	fv := domain.FeatureVector{
		AmountLog:     math.Log1p(math.Abs(tx.Amount)),
		Hour:          hour,
		IsWeekend:     isWeekend(tx.Timestamp),
		PaymentCode:   codes.PaymentCode,
		MCCSimple:     codes.MCCSimple,
		IsUnusualHour: isUnusualHour(hour),
	}

	history, err := e.priorHistory(ctx, userID, tx.Timestamp)
	if err != nil {
		return domain.FeatureVector{}, err
	}

	fv.ClientTotalTx = len(history)
	fv.HoursSinceLastTx = e.hoursSinceLast(tx.Timestamp, history)
	fv.AmountZScore = amountZScore(math.Abs(tx.Amount), history)

	rarity, err := e.mccRarity(ctx, codes)
	if err != nil {
		return domain.FeatureVector{}, err
	}
	fv.MCCRarity = rarity

	if err := checkFinite(fv); err != nil {
		return domain.FeatureVector{}, err
	}
	return fv, nil
}

// priorHistory reads the user's history and enforces the cutoff and order
// contract locally. A failed read is a cold start, unless the scoring call
// itself has run out of time.
func (e *FeatureEngineer) priorHistory(ctx context.Context, userID string, cutoff time.Time) ([]domain.HistoricalTransaction, error) {
	if e.history == nil {
		return nil, nil
	}

	rows, err := e.history.History(ctx, userID, cutoff)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrHistoryUnavailable, ctxErr)
		}
		log := logger.FromContext(ctx)
		log.Warn().
			Err(fmt.Errorf("%w: %v", domain.ErrHistoryUnavailable, err)).
			Str("user_id", userID).
			Msg("History unavailable, scoring as cold start")
		return nil, nil
	}

	prior := make([]domain.HistoricalTransaction, 0, len(rows))
	for _, r := range rows {
		if r.Timestamp.Before(cutoff) {
			prior = append(prior, r)
		}
	}
	sort.SliceStable(prior, func(i, j int) bool {
		return prior[i].Timestamp.After(prior[j].Timestamp)
	})
	return prior, nil
}

func (e *FeatureEngineer) hoursSinceLast(ts time.Time, history []domain.HistoricalTransaction) float64 {
	if len(history) == 0 {
		return e.coldStartHours
	}
	return ts.Sub(history[0].Timestamp).Hours()
}

// mccRarity is the share of all ledger transactions that fall in the same
// simplified merchant category.
func (e *FeatureEngineer) mccRarity(ctx context.Context, codes Codes) (float64, error) {
	if e.stats == nil {
		return 0, nil
	}

	total, err := e.stats.CountTransactions(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: counting transactions: %v", domain.ErrFeatureComputation, err)
	}
	if total <= 0 {
		total = 1
	}

	var matching int64
	if codes.MCCResolved {
		names, err := e.resolver.CategoriesForMCC(ctx, codes.MCCSimple)
		if err != nil {
			return 0, fmt.Errorf("%w: listing categories for mcc %d: %v", domain.ErrFeatureComputation, codes.MCCSimple, err)
		}
		if len(names) > 0 {
			matching, err = e.stats.CountByCategories(ctx, names)
			if err != nil {
				return 0, fmt.Errorf("%w: counting mcc %d: %v", domain.ErrFeatureComputation, codes.MCCSimple, err)
			}
		}
	} else {
		matching, err = e.stats.CountUncategorized(ctx)
		if err != nil {
			return 0, fmt.Errorf("%w: counting uncategorized: %v", domain.ErrFeatureComputation, err)
		}
	}

	return float64(matching) / float64(total), nil
}

// amountZScore measures how far amount sits from the user's past amounts,
// in population standard deviations, regardless of direction.
func amountZScore(amount float64, history []domain.HistoricalTransaction) float64 {
	if len(history) < 2 {
		return 0
	}

	var sum float64
	for _, h := range history {
		sum += h.Amount
	}
	mean := sum / float64(len(history))

	var sq float64
	for _, h := range history {
		d := h.Amount - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(history)))
	if std <= 0 {
		return 0
	}
	return math.Abs(amount-mean) / std
}

func isWeekend(ts time.Time) int {
	switch ts.Weekday() {
	case time.Saturday, time.Sunday:
		return 1
	}
	return 0
}

func isUnusualHour(hour int) int {
	if hour >= 0 && hour <= 5 {
		return 1
	}
	return 0
}

func checkFinite(fv domain.FeatureVector) error {
	floats := []struct {
		name  string
		value float64
	}{
		{"amount_log", fv.AmountLog},
		{"hours_since_last_tx", fv.HoursSinceLastTx},
		{"amount_zscore", fv.AmountZScore},
		{"mcc_rarity", fv.MCCRarity},
	}
	for _, f := range floats {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s is not finite (%v)", domain.ErrFeatureComputation, f.name, f.value)
		}
	}
	return nil
}
