package scoring

import (
	"context"
	"time"

	"github.com/dvloznov/fraud-scoring/internal/domain"
)

type mockHistory struct {
	rows []domain.HistoricalTransaction
	err  error
}

func (m *mockHistory) History(ctx context.Context, userID string, cutoff time.Time) ([]domain.HistoricalTransaction, error) {
	return m.rows, m.err
}

type mockStats struct {
	total         int64
	byCategory    map[string]int64
	uncategorized int64
	err           error
}

func (m *mockStats) CountTransactions(ctx context.Context) (int64, error) {
	return m.total, m.err
}

func (m *mockStats) CountByCategories(ctx context.Context, names []string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for _, name := range names {
		n += m.byCategory[name]
	}
	return n, nil
}

func (m *mockStats) CountUncategorized(ctx context.Context) (int64, error) {
	return m.uncategorized, m.err
}

type mockCategories struct {
	codes []domain.CategoryCode
	err   error
}

func (m *mockCategories) LookupMCCCode(ctx context.Context, name string) (string, bool, error) {
	if m.err != nil {
		return "", false, m.err
	}
	for _, c := range m.codes {
		if c.Name == name {
			return c.MCCCode, true, nil
		}
	}
	return "", false, nil
}

func (m *mockCategories) ListCategoryCodes(ctx context.Context) ([]domain.CategoryCode, error) {
	return m.codes, m.err
}

// mockPredictor returns a fixed probability and records what it was given.
type mockPredictor struct {
	PredictFunc func(ctx context.Context, fv domain.FeatureVector) (float64, error)
	calls       int
	last        domain.FeatureVector
}

func (m *mockPredictor) Predict(ctx context.Context, fv domain.FeatureVector) (float64, error) {
	m.calls++
	m.last = fv
	return m.PredictFunc(ctx, fv)
}

func fixedPredictor(p float64) *mockPredictor {
	return &mockPredictor{
		PredictFunc: func(ctx context.Context, fv domain.FeatureVector) (float64, error) {
			return p, nil
		},
	}
}

func failingPredictor(err error) *mockPredictor {
	return &mockPredictor{
		PredictFunc: func(ctx context.Context, fv domain.FeatureVector) (float64, error) {
			return 0, err
		},
	}
}

// tuesday14 is a Tuesday at 14:00.
var tuesday14 = time.Date(2024, time.March, 12, 14, 0, 0, 0, time.UTC)

func historyAt(base time.Time, amounts ...float64) []domain.HistoricalTransaction {
	rows := make([]domain.HistoricalTransaction, len(amounts))
	for i, a := range amounts {
		rows[i] = domain.HistoricalTransaction{
			Timestamp: base.Add(-time.Duration(i+1) * 6 * time.Hour),
			Amount:    a,
		}
	}
	return rows
}

var testCategories = &mockCategories{
	codes: []domain.CategoryCode{
		{Name: "Travel", MCCCode: "4770"},
		{Name: "Airlines", MCCCode: "3070"},
		{Name: "Groceries", MCCCode: "5411"},
		{Name: "Misc", MCCCode: "n/a"},
		{Name: "Blank", MCCCode: ""},
	},
}
