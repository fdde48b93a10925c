package scoring

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/fraud-scoring/internal/domain"
)

func newTestEngineer(history domain.HistoryAccessor, stats domain.LedgerStats) *FeatureEngineer {
	return NewFeatureEngineer(history, stats, NewCodeResolver(testCategories, DefaultPaymentCode), DefaultColdStartHours)
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestBuild_Scenario(t *testing.T) {
	history := &mockHistory{rows: historyAt(tuesday14, 10, 20, 30)}
	stats := &mockStats{total: 100, byCategory: map[string]int64{"Travel": 5, "Airlines": 3}}
	e := newTestEngineer(history, stats)

	tx := domain.Transaction{Amount: 50, Timestamp: tuesday14, PaymentMethod: "online", Category: "Travel"}
	codes := Codes{PaymentCode: 3, MCCSimple: 70, MCCResolved: true}

	fv, err := e.Build(context.Background(), tx, "user-1", codes)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if !almostEqual(fv.AmountZScore, 30/math.Sqrt(200.0/3), 1e-9) || !almostEqual(fv.AmountZScore, 3.674, 1e-3) {
		t.Errorf("AmountZScore = %v, want ~3.674", fv.AmountZScore)
	}
	if !almostEqual(fv.AmountLog, math.Log1p(50), 1e-12) {
		t.Errorf("AmountLog = %v, want log1p(50)", fv.AmountLog)
	}
	if fv.Hour != 14 {
		t.Errorf("Hour = %d, want 14", fv.Hour)
	}
	if fv.IsWeekend != 0 {
		t.Errorf("IsWeekend = %d, want 0", fv.IsWeekend)
	}
	if fv.PaymentCode != 3 {
		t.Errorf("PaymentCode = %d, want 3", fv.PaymentCode)
	}
	if fv.MCCSimple != 70 {
		t.Errorf("MCCSimple = %d, want 70", fv.MCCSimple)
	}
	if fv.IsUnusualHour != 0 {
		t.Errorf("IsUnusualHour = %d, want 0", fv.IsUnusualHour)
	}
	if fv.ClientTotalTx != 3 {
		t.Errorf("ClientTotalTx = %d, want 3", fv.ClientTotalTx)
	}
	if !almostEqual(fv.HoursSinceLastTx, 6, 1e-9) {
		t.Errorf("HoursSinceLastTx = %v, want 6", fv.HoursSinceLastTx)
	}
	if !almostEqual(fv.MCCRarity, 0.08, 1e-12) {
		t.Errorf("MCCRarity = %v, want 0.08", fv.MCCRarity)
	}
}

func TestBuild_ColdStart(t *testing.T) {
	tests := []struct {
		name    string
		history domain.HistoryAccessor
	}{
		{"no accessor", nil},
		{"empty history", &mockHistory{}},
		{"history read fails", &mockHistory{err: errors.New("timeout")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngineer(tt.history, &mockStats{total: 10})
			tx := domain.Transaction{Amount: 50, Timestamp: tuesday14}

			fv, err := e.Build(context.Background(), tx, "user-1", Codes{PaymentCode: 1})
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if fv.HoursSinceLastTx != 24.0 {
				t.Errorf("HoursSinceLastTx = %v, want 24", fv.HoursSinceLastTx)
			}
			if fv.ClientTotalTx != 0 {
				t.Errorf("ClientTotalTx = %d, want 0", fv.ClientTotalTx)
			}
			if fv.AmountZScore != 0 {
				t.Errorf("AmountZScore = %v, want 0", fv.AmountZScore)
			}
		})
	}
}

func TestBuild_InjectedColdStartHours(t *testing.T) {
	e := NewFeatureEngineer(nil, nil, NewCodeResolver(nil, DefaultPaymentCode), 48)
	fv, err := e.Build(context.Background(), domain.Transaction{Amount: 1, Timestamp: tuesday14}, "u", Codes{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if fv.HoursSinceLastTx != 48 {
		t.Errorf("HoursSinceLastTx = %v, want 48", fv.HoursSinceLastTx)
	}
}

func TestBuild_IdenticalAmounts(t *testing.T) {
	e := newTestEngineer(&mockHistory{rows: historyAt(tuesday14, 25, 25, 25, 25)}, nil)

	fv, err := e.Build(context.Background(), domain.Transaction{Amount: 900, Timestamp: tuesday14}, "u", Codes{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if fv.AmountZScore != 0 {
		t.Errorf("AmountZScore = %v, want 0 for zero std", fv.AmountZScore)
	}
}

func TestBuild_SingleHistoryRow(t *testing.T) {
	e := newTestEngineer(&mockHistory{rows: historyAt(tuesday14, 40)}, nil)

	fv, err := e.Build(context.Background(), domain.Transaction{Amount: 900, Timestamp: tuesday14}, "u", Codes{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if fv.AmountZScore != 0 {
		t.Errorf("AmountZScore = %v, want 0 for fewer than 2 rows", fv.AmountZScore)
	}
	if fv.ClientTotalTx != 1 {
		t.Errorf("ClientTotalTx = %d, want 1", fv.ClientTotalTx)
	}
}

func TestBuild_NegativeAmount(t *testing.T) {
	e := newTestEngineer(&mockHistory{rows: historyAt(tuesday14, 10, 20, 30)}, nil)

	fv, err := e.Build(context.Background(), domain.Transaction{Amount: -50, Timestamp: tuesday14}, "u", Codes{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !almostEqual(fv.AmountLog, math.Log1p(50), 1e-12) {
		t.Errorf("AmountLog = %v, want log1p(50)", fv.AmountLog)
	}
	if fv.AmountZScore < 0 {
		t.Errorf("AmountZScore = %v, want >= 0", fv.AmountZScore)
	}
}

func TestBuild_FiltersAndOrdersHistory(t *testing.T) {
	rows := []domain.HistoricalTransaction{
		{Timestamp: tuesday14.Add(-10 * time.Hour), Amount: 10},
		{Timestamp: tuesday14, Amount: 999},                    // same instant, not prior
		{Timestamp: tuesday14.Add(time.Hour), Amount: 999},     // later
		{Timestamp: tuesday14.Add(-2 * time.Hour), Amount: 20}, // most recent prior
	}
	e := newTestEngineer(&mockHistory{rows: rows}, nil)

	fv, err := e.Build(context.Background(), domain.Transaction{Amount: 15, Timestamp: tuesday14}, "u", Codes{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if fv.ClientTotalTx != 2 {
		t.Errorf("ClientTotalTx = %d, want 2", fv.ClientTotalTx)
	}
	if !almostEqual(fv.HoursSinceLastTx, 2, 1e-9) {
		t.Errorf("HoursSinceLastTx = %v, want 2", fv.HoursSinceLastTx)
	}
	if fv.AmountZScore != 0 {
		t.Errorf("AmountZScore = %v, want 0 (15 is the mean)", fv.AmountZScore)
	}
}

func TestBuild_UnusualHours(t *testing.T) {
	e := newTestEngineer(nil, nil)
	base := time.Date(2024, time.March, 12, 0, 0, 0, 0, time.UTC)

	for h := 0; h < 24; h++ {
		fv, err := e.Build(context.Background(), domain.Transaction{Amount: 1, Timestamp: base.Add(time.Duration(h) * time.Hour)}, "u", Codes{})
		if err != nil {
			t.Fatalf("Build() hour %d error = %v", h, err)
		}
		want := 0
		if h <= 5 {
			want = 1
		}
		if fv.Hour != h {
			t.Errorf("Hour = %d, want %d", fv.Hour, h)
		}
		if fv.IsUnusualHour != want {
			t.Errorf("hour %d: IsUnusualHour = %d, want %d", h, fv.IsUnusualHour, want)
		}
	}
}

func TestBuild_Weekend(t *testing.T) {
	e := newTestEngineer(nil, nil)
	// 2024-03-11 is a Monday.
	monday := time.Date(2024, time.March, 11, 12, 0, 0, 0, time.UTC)

	for d := 0; d < 7; d++ {
		ts := monday.AddDate(0, 0, d)
		fv, err := e.Build(context.Background(), domain.Transaction{Amount: 1, Timestamp: ts}, "u", Codes{})
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		want := 0
		if d >= 5 {
			want = 1
		}
		if fv.IsWeekend != want {
			t.Errorf("%s: IsWeekend = %d, want %d", ts.Weekday(), fv.IsWeekend, want)
		}
	}
}

func TestMCCRarity(t *testing.T) {
	tests := []struct {
		name  string
		stats *mockStats
		codes Codes
		want  float64
	}{
		{
			name:  "resolved category",
			stats: &mockStats{total: 200, byCategory: map[string]int64{"Groceries": 50}},
			codes: Codes{MCCSimple: 11, MCCResolved: true},
			want:  0.25,
		},
		{
			name:  "unresolved uses uncategorized",
			stats: &mockStats{total: 200, uncategorized: 20},
			codes: Codes{},
			want:  0.1,
		},
		{
			name:  "empty ledger",
			stats: &mockStats{},
			codes: Codes{MCCSimple: 70, MCCResolved: true},
			want:  0,
		},
		{
			name:  "no category maps to code",
			stats: &mockStats{total: 10},
			codes: Codes{MCCSimple: 42, MCCResolved: true},
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngineer(nil, tt.stats)
			got, err := e.mccRarity(context.Background(), tt.codes)
			if err != nil {
				t.Fatalf("mccRarity() error = %v", err)
			}
			if !almostEqual(got, tt.want, 1e-12) {
				t.Errorf("mccRarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuild_StatsFailure(t *testing.T) {
	e := newTestEngineer(nil, &mockStats{err: errors.New("disk I/O error")})

	_, err := e.Build(context.Background(), domain.Transaction{Amount: 1, Timestamp: tuesday14}, "u", Codes{})
	if !errors.Is(err, domain.ErrFeatureComputation) {
		t.Errorf("Build() error = %v, want ErrFeatureComputation", err)
	}
}

func TestBuild_NonFiniteAmount(t *testing.T) {
	e := newTestEngineer(nil, nil)

	_, err := e.Build(context.Background(), domain.Transaction{Amount: math.Inf(1), Timestamp: tuesday14}, "u", Codes{})
	if !errors.Is(err, domain.ErrFeatureComputation) {
		t.Errorf("Build() error = %v, want ErrFeatureComputation", err)
	}
}

func TestBuild_HistoryTimeoutFails(t *testing.T) {
	e := newTestEngineer(&mockHistory{err: context.DeadlineExceeded}, &mockStats{total: 10})

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := e.Build(ctx, domain.Transaction{Amount: 1, Timestamp: tuesday14}, "u", Codes{})
	if !errors.Is(err, domain.ErrHistoryUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Build() error = %v, want ErrHistoryUnavailable wrapping DeadlineExceeded", err)
	}
}

func TestCheckFinite_ReportsFirstFeatureInOrder(t *testing.T) {
	fv := domain.FeatureVector{
		AmountLog:        math.NaN(),
		HoursSinceLastTx: math.Inf(1),
		MCCRarity:        math.NaN(),
	}

	for i := 0; i < 20; i++ {
		err := checkFinite(fv)
		if err == nil || !strings.Contains(err.Error(), "amount_log") {
			t.Fatalf("checkFinite() error = %v, want amount_log", err)
		}
	}
}
