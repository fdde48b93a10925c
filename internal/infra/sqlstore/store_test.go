package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/fraud-scoring/internal/domain"
)

// createTestStore opens a SQLite ledger in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "ledger", "test.db")
	store, err := Open(context.Background(), DriverSQLite, dbPath)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

var base = time.Date(2024, time.March, 12, 14, 0, 0, 0, time.UTC)

func seedTransactions(t *testing.T, s *Store, userID string, txs ...domain.Transaction) []string {
	t.Helper()
	ids := make([]string, len(txs))
	for i, tx := range txs {
		id, err := s.InsertTransaction(context.Background(), userID, tx)
		if err != nil {
			t.Fatalf("Failed to seed transaction: %v", err)
		}
		ids[i] = id
	}
	return ids
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "x"); err == nil {
		t.Error("Expected error for unsupported driver")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	s := createTestStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Errorf("second Migrate() error = %v", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestHistory_StrictCutoffAndOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seedTransactions(t, s, "user-1",
		domain.Transaction{Amount: 10, Timestamp: base.Add(-48 * time.Hour)},
		domain.Transaction{Amount: 30, Timestamp: base.Add(-2 * time.Hour)},
		domain.Transaction{Amount: 20, Timestamp: base.Add(-24 * time.Hour)},
		domain.Transaction{Amount: 99, Timestamp: base},                 // same instant
		domain.Transaction{Amount: 77, Timestamp: base.Add(time.Hour)}, // later
	)
	seedTransactions(t, s, "user-2", domain.Transaction{Amount: 5, Timestamp: base.Add(-time.Hour)})

	got, err := s.History(ctx, "user-1", base)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}

	wantAmounts := []float64{30, 20, 10}
	if len(got) != len(wantAmounts) {
		t.Fatalf("History() returned %d rows, want %d: %+v", len(got), len(wantAmounts), got)
	}
	for i, want := range wantAmounts {
		if got[i].Amount != want {
			t.Errorf("row %d amount = %v, want %v", i, got[i].Amount, want)
		}
		if !got[i].Timestamp.Before(base) {
			t.Errorf("row %d at %v is not before the cutoff", i, got[i].Timestamp)
		}
	}
	if !got[0].Timestamp.Equal(base.Add(-2 * time.Hour)) {
		t.Errorf("most recent row at %v, want %v", got[0].Timestamp, base.Add(-2*time.Hour))
	}
}

func TestHistory_UnknownUser(t *testing.T) {
	s := createTestStore(t)

	got, err := s.History(context.Background(), "nobody", base)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("History() = %v, want empty", got)
	}
}

func TestHistory_DecimalAmounts(t *testing.T) {
	s := createTestStore(t)
	seedTransactions(t, s, "u", domain.Transaction{Amount: 12.34, Timestamp: base.Add(-time.Hour)})

	got, err := s.History(context.Background(), "u", base)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(got) != 1 || got[0].Amount != 12.34 {
		t.Errorf("History() = %+v, want one row of 12.34", got)
	}
}

func TestCounts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seedTransactions(t, s, "u",
		domain.Transaction{Amount: 1, Timestamp: base, Category: "Travel"},
		domain.Transaction{Amount: 1, Timestamp: base, Category: "Travel"},
		domain.Transaction{Amount: 1, Timestamp: base, Category: "Airlines"},
		domain.Transaction{Amount: 1, Timestamp: base, Category: "Groceries"},
		domain.Transaction{Amount: 1, Timestamp: base},
	)

	total, err := s.CountTransactions(ctx)
	if err != nil || total != 5 {
		t.Errorf("CountTransactions() = %d, %v, want 5", total, err)
	}

	n, err := s.CountByCategories(ctx, []string{"Travel", "Airlines"})
	if err != nil || n != 3 {
		t.Errorf("CountByCategories() = %d, %v, want 3", n, err)
	}

	n, err = s.CountByCategories(ctx, nil)
	if err != nil || n != 0 {
		t.Errorf("CountByCategories(nil) = %d, %v, want 0", n, err)
	}

	n, err = s.CountUncategorized(ctx)
	if err != nil || n != 1 {
		t.Errorf("CountUncategorized() = %d, %v, want 1", n, err)
	}
}

func TestCategories(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, c := range []domain.CategoryCode{
		{Name: "Travel", MCCCode: "4770"},
		{Name: "Misc"},
		{Name: "Groceries", MCCCode: "5411"},
	} {
		if err := s.UpsertCategory(ctx, c); err != nil {
			t.Fatalf("UpsertCategory() error = %v", err)
		}
	}
	if err := s.UpsertCategory(ctx, domain.CategoryCode{Name: "Groceries", MCCCode: "5412"}); err != nil {
		t.Fatalf("UpsertCategory() update error = %v", err)
	}

	tests := []struct {
		name      string
		wantCode  string
		wantFound bool
	}{
		{"Travel", "4770", true},
		{"Groceries", "5412", true},
		{"Misc", "", true},
		{"Unknown", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, found, err := s.LookupMCCCode(ctx, tt.name)
			if err != nil {
				t.Fatalf("LookupMCCCode() error = %v", err)
			}
			if code != tt.wantCode || found != tt.wantFound {
				t.Errorf("LookupMCCCode(%q) = (%q, %v), want (%q, %v)", tt.name, code, found, tt.wantCode, tt.wantFound)
			}
		})
	}

	all, err := s.ListCategoryCodes(ctx)
	if err != nil {
		t.Fatalf("ListCategoryCodes() error = %v", err)
	}
	if len(all) != 3 || all[0].Name != "Groceries" || all[2].Name != "Travel" {
		t.Errorf("ListCategoryCodes() = %+v, want 3 rows ordered by name", all)
	}
}

func TestRecordScoreAndFraudHistory(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ids := seedTransactions(t, s, "user-1",
		domain.Transaction{Amount: 10, Timestamp: base.Add(-72 * time.Hour), PaymentMethod: "Chip Transaction"},
		domain.Transaction{Amount: 900, Timestamp: base.Add(-24 * time.Hour), Category: "Travel"},
		domain.Transaction{Amount: 20, Timestamp: base},
	)
	seedTransactions(t, s, "user-2", domain.Transaction{Amount: 5, Timestamp: base})

	if err := s.RecordScore(ctx, ids[0], domain.ScoringResult{IsFraud: 0, FraudProbability: 0.1}); err != nil {
		t.Fatalf("RecordScore() error = %v", err)
	}
	if err := s.RecordScore(ctx, ids[1], domain.ScoringResult{IsFraud: 1, FraudProbability: 0.93}); err != nil {
		t.Fatalf("RecordScore() error = %v", err)
	}

	if err := s.RecordScore(ctx, "missing", domain.ScoringResult{}); !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Errorf("RecordScore(missing) error = %v, want ErrTransactionNotFound", err)
	}

	h, err := s.FraudHistory(ctx, domain.FraudHistoryFilter{UserID: "user-1"})
	if err != nil {
		t.Fatalf("FraudHistory() error = %v", err)
	}
	if h.TotalCount != 2 || h.FraudCount != 1 || h.LegitimateCount != 1 {
		t.Errorf("counts = %d/%d/%d, want 2/1/1", h.TotalCount, h.FraudCount, h.LegitimateCount)
	}
	if len(h.Transactions) != 2 || h.Transactions[0].TransactionID != ids[1] {
		t.Fatalf("Transactions = %+v, want the fraud row first", h.Transactions)
	}
	first := h.Transactions[0]
	if first.Amount != 900 || first.Category != "Travel" || first.FraudProbability != 0.93 {
		t.Errorf("first row = %+v", first)
	}
	if h.Transactions[1].PaymentMethod != "Chip Transaction" {
		t.Errorf("PaymentMethod = %q", h.Transactions[1].PaymentMethod)
	}

	fraud := 1
	h, err = s.FraudHistory(ctx, domain.FraudHistoryFilter{UserID: "user-1", IsFraud: &fraud})
	if err != nil {
		t.Fatalf("FraudHistory(is_fraud) error = %v", err)
	}
	if h.TotalCount != 1 || len(h.Transactions) != 1 {
		t.Errorf("is_fraud filter: total %d, rows %d, want 1/1", h.TotalCount, len(h.Transactions))
	}

	// A date-only end bound covers the whole day.
	end := time.Date(2024, time.March, 9, 0, 0, 0, 0, time.UTC)
	h, err = s.FraudHistory(ctx, domain.FraudHistoryFilter{UserID: "user-1", End: &end})
	if err != nil {
		t.Fatalf("FraudHistory(end) error = %v", err)
	}
	if h.TotalCount != 1 {
		t.Errorf("end filter total = %d, want 1", h.TotalCount)
	}

	h, err = s.FraudHistory(ctx, domain.FraudHistoryFilter{UserID: "user-1", Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("FraudHistory(page) error = %v", err)
	}
	if h.TotalCount != 2 || len(h.Transactions) != 1 || h.Transactions[0].TransactionID != ids[0] {
		t.Errorf("page = %+v, want second row only", h)
	}
}

func TestHistoryWhere_Numbering(t *testing.T) {
	start := base
	fraud := 0
	where, args := historyWhere(domain.FraudHistoryFilter{UserID: "u", Start: &start, IsFraud: &fraud})

	want := "is_fraud IS NOT NULL AND user_id = $1 AND date >= $2 AND is_fraud = $3"
	if where != want {
		t.Errorf("where = %q, want %q", where, want)
	}
	if len(args) != 3 {
		t.Errorf("got %d args, want 3", len(args))
	}
}

func TestPlaceholders(t *testing.T) {
	if got := placeholders(3, 3); got != "$3, $4, $5" {
		t.Errorf("placeholders(3, 3) = %q", got)
	}
}
