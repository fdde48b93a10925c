package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/fraud-scoring/internal/domain"
	"github.com/google/uuid"
)

// Ledger is the BigQuery implementation of the scoring read interfaces and
// the score write-back. It holds a shared BigQuery client to avoid creating
// a new connection for each operation.
type Ledger struct {
	client *bigquery.Client
	ds     Dataset
}

var (
	_ domain.HistoryAccessor = (*Ledger)(nil)
	_ domain.LedgerStats     = (*Ledger)(nil)
	_ domain.CategoryLookup  = (*Ledger)(nil)
	_ domain.ScoreRecorder   = (*Ledger)(nil)
	_ domain.Ledger          = (*Ledger)(nil)
)

// NewLedger creates a Ledger with its own BigQuery client.
func NewLedger(ctx context.Context, project, dataset string) (*Ledger, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewLedger: creating client: %w", err)
	}
	return NewLedgerWithClient(client, Dataset{Project: project, Name: dataset}), nil
}

// NewLedgerWithClient creates a Ledger over an existing client.
func NewLedgerWithClient(client *bigquery.Client, ds Dataset) *Ledger {
	return &Ledger{client: client, ds: ds}
}

// Close closes the BigQuery client connection.
func (l *Ledger) Close() error {
	if l.client != nil {
		return l.client.Close()
	}
	return nil
}

// History delegates to HistoryWithClient with the shared client.
func (l *Ledger) History(ctx context.Context, userID string, cutoff time.Time) ([]domain.HistoricalTransaction, error) {
	return HistoryWithClient(ctx, l.client, l.ds, userID, cutoff)
}

// CountTransactions delegates to CountTransactionsWithClient with the shared client.
func (l *Ledger) CountTransactions(ctx context.Context) (int64, error) {
	return CountTransactionsWithClient(ctx, l.client, l.ds)
}

// CountByCategories delegates to CountByCategoriesWithClient with the shared client.
func (l *Ledger) CountByCategories(ctx context.Context, names []string) (int64, error) {
	return CountByCategoriesWithClient(ctx, l.client, l.ds, names)
}

// CountUncategorized delegates to CountUncategorizedWithClient with the shared client.
func (l *Ledger) CountUncategorized(ctx context.Context) (int64, error) {
	return CountUncategorizedWithClient(ctx, l.client, l.ds)
}

// LookupMCCCode delegates to LookupMCCCodeWithClient with the shared client.
func (l *Ledger) LookupMCCCode(ctx context.Context, name string) (string, bool, error) {
	return LookupMCCCodeWithClient(ctx, l.client, l.ds, name)
}

// ListCategoryCodes delegates to ListCategoryCodesWithClient with the shared client.
func (l *Ledger) ListCategoryCodes(ctx context.Context) ([]domain.CategoryCode, error) {
	return ListCategoryCodesWithClient(ctx, l.client, l.ds)
}

// UpsertCategory delegates to UpsertCategoryWithClient with the shared client.
func (l *Ledger) UpsertCategory(ctx context.Context, c domain.CategoryCode) error {
	return UpsertCategoryWithClient(ctx, l.client, l.ds, c)
}

// RecordScore delegates to RecordScoreWithClient with the shared client.
func (l *Ledger) RecordScore(ctx context.Context, transactionID string, result domain.ScoringResult) error {
	return RecordScoreWithClient(ctx, l.client, l.ds, transactionID, result)
}

// FraudHistory delegates to FraudHistoryWithClient with the shared client.
func (l *Ledger) FraudHistory(ctx context.Context, filter domain.FraudHistoryFilter) (*domain.FraudHistory, error) {
	return FraudHistoryWithClient(ctx, l.client, l.ds, filter)
}

// InsertTransaction streams one unscored transaction into the ledger and
// returns its id. A new id is generated when tx.ID is empty.
func (l *Ledger) InsertTransaction(ctx context.Context, userID string, tx domain.Transaction) (string, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if err := InsertTransactionsWithClient(ctx, l.client, l.ds, []*FraudTransactionRow{NewFraudTransactionRow(userID, tx)}); err != nil {
		return "", err
	}
	return tx.ID, nil
}

// Ping checks that the dataset is reachable with the client's credentials.
func (l *Ledger) Ping(ctx context.Context) error {
	if _, err := l.client.DatasetInProject(l.ds.Project, l.ds.Name).Metadata(ctx); err != nil {
		return fmt.Errorf("Ping: reading dataset %s: %w", l.ds.Name, err)
	}
	return nil
}

// Migrate creates the ledger tables.
func (l *Ledger) Migrate(ctx context.Context) error {
	return EnsureTablesWithClient(ctx, l.client, l.ds)
}
