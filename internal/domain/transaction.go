package domain

import (
	"context"
	"time"
)

// Transaction is the point-in-time input to fraud scoring.
// Timestamp must be expressed the same way as the ledger history it is
// compared against; the hour feature is read from it as stored.
type Transaction struct {
	ID            string    // ledger id, empty when scoring before the write
	Amount        float64   // currency units
	Timestamp     time.Time // booking time
	PaymentMethod string    // optional, e.g. "online" or "Chip Transaction"
	Category      string    // optional, key into the category code table
}

// HistoricalTransaction is one previously recorded transaction of a user.
type HistoricalTransaction struct {
	Timestamp time.Time
	Amount    float64
}

// CategoryCode maps a category label to its raw merchant-category code.
// MCCCode is kept as stored; it may be empty or not a number.
type CategoryCode struct {
	Name    string `json:"name"`
	MCCCode string `json:"mcc_code"`
}

// HistoryAccessor reads the prior transactions of one user.
type HistoryAccessor interface {
	// History returns every transaction of userID with a timestamp strictly
	// before cutoff, most recent first.
	History(ctx context.Context, userID string, cutoff time.Time) ([]HistoricalTransaction, error)
}

// LedgerStats exposes the system-wide counts used for merchant rarity.
type LedgerStats interface {
	// CountTransactions counts all transactions in the ledger.
	CountTransactions(ctx context.Context) (int64, error)

	// CountByCategories counts transactions whose category is one of names.
	CountByCategories(ctx context.Context, names []string) (int64, error)

	// CountUncategorized counts transactions without a category.
	CountUncategorized(ctx context.Context) (int64, error)
}

// CategoryLookup reads the category to merchant-code table.
type CategoryLookup interface {
	// LookupMCCCode returns the raw code for a category label.
	// found is false when the label is not in the table.
	LookupMCCCode(ctx context.Context, name string) (code string, found bool, err error)

	// ListCategoryCodes returns the whole table.
	ListCategoryCodes(ctx context.Context) ([]CategoryCode, error)
}

// ScoreRecorder writes a scoring result back onto a stored transaction.
// Scoring itself never writes; callers that own persistence use this.
type ScoreRecorder interface {
	RecordScore(ctx context.Context, transactionID string, result ScoringResult) error
}

// FraudHistoryReader lists transactions that already carry a fraud result.
type FraudHistoryReader interface {
	FraudHistory(ctx context.Context, filter FraudHistoryFilter) (*FraudHistory, error)
}

// Ledger is everything a ledger backend provides to the services.
type Ledger interface {
	HistoryAccessor
	LedgerStats
	CategoryLookup
	ScoreRecorder
	FraudHistoryReader

	// InsertTransaction stores an unscored transaction and returns its id.
	InsertTransaction(ctx context.Context, userID string, tx Transaction) (string, error)
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
