package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/fraud-scoring/internal/domain"
)

// FraudTransactionRow is one row of finance.fraud_transactions.
type FraudTransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	UserID        string `bigquery:"user_id"`        // REQUIRED

	// Booking time as entered, without a zone. Hours are read as stored.
	TransactionDate civil.DateTime `bigquery:"transaction_date"` // REQUIRED DATETIME

	Amount *big.Rat `bigquery:"amount"` // REQUIRED NUMERIC

	Category bigquery.NullString `bigquery:"category"` // NULLABLE
	UseChip  bigquery.NullString `bigquery:"use_chip"` // NULLABLE, payment method label

	IsFraud          bigquery.NullInt64   `bigquery:"is_fraud"`          // NULLABLE until scored
	FraudProbability bigquery.NullFloat64 `bigquery:"fraud_probability"` // NULLABLE until scored

	CreatedTS time.Time              `bigquery:"created_ts"` // REQUIRED (default CURRENT_TIMESTAMP)
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"` // NULLABLE
}

// historyRow is the projection read for feature engineering.
type historyRow struct {
	TransactionDate civil.DateTime `bigquery:"transaction_date"`
	Amount          *big.Rat       `bigquery:"amount"`
}

// toDomain reads the stored wall-clock time in loc, the zone of the
// transaction being scored, so it compares correctly against the cutoff.
func (r historyRow) toDomain(loc *time.Location) domain.HistoricalTransaction {
	return domain.HistoricalTransaction{
		Timestamp: r.TransactionDate.In(loc),
		Amount:    ratToFloat(r.Amount),
	}
}

// NewFraudTransactionRow builds an unscored row for insertion.
func NewFraudTransactionRow(userID string, tx domain.Transaction) *FraudTransactionRow {
	return &FraudTransactionRow{
		TransactionID:   tx.ID,
		UserID:          userID,
		TransactionDate: civil.DateTimeOf(tx.Timestamp),
		Amount:          new(big.Rat).SetFloat64(tx.Amount),
		Category:        nullString(tx.Category),
		UseChip:         nullString(tx.PaymentMethod),
		CreatedTS:       time.Now(),
	}
}

// ToScored converts a scored row for API listings.
func (r *FraudTransactionRow) ToScored() domain.ScoredTransaction {
	return domain.ScoredTransaction{
		TransactionID:    r.TransactionID,
		UserID:           r.UserID,
		Timestamp:        r.TransactionDate.In(time.UTC),
		Amount:           ratToFloat(r.Amount),
		Category:         r.Category.StringVal,
		PaymentMethod:    r.UseChip.StringVal,
		IsFraud:          int(r.IsFraud.Int64),
		FraudProbability: r.FraudProbability.Float64,
		CreatedAt:        r.CreatedTS,
	}
}

func ratToFloat(r *big.Rat) float64 {
	if r == nil {
		return 0
	}
	f, _ := r.Float64()
	return f
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
