package domain

import "time"

// Positional feature names. The model has no column names at inference
// time, so this order must match the order it was trained with.
var FeatureNames = []string{
	"amount_log",
	"hour",
	"is_weekend",
	"payment_code",
	"mcc_simple",
	"hours_since_last_tx",
	"client_total_tx",
	"amount_zscore",
	"mcc_rarity",
	"is_unusual_hour",
}

// FeatureVector is the fixed-order model input for one transaction.
type FeatureVector struct {
	AmountLog        float64 `json:"amount_log"`
	Hour             int     `json:"hour"`
	IsWeekend        int     `json:"is_weekend"`
	PaymentCode      int     `json:"payment_code"`
	MCCSimple        int     `json:"mcc_simple"`
	HoursSinceLastTx float64 `json:"hours_since_last_tx"`
	ClientTotalTx    int     `json:"client_total_tx"`
	AmountZScore     float64 `json:"amount_zscore"`
	MCCRarity        float64 `json:"mcc_rarity"`
	IsUnusualHour    int     `json:"is_unusual_hour"`
}

// Values returns the features as model columns, in FeatureNames order.
func (f FeatureVector) Values() []float64 {
	return []float64{
		f.AmountLog,
		float64(f.Hour),
		float64(f.IsWeekend),
		float64(f.PaymentCode),
		float64(f.MCCSimple),
		f.HoursSinceLastTx,
		float64(f.ClientTotalTx),
		f.AmountZScore,
		f.MCCRarity,
		float64(f.IsUnusualHour),
	}
}

// ScoringResult is the outcome of one scoring call. The zero value is the
// fail-open default.
type ScoringResult struct {
	IsFraud          int     `json:"is_fraud"`
	FraudProbability float64 `json:"fraud_probability"`
}

// Risk bands used when listing scored transactions.
const (
	RiskHigh   = "high"
	RiskMedium = "medium"
	RiskLow    = "low"
)

// RiskBand buckets a probability for display. It plays no part in the
// is_fraud decision.
func RiskBand(p float64) string {
	switch {
	case p > 0.7:
		return RiskHigh
	case p > 0.3:
		return RiskMedium
	default:
		return RiskLow
	}
}

// ScoredTransaction is a ledger row that already carries a fraud result.
type ScoredTransaction struct {
	TransactionID    string    `json:"transaction_id"`
	UserID           string    `json:"user_id"`
	Timestamp        time.Time `json:"transaction_date"`
	Amount           float64   `json:"amount"`
	Category         string    `json:"category,omitempty"`
	PaymentMethod    string    `json:"use_chip,omitempty"`
	IsFraud          int       `json:"is_fraud"`
	FraudProbability float64   `json:"fraud_probability"`
	CreatedAt        time.Time `json:"created_at"`
}

// FraudHistoryFilter narrows a fraud history listing.
type FraudHistoryFilter struct {
	UserID  string
	Start   *time.Time
	End     *time.Time
	IsFraud *int
	Limit   int
	Offset  int
}

// FraudHistory is one page of scored transactions plus per-user totals.
type FraudHistory struct {
	TotalCount      int64               `json:"total_count"`
	FraudCount      int64               `json:"fraud_count"`
	LegitimateCount int64               `json:"legitimate_count"`
	Limit           int                 `json:"limit"`
	Offset          int                 `json:"offset"`
	Transactions    []ScoredTransaction `json:"data"`
}
