package domain

import "errors"

// ErrTransactionNotFound is returned when writing a score back to a
// transaction the ledger does not hold.
var ErrTransactionNotFound = errors.New("transaction not found")

// Scoring failure taxonomy. Every kind is absorbed by the scorer and turned
// into the fail-open result; callers never see them from Score.
var (
	// ErrModelUnavailable means the model artifact is missing or unreadable.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrHistoryUnavailable means the transaction history could not be read.
	ErrHistoryUnavailable = errors.New("history unavailable")

	// ErrFeatureComputation means a feature could not be derived.
	ErrFeatureComputation = errors.New("feature computation failed")

	// ErrInference means the model call failed or returned garbage.
	ErrInference = errors.New("inference failed")
)

// FailureKind returns a stable label for logging a scoring failure.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, ErrHistoryUnavailable):
		return "history_unavailable"
	case errors.Is(err, ErrFeatureComputation):
		return "feature_computation"
	case errors.Is(err, ErrInference):
		return "inference"
	default:
		return "unknown"
	}
}
