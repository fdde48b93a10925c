package domain

import (
	"errors"
	"time"
)

// ScoreRequest is the wire form of a scoring call, shared by the HTTP API,
// async jobs and the NATS transport.
type ScoreRequest struct {
	UserID        string    `json:"user_id"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Amount        float64   `json:"amount"`
	Timestamp     time.Time `json:"timestamp"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	Category      string    `json:"category,omitempty"`
}

// Validate checks the fields scoring cannot do without.
func (r ScoreRequest) Validate() error {
	if r.UserID == "" {
		return errors.New("user_id is required")
	}
	if r.Timestamp.IsZero() {
		return errors.New("timestamp is required")
	}
	return nil
}

// Transaction converts the request into the scoring input.
func (r ScoreRequest) Transaction() Transaction {
	return Transaction{
		ID:            r.TransactionID,
		Amount:        r.Amount,
		Timestamp:     r.Timestamp,
		PaymentMethod: r.PaymentMethod,
		Category:      r.Category,
	}
}
