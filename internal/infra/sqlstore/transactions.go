package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/fraud-scoring/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Page size bounds for fraud history listings.
const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// History returns the user's transactions dated strictly before cutoff,
// most recent first.
func (s *Store) History(ctx context.Context, userID string, cutoff time.Time) ([]domain.HistoricalTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, amount
		FROM financial_data
		WHERE user_id = $1
		  AND date < $2
		ORDER BY date DESC
	`, userID, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("History: querying: %w", err)
	}
	defer rows.Close()

	var history []domain.HistoricalTransaction
	for rows.Next() {
		var (
			ts     time.Time
			amount decimal.Decimal
		)
		if err := rows.Scan(&ts, &amount); err != nil {
			return nil, fmt.Errorf("History: scanning: %w", err)
		}
		history = append(history, domain.HistoricalTransaction{
			Timestamp: ts.UTC(),
			Amount:    amount.InexactFloat64(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("History: iterating: %w", err)
	}
	return history, nil
}

// CountTransactions counts every ledger transaction.
func (s *Store) CountTransactions(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM financial_data`).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountTransactions: %w", err)
	}
	return n, nil
}

// CountByCategories counts transactions whose category is one of names.
func (s *Store) CountByCategories(ctx context.Context, names []string) (int64, error) {
	if len(names) == 0 {
		return 0, nil
	}

	args := make([]any, len(names))
	for i, name := range names {
		args[i] = name
	}

	var n int64
	query := `SELECT COUNT(*) FROM financial_data WHERE category IN (` + placeholders(1, len(names)) + `)`
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountByCategories: %w", err)
	}
	return n, nil
}

// CountUncategorized counts transactions with a NULL or empty category.
func (s *Store) CountUncategorized(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM financial_data
		WHERE category IS NULL OR category = ''
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountUncategorized: %w", err)
	}
	return n, nil
}

// InsertTransaction records an unscored transaction and returns its id.
// A new id is generated when tx.ID is empty.
func (s *Store) InsertTransaction(ctx context.Context, userID string, tx domain.Transaction) (string, error) {
	id := tx.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO financial_data (id, user_id, date, amount, category, use_chip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, userID, tx.Timestamp.UTC(), decimal.NewFromFloat(tx.Amount), nullString(tx.Category), nullString(tx.PaymentMethod), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("InsertTransaction: %w", err)
	}
	return id, nil
}

// RecordScore writes a scoring result onto a stored transaction.
func (s *Store) RecordScore(ctx context.Context, transactionID string, result domain.ScoringResult) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE financial_data
		SET is_fraud = $1, fraud_probability = $2
		WHERE id = $3
	`, result.IsFraud, result.FraudProbability, transactionID)
	if err != nil {
		return fmt.Errorf("RecordScore: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("RecordScore: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("RecordScore: %s: %w", transactionID, domain.ErrTransactionNotFound)
	}
	return nil
}

// FraudHistory lists scored transactions matching filter, most recent
// first, with totals over the whole filtered set.
func (s *Store) FraudHistory(ctx context.Context, filter domain.FraudHistoryFilter) (*domain.FraudHistory, error) {
	where, args := historyWhere(filter)

	var total, fraud int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_fraud = 1 THEN 1 ELSE 0 END), 0)
		FROM financial_data
		WHERE `+where, args...).Scan(&total, &fraud)
	if err != nil {
		return nil, fmt.Errorf("FraudHistory: counting: %w", err)
	}

	limit, offset := pageBounds(filter)
	n := len(args)
	pageArgs := append(append([]any{}, args...), limit, offset)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, user_id, date, amount, category, use_chip, is_fraud, fraud_probability, created_at
		FROM financial_data
		WHERE %s
		ORDER BY date DESC
		LIMIT $%d OFFSET $%d
	`, where, n+1, n+2), pageArgs...)
	if err != nil {
		return nil, fmt.Errorf("FraudHistory: querying: %w", err)
	}
	defer rows.Close()

	history := &domain.FraudHistory{
		TotalCount:      total,
		FraudCount:      fraud,
		LegitimateCount: total - fraud,
		Limit:           limit,
		Offset:          offset,
		Transactions:    []domain.ScoredTransaction{},
	}
	for rows.Next() {
		var (
			st          domain.ScoredTransaction
			amount      decimal.Decimal
			category    sql.NullString
			useChip     sql.NullString
			isFraud     sql.NullInt64
			probability sql.NullFloat64
		)
		if err := rows.Scan(&st.TransactionID, &st.UserID, &st.Timestamp, &amount, &category, &useChip, &isFraud, &probability, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("FraudHistory: scanning: %w", err)
		}
		st.Timestamp = st.Timestamp.UTC()
		st.CreatedAt = st.CreatedAt.UTC()
		st.Amount = amount.InexactFloat64()
		st.Category = category.String
		st.PaymentMethod = useChip.String
		st.IsFraud = int(isFraud.Int64)
		st.FraudProbability = probability.Float64
		history.Transactions = append(history.Transactions, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("FraudHistory: iterating: %w", err)
	}
	return history, nil
}

// historyWhere builds the WHERE clause and its arguments, numbering
// placeholders from $1. Only scored rows are listed.
func historyWhere(f domain.FraudHistoryFilter) (string, []any) {
	conds := []string{"is_fraud IS NOT NULL"}
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.Start != nil {
		add("date >= $%d", f.Start.UTC())
	}
	if f.End != nil {
		add("date <= $%d", endOfDay(*f.End).UTC())
	}
	if f.IsFraud != nil {
		add("is_fraud = $%d", *f.IsFraud)
	}

	return strings.Join(conds, " AND "), args
}

// endOfDay widens a date-only bound so the whole end day is included.
func endOfDay(t time.Time) time.Time {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Add(24*time.Hour - time.Nanosecond)
	}
	return t
}

func pageBounds(f domain.FraudHistoryFilter) (limit, offset int) {
	limit = f.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	offset = f.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
