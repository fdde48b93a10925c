package bigquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/fraud-scoring/internal/domain"
	"google.golang.org/api/iterator"
)

// Page size bounds for fraud history listings.
const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// RecordScoreWithClient writes a scoring result onto a stored transaction.
// Uses DML UPDATE so freshly streamed rows are handled by BigQuery itself.
func RecordScoreWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, transactionID string, result domain.ScoringResult) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET is_fraud = @is_fraud,
		    fraud_probability = @fraud_probability,
		    updated_ts = CURRENT_TIMESTAMP()
		WHERE transaction_id = @transaction_id
	`, ds.table(fraudTransactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "is_fraud", Value: int64(result.IsFraud)},
		{Name: "fraud_probability", Value: result.FraudProbability},
		{Name: "transaction_id", Value: transactionID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("RecordScore: running update query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("RecordScore: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("RecordScore: job error: %w", err)
	}

	if stats, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok && stats.NumDMLAffectedRows == 0 {
		return fmt.Errorf("RecordScore: %s: %w", transactionID, domain.ErrTransactionNotFound)
	}
	return nil
}

// FraudHistoryWithClient lists scored transactions matching filter, most
// recent first, with totals over the whole filtered set.
func FraudHistoryWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, filter domain.FraudHistoryFilter) (*domain.FraudHistory, error) {
	where, params := historyWhere(filter)
	table := ds.table(fraudTransactionsTable)

	q := client.Query(fmt.Sprintf(`
		SELECT
			COUNT(*) AS total,
			COUNTIF(is_fraud = 1) AS fraud
		FROM %s
		WHERE %s
	`, table, where))
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FraudHistory: summary query read: %w", err)
	}
	var summary struct {
		Total int64 `bigquery:"total"`
		Fraud int64 `bigquery:"fraud"`
	}
	if err := it.Next(&summary); err != nil && err != iterator.Done {
		return nil, fmt.Errorf("FraudHistory: summary iter next: %w", err)
	}

	limit, offset := pageBounds(filter)
	q = client.Query(fmt.Sprintf(`
		SELECT
			transaction_id,
			user_id,
			transaction_date,
			amount,
			category,
			use_chip,
			is_fraud,
			fraud_probability,
			created_ts,
			updated_ts
		FROM %s
		WHERE %s
		ORDER BY transaction_date DESC
		LIMIT @limit OFFSET @offset
	`, table, where))
	q.Parameters = append(params,
		bigquery.QueryParameter{Name: "limit", Value: int64(limit)},
		bigquery.QueryParameter{Name: "offset", Value: int64(offset)},
	)

	it, err = q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FraudHistory: query read: %w", err)
	}

	history := &domain.FraudHistory{
		TotalCount:      summary.Total,
		FraudCount:      summary.Fraud,
		LegitimateCount: summary.Total - summary.Fraud,
		Limit:           limit,
		Offset:          offset,
		Transactions:    []domain.ScoredTransaction{},
	}
	for {
		var r FraudTransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("FraudHistory: iter next: %w", err)
		}
		history.Transactions = append(history.Transactions, r.ToScored())
	}

	return history, nil
}

// historyWhere builds the WHERE clause shared by the summary and page
// queries. Only scored rows are listed.
func historyWhere(f domain.FraudHistoryFilter) (string, []bigquery.QueryParameter) {
	conds := []string{"is_fraud IS NOT NULL"}
	var params []bigquery.QueryParameter

	if f.UserID != "" {
		conds = append(conds, "user_id = @user_id")
		params = append(params, bigquery.QueryParameter{Name: "user_id", Value: f.UserID})
	}
	if f.Start != nil {
		conds = append(conds, "transaction_date >= @start_date")
		params = append(params, bigquery.QueryParameter{Name: "start_date", Value: civil.DateTimeOf(*f.Start)})
	}
	if f.End != nil {
		conds = append(conds, "transaction_date <= @end_date")
		params = append(params, bigquery.QueryParameter{Name: "end_date", Value: civil.DateTimeOf(endOfDay(*f.End))})
	}
	if f.IsFraud != nil {
		conds = append(conds, "is_fraud = @is_fraud")
		params = append(params, bigquery.QueryParameter{Name: "is_fraud", Value: int64(*f.IsFraud)})
	}

	return strings.Join(conds, "\n\t\t  AND "), params
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
