package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/fraud-scoring/internal/domain"
	"google.golang.org/api/iterator"
)

// HistoryWithClient returns the user's transactions booked strictly before
// cutoff, most recent first.
func HistoryWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string, cutoff time.Time) ([]domain.HistoricalTransaction, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			transaction_date,
			amount
		FROM %s
		WHERE user_id = @user_id
		  AND transaction_date < @cutoff
		ORDER BY transaction_date DESC
	`, ds.table(fraudTransactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "cutoff", Value: civil.DateTimeOf(cutoff)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("History: query read: %w", err)
	}

	loc := cutoff.Location()
	var rows []domain.HistoricalTransaction
	for {
		var r historyRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("History: iter next: %w", err)
		}
		rows = append(rows, r.toDomain(loc))
	}

	return rows, nil
}

// CountTransactionsWithClient counts every ledger transaction.
func CountTransactionsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset) (int64, error) {
	q := client.Query(fmt.Sprintf(`SELECT COUNT(*) AS n FROM %s`, ds.table(fraudTransactionsTable)))
	n, err := readCount(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("CountTransactions: %w", err)
	}
	return n, nil
}

// CountByCategoriesWithClient counts transactions whose category is one of names.
func CountByCategoriesWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, names []string) (int64, error) {
	if len(names) == 0 {
		return 0, nil
	}

	q := client.Query(fmt.Sprintf(`
		SELECT COUNT(*) AS n
		FROM %s
		WHERE category IN UNNEST(@names)
	`, ds.table(fraudTransactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "names", Value: names},
	}

	n, err := readCount(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("CountByCategories: %w", err)
	}
	return n, nil
}

// CountUncategorizedWithClient counts transactions with a NULL or empty category.
func CountUncategorizedWithClient(ctx context.Context, client *bigquery.Client, ds Dataset) (int64, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT COUNT(*) AS n
		FROM %s
		WHERE category IS NULL OR category = ''
	`, ds.table(fraudTransactionsTable)))

	n, err := readCount(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("CountUncategorized: %w", err)
	}
	return n, nil
}

// InsertTransactionsWithClient streams rows into finance.fraud_transactions.
func InsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, rows []*FraudTransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.DatasetInProject(ds.Project, ds.Name).Table(fraudTransactionsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}
	return nil
}

type countRow struct {
	N int64 `bigquery:"n"`
}

func readCount(ctx context.Context, q *bigquery.Query) (int64, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("query read: %w", err)
	}

	var r countRow
	if err := it.Next(&r); err != nil {
		if err == iterator.Done {
			return 0, nil
		}
		return 0, fmt.Errorf("iter next: %w", err)
	}
	return r.N, nil
}
