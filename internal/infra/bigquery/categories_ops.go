package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/fraud-scoring/internal/domain"
	"google.golang.org/api/iterator"
)

// LookupMCCCodeWithClient returns the raw merchant code of a category.
// found is false when the category does not exist.
func LookupMCCCodeWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, name string) (string, bool, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
		  name,
		  mcc_code
		FROM %s
		WHERE name = @name
		LIMIT 1
	`, ds.table(categoriesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "name", Value: name},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return "", false, fmt.Errorf("LookupMCCCode: query read: %w", err)
	}

	var r CategoryRow
	err = it.Next(&r)
	if err == iterator.Done {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("LookupMCCCode: iter next: %w", err)
	}
	return r.MCCCode.StringVal, true, nil
}

// ListCategoryCodesWithClient returns every category with its merchant code,
// ordered by name.
func ListCategoryCodesWithClient(ctx context.Context, client *bigquery.Client, ds Dataset) ([]domain.CategoryCode, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
		  name,
		  mcc_code
		FROM %s
		ORDER BY name
	`, ds.table(categoriesTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListCategoryCodes: query read: %w", err)
	}

	var codes []domain.CategoryCode
	for {
		var r CategoryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListCategoryCodes: iter next: %w", err)
		}
		codes = append(codes, r.toDomain())
	}

	return codes, nil
}

// UpsertCategoryWithClient inserts a category or replaces its merchant code.
func UpsertCategoryWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, c domain.CategoryCode) error {
	q := client.Query(fmt.Sprintf(`
		MERGE %s AS t
		USING (SELECT @name AS name, @mcc_code AS mcc_code) AS s
		ON t.name = s.name
		WHEN MATCHED THEN
		  UPDATE SET mcc_code = s.mcc_code
		WHEN NOT MATCHED THEN
		  INSERT (name, mcc_code) VALUES (s.name, s.mcc_code)
	`, ds.table(categoriesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "name", Value: c.Name},
		{Name: "mcc_code", Value: nullString(c.MCCCode)},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("UpsertCategory: running merge query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("UpsertCategory: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("UpsertCategory: job error: %w", err)
	}
	return nil
}
