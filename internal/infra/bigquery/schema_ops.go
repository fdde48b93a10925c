package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
)

// EnsureTablesWithClient creates the ledger tables when they do not exist.
// Existing tables are left untouched.
func EnsureTablesWithClient(ctx context.Context, client *bigquery.Client, ds Dataset) error {
	tables := []struct {
		name string
		row  interface{}
	}{
		{fraudTransactionsTable, FraudTransactionRow{}},
		{categoriesTable, CategoryRow{}},
	}

	for _, t := range tables {
		schema, err := bigquery.InferSchema(t.row)
		if err != nil {
			return fmt.Errorf("EnsureTables: inferring %s schema: %w", t.name, err)
		}

		meta := &bigquery.TableMetadata{Schema: schema}
		err = client.DatasetInProject(ds.Project, ds.Name).Table(t.name).Create(ctx, meta)
		if err != nil && !isAlreadyExists(err) {
			return fmt.Errorf("EnsureTables: creating %s: %w", t.name, err)
		}
	}
	return nil
}

func isAlreadyExists(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}
