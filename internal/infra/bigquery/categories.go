package bigquery

import (
	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/fraud-scoring/internal/domain"
)

// CategoryRow is one row of finance.categories.
type CategoryRow struct {
	Name    string              `bigquery:"name"`     // REQUIRED
	MCCCode bigquery.NullString `bigquery:"mcc_code"` // NULLABLE, raw merchant code
}

func (r CategoryRow) toDomain() domain.CategoryCode {
	return domain.CategoryCode{Name: r.Name, MCCCode: r.MCCCode.StringVal}
}
