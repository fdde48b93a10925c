package bigquery

import "fmt"

const (
	fraudTransactionsTable = "fraud_transactions"
	categoriesTable        = "categories"
)

// Dataset locates the ledger tables.
type Dataset struct {
	Project string
	Name    string
}

// table returns the backquoted, fully qualified name of a table.
func (d Dataset) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", d.Project, d.Name, name)
}
