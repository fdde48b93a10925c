package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dvloznov/fraud-scoring/internal/domain"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database/sql drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Store is the SQL ledger: the financial_data table the transaction service
// writes to and the categories table holding merchant codes.
// Queries use $N placeholders, which both drivers accept as long as they
// appear in increasing order.
type Store struct {
	db     *sql.DB
	driver string
}

var (
	_ domain.HistoryAccessor = (*Store)(nil)
	_ domain.LedgerStats     = (*Store)(nil)
	_ domain.CategoryLookup  = (*Store)(nil)
	_ domain.ScoreRecorder   = (*Store)(nil)
	_ domain.Ledger          = (*Store)(nil)
)

// Open connects to the ledger and creates the schema if needed.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverPostgres:
	case DriverSQLite:
		if err := ensureDir(dsn); err != nil {
			return nil, fmt.Errorf("Open: %w", err)
		}
	default:
		return nil, fmt.Errorf("Open: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("Open: opening %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	s := New(db, driver)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection pool. The schema is not touched.
func New(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const schema = `
	CREATE TABLE IF NOT EXISTS financial_data (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		date TIMESTAMP NOT NULL,
		amount NUMERIC(14, 2) NOT NULL,
		category TEXT,
		use_chip TEXT,
		is_fraud INTEGER,
		fraud_probability DOUBLE PRECISION,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS categories (
		name TEXT PRIMARY KEY,
		mcc_code TEXT,
		description TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_financial_data_user_date ON financial_data(user_id, date);
	CREATE INDEX IF NOT EXISTS idx_financial_data_category ON financial_data(category);
`

// Migrate creates the tables and indexes that do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("Migrate: creating schema: %w", err)
	}
	return nil
}

// ensureDir creates the parent directory of a SQLite database file.
func ensureDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	return nil
}

// placeholders returns "$from, $from+1, ..." for n arguments.
func placeholders(from, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ph, ", ")
}
