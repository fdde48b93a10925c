package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dvloznov/fraud-scoring/internal/domain"
)

// LookupMCCCode returns the raw merchant code of a category.
func (s *Store) LookupMCCCode(ctx context.Context, name string) (string, bool, error) {
	var code sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT mcc_code FROM categories WHERE name = $1`, name).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("LookupMCCCode: %w", err)
	}
	return code.String, true, nil
}

// ListCategoryCodes returns every category ordered by name.
func (s *Store) ListCategoryCodes(ctx context.Context) ([]domain.CategoryCode, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, mcc_code FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("ListCategoryCodes: querying: %w", err)
	}
	defer rows.Close()

	var codes []domain.CategoryCode
	for rows.Next() {
		var (
			c    domain.CategoryCode
			code sql.NullString
		)
		if err := rows.Scan(&c.Name, &code); err != nil {
			return nil, fmt.Errorf("ListCategoryCodes: scanning: %w", err)
		}
		c.MCCCode = code.String
		codes = append(codes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListCategoryCodes: iterating: %w", err)
	}
	return codes, nil
}

// UpsertCategory inserts a category or replaces its merchant code.
func (s *Store) UpsertCategory(ctx context.Context, c domain.CategoryCode) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (name, mcc_code)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET mcc_code = excluded.mcc_code
	`, c.Name, nullString(c.MCCCode))
	if err != nil {
		return fmt.Errorf("UpsertCategory: %w", err)
	}
	return nil
}
