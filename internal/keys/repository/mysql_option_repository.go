package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/nostr-signer/internal/database"
	apperrors "github.com/allisson/nostr-signer/internal/errors"
	keysDomain "github.com/allisson/nostr-signer/internal/keys/domain"
)

// MySQLOptionRepository implements name/value option persistence for MySQL databases.
type MySQLOptionRepository struct {
	db *sql.DB
}

// Get returns the value of an option.
func (m *MySQLOptionRepository) Get(ctx context.Context, name string) (string, error) {
	querier := database.GetTx(ctx, m.db)

	var value string
	err := querier.QueryRowContext(ctx, "SELECT value FROM options WHERE name = ?", name).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", keysDomain.ErrOptionNotFound
		}
		return "", apperrors.Wrap(err, "failed to get option")
	}

	return value, nil
}

// Set creates or replaces an option.
func (m *MySQLOptionRepository) Set(ctx context.Context, name, value string) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO options (name, value, updated_at)
			  VALUES (?, ?, NOW(6))
			  ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)`

	if _, err := querier.ExecContext(ctx, query, name, value); err != nil {
		return apperrors.Wrap(err, "failed to set option")
	}

	return nil
}

// NewMySQLOptionRepository creates a new MySQL option repository.
func NewMySQLOptionRepository(db *sql.DB) *MySQLOptionRepository {
	return &MySQLOptionRepository{db: db}
}
