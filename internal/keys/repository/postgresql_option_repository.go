package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/nostr-signer/internal/database"
	apperrors "github.com/allisson/nostr-signer/internal/errors"
	keysDomain "github.com/allisson/nostr-signer/internal/keys/domain"
)

// PostgreSQLOptionRepository implements name/value option persistence for PostgreSQL databases.
type PostgreSQLOptionRepository struct {
	db *sql.DB
}

// Get returns the value of an option.
func (p *PostgreSQLOptionRepository) Get(ctx context.Context, name string) (string, error) {
	querier := database.GetTx(ctx, p.db)

	var value string
	err := querier.QueryRowContext(ctx, `SELECT value FROM options WHERE name = $1`, name).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", keysDomain.ErrOptionNotFound
		}
		return "", apperrors.Wrap(err, "failed to get option")
	}

	return value, nil
}

// Set creates or replaces an option.
func (p *PostgreSQLOptionRepository) Set(ctx context.Context, name, value string) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO options (name, value, updated_at)
			  VALUES ($1, $2, NOW())
			  ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

	if _, err := querier.ExecContext(ctx, query, name, value); err != nil {
		return apperrors.Wrap(err, "failed to set option")
	}

	return nil
}

// NewPostgreSQLOptionRepository creates a new PostgreSQL option repository.
func NewPostgreSQLOptionRepository(db *sql.DB) *PostgreSQLOptionRepository {
	return &PostgreSQLOptionRepository{db: db}
}
