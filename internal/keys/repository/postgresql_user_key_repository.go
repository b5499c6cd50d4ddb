// Package repository implements persistence for user keys and options on
// PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/nostr-signer/internal/database"
	apperrors "github.com/allisson/nostr-signer/internal/errors"
	keysDomain "github.com/allisson/nostr-signer/internal/keys/domain"
)

// PostgreSQLUserKeyRepository implements UserKey persistence for PostgreSQL databases.
type PostgreSQLUserKeyRepository struct {
	db *sql.DB
}

// Get retrieves the key of a user.
func (p *PostgreSQLUserKeyRepository) Get(ctx context.Context, userID int64) (*keysDomain.UserKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT user_id, npub, encrypted_nsec, created_at, updated_at
			  FROM user_keys
			  WHERE user_id = $1`

	var key keysDomain.UserKey
	err := querier.QueryRowContext(ctx, query, userID).Scan(
		&key.UserID,
		&key.Npub,
		&key.EncryptedNsec,
		&key.CreatedAt,
		&key.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, keysDomain.ErrUserKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get user key")
	}

	return &key, nil
}

// Upsert inserts the key or replaces the npub and encrypted nsec of an existing one.
func (p *PostgreSQLUserKeyRepository) Upsert(ctx context.Context, key *keysDomain.UserKey) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO user_keys (user_id, npub, encrypted_nsec, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (user_id) DO UPDATE
			  SET npub = EXCLUDED.npub, encrypted_nsec = EXCLUDED.encrypted_nsec, updated_at = EXCLUDED.updated_at`

	_, err := querier.ExecContext(
		ctx,
		query,
		key.UserID,
		key.Npub,
		key.EncryptedNsec,
		key.CreatedAt,
		key.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert user key")
	}

	return nil
}

// UpdateEncryptedNsec replaces the stored ciphertext of a user.
func (p *PostgreSQLUserKeyRepository) UpdateEncryptedNsec(
	ctx context.Context,
	userID int64,
	encryptedNsec string,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE user_keys SET encrypted_nsec = $1, updated_at = NOW() WHERE user_id = $2`

	result, err := querier.ExecContext(ctx, query, encryptedNsec, userID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update encrypted nsec")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return keysDomain.ErrUserKeyNotFound
	}

	return nil
}

// ListPage returns users with a stored ciphertext ordered by user id.
func (p *PostgreSQLUserKeyRepository) ListPage(
	ctx context.Context,
	offset, limit int,
) ([]*keysDomain.UserKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT user_id, npub, encrypted_nsec, created_at, updated_at
			  FROM user_keys
			  WHERE encrypted_nsec <> ''
			  ORDER BY user_id ASC
			  LIMIT $1 OFFSET $2`

	rows, err := querier.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list user keys")
	}
	defer func() {
		_ = rows.Close()
	}()

	keys := make([]*keysDomain.UserKey, 0)
	for rows.Next() {
		var key keysDomain.UserKey
		if err := rows.Scan(
			&key.UserID,
			&key.Npub,
			&key.EncryptedNsec,
			&key.CreatedAt,
			&key.UpdatedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan user key")
		}
		keys = append(keys, &key)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate user keys")
	}

	return keys, nil
}

// NewPostgreSQLUserKeyRepository creates a new PostgreSQL UserKey repository.
func NewPostgreSQLUserKeyRepository(db *sql.DB) *PostgreSQLUserKeyRepository {
	return &PostgreSQLUserKeyRepository{db: db}
}
