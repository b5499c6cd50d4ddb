package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/nostr-signer/internal/database"
	apperrors "github.com/allisson/nostr-signer/internal/errors"
	keysDomain "github.com/allisson/nostr-signer/internal/keys/domain"
)

// MySQLUserKeyRepository implements UserKey persistence for MySQL databases.
type MySQLUserKeyRepository struct {
	db *sql.DB
}

// Get retrieves the key of a user.
func (m *MySQLUserKeyRepository) Get(ctx context.Context, userID int64) (*keysDomain.UserKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT user_id, npub, encrypted_nsec, created_at, updated_at
			  FROM user_keys
			  WHERE user_id = ?`

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
func (m *MySQLUserKeyRepository) Upsert(ctx context.Context, key *keysDomain.UserKey) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO user_keys (user_id, npub, encrypted_nsec, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE
			  npub = VALUES(npub), encrypted_nsec = VALUES(encrypted_nsec), updated_at = VALUES(updated_at)`

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
func (m *MySQLUserKeyRepository) UpdateEncryptedNsec(
	ctx context.Context,
	userID int64,
	encryptedNsec string,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE user_keys SET encrypted_nsec = ?, updated_at = NOW(6) WHERE user_id = ?`

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
func (m *MySQLUserKeyRepository) ListPage(
	ctx context.Context,
	offset, limit int,
) ([]*keysDomain.UserKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT user_id, npub, encrypted_nsec, created_at, updated_at
			  FROM user_keys
			  WHERE encrypted_nsec <> ''
			  ORDER BY user_id ASC
			  LIMIT ? OFFSET ?`

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

// NewMySQLUserKeyRepository creates a new MySQL UserKey repository.
func NewMySQLUserKeyRepository(db *sql.DB) *MySQLUserKeyRepository {
	return &MySQLUserKeyRepository{db: db}
}
