package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/nostr-signer/internal/database"
	apperrors "github.com/allisson/nostr-signer/internal/errors"
	keysDomain "github.com/allisson/nostr-signer/internal/keys/domain"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, mock
}

var userKeyColumns = []string{"user_id", "npub", "encrypted_nsec", "created_at", "updated_at"}

func TestPostgreSQLUserKeyRepository_Get(t *testing.T) {
	now := time.Now().UTC()

	t.Run("found", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM user_keys")).
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows(userKeyColumns).AddRow(42, "npub1a", "env", now, now))

		key, err := NewPostgreSQLUserKeyRepository(db).Get(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, int64(42), key.UserID)
		assert.Equal(t, "npub1a", key.Npub)
		assert.Equal(t, "env", key.EncryptedNsec)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM user_keys")).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows(userKeyColumns))

		key, err := NewPostgreSQLUserKeyRepository(db).Get(context.Background(), 7)
		assert.Nil(t, key)
		assert.ErrorIs(t, err, keysDomain.ErrUserKeyNotFound)
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("query error", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM user_keys")).WillReturnError(errors.New("boom"))

		_, err := NewPostgreSQLUserKeyRepository(db).Get(context.Background(), 7)
		assert.ErrorContains(t, err, "failed to get user key")
	})
}

func TestPostgreSQLUserKeyRepository_Upsert(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	key := &keysDomain.UserKey{UserID: 3, Npub: "npub1c", EncryptedNsec: "env", CreatedAt: now, UpdatedAt: now}

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id) DO UPDATE")).
		WithArgs(int64(3), "npub1c", "env", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewPostgreSQLUserKeyRepository(db).Upsert(context.Background(), key))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLUserKeyRepository_UpdateEncryptedNsec(t *testing.T) {
	t.Run("updated", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE user_keys SET encrypted_nsec = $1")).
			WithArgs("new-env", int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := NewPostgreSQLUserKeyRepository(db).UpdateEncryptedNsec(context.Background(), 3, "new-env")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing user", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE user_keys")).WillReturnResult(sqlmock.NewResult(0, 0))

		err := NewPostgreSQLUserKeyRepository(db).UpdateEncryptedNsec(context.Background(), 3, "new-env")
		assert.ErrorIs(t, err, keysDomain.ErrUserKeyNotFound)
	})
}

func TestPostgreSQLUserKeyRepository_ListPage(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE encrypted_nsec <> '' ORDER BY user_id ASC LIMIT $1 OFFSET $2")).
		WithArgs(2, 4).
		WillReturnRows(sqlmock.NewRows(userKeyColumns).
			AddRow(5, "npub1e", "env5", now, now).
			AddRow(6, "npub1f", "env6", now, now))

	keys, err := NewPostgreSQLUserKeyRepository(db).ListPage(context.Background(), 4, 2)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, int64(5), keys[0].UserID)
	assert.Equal(t, "env6", keys[1].EncryptedNsec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLUserKeyRepository_UsesTransactionFromContext(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE user_keys")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	repo := NewPostgreSQLUserKeyRepository(db)
	err := database.NewTxManager(db).WithTx(context.Background(), func(ctx context.Context) error {
		if err := repo.UpdateEncryptedNsec(ctx, 1, "env"); err != nil {
			return err
		}
		return errors.New("abort")
	})

	assert.EqualError(t, err, "abort")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLUserKeyRepository(t *testing.T) {
	now := time.Now().UTC()

	t.Run("get", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = ?")).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(userKeyColumns).AddRow(1, "npub1a", "env", now, now))

		key, err := NewMySQLUserKeyRepository(db).Get(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "npub1a", key.Npub)
	})

	t.Run("get not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM user_keys")).WillReturnError(sql.ErrNoRows)

		_, err := NewMySQLUserKeyRepository(db).Get(context.Background(), 1)
		assert.ErrorIs(t, err, keysDomain.ErrUserKeyNotFound)
	})

	t.Run("upsert", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta("ON DUPLICATE KEY UPDATE")).
			WithArgs(int64(1), "npub1a", "env", now, now).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := NewMySQLUserKeyRepository(db).Upsert(context.Background(), &keysDomain.UserKey{
			UserID: 1, Npub: "npub1a", EncryptedNsec: "env", CreatedAt: now, UpdatedAt: now,
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("list page", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta("LIMIT ? OFFSET ?")).
			WithArgs(10, 0).
			WillReturnRows(sqlmock.NewRows(userKeyColumns))

		keys, err := NewMySQLUserKeyRepository(db).ListPage(context.Background(), 0, 10)
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("update error", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE user_keys")).WillReturnError(errors.New("deadlock"))

		err := NewMySQLUserKeyRepository(db).UpdateEncryptedNsec(context.Background(), 1, "env")
		assert.ErrorContains(t, err, "failed to update encrypted nsec")
	})
}

type optionRepository interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, value string) error
}

func TestOptionRepositories(t *testing.T) {
	tests := []struct {
		name     string
		newRepo func(db *sql.DB) optionRepository
		upsert  string
	}{
		{
			name: "postgresql",
			newRepo: func(db *sql.DB) optionRepository {
				return NewPostgreSQLOptionRepository(db)
			},
			upsert: "ON CONFLICT (name) DO UPDATE",
		},
		{
			name: "mysql",
			newRepo: func(db *sql.DB) optionRepository {
				return NewMySQLOptionRepository(db)
			},
			upsert: "ON DUPLICATE KEY UPDATE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()

			db, mock := newMockDB(t)
			repo := tt.newRepo(db)

			mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM options")).
				WithArgs(keysDomain.OptionBlogNpub).
				WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("npub1blog"))
			value, err := repo.Get(ctx, keysDomain.OptionBlogNpub)
			require.NoError(t, err)
			assert.Equal(t, "npub1blog", value)

			mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM options")).
				WithArgs("missing").
				WillReturnRows(sqlmock.NewRows([]string{"value"}))
			_, err = repo.Get(ctx, "missing")
			assert.ErrorIs(t, err, keysDomain.ErrOptionNotFound)

			mock.ExpectExec(regexp.QuoteMeta(tt.upsert)).
				WithArgs(keysDomain.OptionBlogEncryptedNsec, "env").
				WillReturnResult(sqlmock.NewResult(0, 1))
			require.NoError(t, repo.Set(ctx, keysDomain.OptionBlogEncryptedNsec, "env"))

			mock.ExpectExec(regexp.QuoteMeta(tt.upsert)).WillReturnError(errors.New("read only"))
			assert.ErrorContains(t, repo.Set(ctx, "x", "y"), "failed to set option")

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
