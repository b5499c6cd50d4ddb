package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/allisson/nostr-signer/internal/database"
	apperrors "github.com/allisson/nostr-signer/internal/errors"
	rotationDomain "github.com/allisson/nostr-signer/internal/rotation/domain"
)

// MySQLStateRepository implements rotation state persistence for MySQL databases.
type MySQLStateRepository struct {
	db *sql.DB
}

// GetForUpdate locks the state row until the surrounding transaction ends,
// creating it first when absent. Must be called inside TxManager.WithTx.
func (m *MySQLStateRepository) GetForUpdate(ctx context.Context) (*rotationDomain.State, error) {
	querier := database.GetTx(ctx, m.db)

	_, err := querier.ExecContext(
		ctx,
		"INSERT IGNORE INTO options (name, value, updated_at) VALUES (?, '', NOW(6))",
		rotationDomain.OptionRotationState,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create rotation state")
	}

	var value string
	err = querier.QueryRowContext(
		ctx,
		"SELECT value FROM options WHERE name = ? FOR UPDATE",
		rotationDomain.OptionRotationState,
	).Scan(&value)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to lock rotation state")
	}

	return rotationDomain.DecodeState(value), nil
}

// Get reads the state without locking.
func (m *MySQLStateRepository) Get(ctx context.Context) (*rotationDomain.State, error) {
	value, err := m.getOption(ctx, rotationDomain.OptionRotationState)
	if err != nil {
		return nil, err
	}
	return rotationDomain.DecodeState(value), nil
}

// Save stores the state.
func (m *MySQLStateRepository) Save(ctx context.Context, state *rotationDomain.State) error {
	value, err := state.Encode()
	if err != nil {
		return err
	}
	return m.setOption(ctx, rotationDomain.OptionRotationState, value)
}

// GetLastCompleted returns when a rotation last finished, or nil if never.
func (m *MySQLStateRepository) GetLastCompleted(ctx context.Context) (*time.Time, error) {
	value, err := m.getOption(ctx, rotationDomain.OptionRotationLastOK)
	if err != nil {
		return nil, err
	}
	return parseUnix(value), nil
}

// SetLastCompleted records when a rotation finished.
func (m *MySQLStateRepository) SetLastCompleted(ctx context.Context, at time.Time) error {
	return m.setOption(ctx, rotationDomain.OptionRotationLastOK, strconv.FormatInt(at.Unix(), 10))
}

func (m *MySQLStateRepository) getOption(ctx context.Context, name string) (string, error) {
	querier := database.GetTx(ctx, m.db)

	var value string
	err := querier.QueryRowContext(ctx, "SELECT value FROM options WHERE name = ?", name).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", apperrors.Wrap(err, "failed to get rotation option")
	}
	return value, nil
}

func (m *MySQLStateRepository) setOption(ctx context.Context, name, value string) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO options (name, value, updated_at)
			  VALUES (?, ?, NOW(6))
			  ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)`

	if _, err := querier.ExecContext(ctx, query, name, value); err != nil {
		return apperrors.Wrap(err, "failed to set rotation option")
	}
	return nil
}

// NewMySQLStateRepository creates a new MySQL rotation state repository.
func NewMySQLStateRepository(db *sql.DB) *MySQLStateRepository {
	return &MySQLStateRepository{db: db}
}
