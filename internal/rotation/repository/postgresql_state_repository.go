// Package repository persists rotation progress in the options table.
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

// PostgreSQLStateRepository implements rotation state persistence for PostgreSQL databases.
type PostgreSQLStateRepository struct {
	db *sql.DB
}

// GetForUpdate locks the state row until the surrounding transaction ends,
// creating it first when absent. Must be called inside TxManager.WithTx.
func (p *PostgreSQLStateRepository) GetForUpdate(ctx context.Context) (*rotationDomain.State, error) {
	querier := database.GetTx(ctx, p.db)

	_, err := querier.ExecContext(
		ctx,
		`INSERT INTO options (name, value, updated_at) VALUES ($1, '', NOW()) ON CONFLICT (name) DO NOTHING`,
		rotationDomain.OptionRotationState,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create rotation state")
	}

	var value string
	err = querier.QueryRowContext(
		ctx,
		`SELECT value FROM options WHERE name = $1 FOR UPDATE`,
		rotationDomain.OptionRotationState,
	).Scan(&value)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to lock rotation state")
	}

	return rotationDomain.DecodeState(value), nil
}

// Get reads the state without locking.
func (p *PostgreSQLStateRepository) Get(ctx context.Context) (*rotationDomain.State, error) {
	value, err := p.getOption(ctx, rotationDomain.OptionRotationState)
	if err != nil {
		return nil, err
	}
	return rotationDomain.DecodeState(value), nil
}

// Save stores the state.
func (p *PostgreSQLStateRepository) Save(ctx context.Context, state *rotationDomain.State) error {
	value, err := state.Encode()
	if err != nil {
		return err
	}
	return p.setOption(ctx, rotationDomain.OptionRotationState, value)
}

// GetLastCompleted returns when a rotation last finished, or nil if never.
func (p *PostgreSQLStateRepository) GetLastCompleted(ctx context.Context) (*time.Time, error) {
	value, err := p.getOption(ctx, rotationDomain.OptionRotationLastOK)
	if err != nil {
		return nil, err
	}
	return parseUnix(value), nil
}

// SetLastCompleted records when a rotation finished.
func (p *PostgreSQLStateRepository) SetLastCompleted(ctx context.Context, at time.Time) error {
	return p.setOption(ctx, rotationDomain.OptionRotationLastOK, strconv.FormatInt(at.Unix(), 10))
}

func (p *PostgreSQLStateRepository) getOption(ctx context.Context, name string) (string, error) {
	querier := database.GetTx(ctx, p.db)

	var value string
	err := querier.QueryRowContext(ctx, `SELECT value FROM options WHERE name = $1`, name).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", apperrors.Wrap(err, "failed to get rotation option")
	}
	return value, nil
}

func (p *PostgreSQLStateRepository) setOption(ctx context.Context, name, value string) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO options (name, value, updated_at)
			  VALUES ($1, $2, NOW())
			  ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

	if _, err := querier.ExecContext(ctx, query, name, value); err != nil {
		return apperrors.Wrap(err, "failed to set rotation option")
	}
	return nil
}

// NewPostgreSQLStateRepository creates a new PostgreSQL rotation state repository.
func NewPostgreSQLStateRepository(db *sql.DB) *PostgreSQLStateRepository {
	return &PostgreSQLStateRepository{db: db}
}

// parseUnix converts a stored unix timestamp. Missing or invalid values yield nil.
func parseUnix(value string) *time.Time {
	secs, err := strconv.ParseInt(value, 10, 64)
	if err != nil || secs <= 0 {
		return nil
	}
	t := time.Unix(secs, 0).UTC()
	return &t
}
