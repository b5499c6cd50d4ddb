// Package usecase implements the resumable KEK rotation of stored nsec values.
package usecase

import (
	"context"
	"time"

	keysDomain "github.com/allisson/nostr-signer/internal/keys/domain"
	rotationDomain "github.com/allisson/nostr-signer/internal/rotation/domain"
)

// UserKeyRepository is the part of the user key store rotation needs.
type UserKeyRepository interface {
	ListPage(ctx context.Context, offset, limit int) ([]*keysDomain.UserKey, error)
	UpdateEncryptedNsec(ctx context.Context, userID int64, encryptedNsec string) error
}

// OptionRepository stores the blog secret.
type OptionRepository interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, value string) error
}

// StateRepository persists rotation progress.
type StateRepository interface {
	// GetForUpdate reads the state and holds a lock on it until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context) (*rotationDomain.State, error)
	Get(ctx context.Context) (*rotationDomain.State, error)
	Save(ctx context.Context, state *rotationDomain.State) error
	GetLastCompleted(ctx context.Context) (*time.Time, error)
	SetLastCompleted(ctx context.Context, at time.Time) error
}

// RotationUseCase moves stored envelopes onto the active KEK version.
type RotationUseCase interface {
	// RunBatch rewraps at most limit user records, or the blog record once all
	// users are done, and returns how many records changed. A limit of zero or
	// less means rotationDomain.DefaultBatchSize.
	RunBatch(ctx context.Context, limit int) (int, error)
	// ResetState restarts rotation towards targetVersion. Zero means the active version.
	ResetState(ctx context.Context, targetVersion int) (*rotationDomain.State, error)
	// Progress returns the persisted rotation state without reading stored values.
	Progress(ctx context.Context) (*rotationDomain.State, error)
	// Status reports rotation progress and the key versions of every stored
	// value. It reads every stored secret, so batch callers use Progress instead.
	Status(ctx context.Context) (*rotationDomain.Status, error)
	// RecryptAll moves every stored value from a key derived from oldSecret to
	// one derived from newSecret and returns how many values changed.
	RecryptAll(ctx context.Context, oldSecret, newSecret string) (int, error)
}
