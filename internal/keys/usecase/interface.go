// Package usecase implements Nostr key management: provisioning, import,
// signing and backup of the encrypted nsec values.
package usecase

import (
	"context"

	keysDomain "github.com/allisson/nostr-signer/internal/keys/domain"
	nostrDomain "github.com/allisson/nostr-signer/internal/nostr/domain"
)

// UserKeyRepository defines the interface for user key persistence operations.
type UserKeyRepository interface {
	Get(ctx context.Context, userID int64) (*keysDomain.UserKey, error)
	Upsert(ctx context.Context, key *keysDomain.UserKey) error
	UpdateEncryptedNsec(ctx context.Context, userID int64, encryptedNsec string) error
	ListPage(ctx context.Context, offset, limit int) ([]*keysDomain.UserKey, error)
}

// OptionRepository defines the interface for name/value option persistence.
type OptionRepository interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, value string) error
}

// KeyUseCase defines the interface for Nostr key management.
type KeyUseCase interface {
	// EnsureUserKey generates and stores a keypair for the user unless one exists.
	// Without an active KEK it does nothing and reports false.
	EnsureUserKey(ctx context.Context, userID int64) (bool, error)
	// EnsureBlogKey is EnsureUserKey for the blog identity.
	EnsureBlogKey(ctx context.Context) (bool, error)
	GetUserNpub(ctx context.Context, userID int64) (string, error)
	GetBlogNpub(ctx context.Context) (string, error)
	// ImportKey stores an externally generated nsec after checking it matches
	// the supplied npub. Returns the stored npub.
	ImportKey(ctx context.Context, input *keysDomain.ImportKeyInput) (string, error)
	// SignEvent signs an event with the selected key, provisioning it first if needed.
	SignEvent(ctx context.Context, input *keysDomain.SignEventInput) (*nostrDomain.Event, error)
	// Backup exports every encrypted nsec. No plaintext leaves the store.
	Backup(ctx context.Context) (*keysDomain.Backup, error)
	// Restore writes the entries of a backup and returns how many keys were restored.
	Restore(ctx context.Context, backup *keysDomain.Backup) (int, error)
}
