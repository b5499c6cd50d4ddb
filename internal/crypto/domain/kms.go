package domain

import "context"

// KMSKeeper is the subset of *secrets.Keeper used to protect KEK material at rest.
// When a KMS key URI is configured, every NOSTR_SIGNER_KEY_V{n} value holds
// base64 KMS ciphertext instead of the key itself.
type KMSKeeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}
