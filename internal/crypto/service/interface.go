// Package service provides the cryptographic primitives and the envelope
// facade used to protect nsec values at rest.
package service

// AEAD seals and opens data with a detached authentication tag.
type AEAD interface {
	// Seal encrypts plaintext under a fresh random nonce.
	Seal(plaintext []byte) (ciphertext, nonce, tag []byte, err error)

	// Open verifies tag and decrypts ciphertext. Authentication failures
	// return cryptoDomain.ErrDecryptionFailed.
	Open(ciphertext, nonce, tag []byte) ([]byte, error)
}

// LegacyCipher implements the unauthenticated CBC format kept for reading old records.
type LegacyCipher interface {
	Encrypt(plaintext, key []byte) (string, error)
	Decrypt(ciphertext string, key []byte) ([]byte, error)
}

// EnvelopeCrypto is the crypto facade consumed by the key and rotation use cases.
//
// Every returned plaintext is a fresh slice owned by the caller, who should
// zero it with cryptoDomain.Zero once done.
type EnvelopeCrypto interface {
	// Available reports whether the active KEK resolves. Callers that would
	// otherwise fail with a configuration error use this to no-op instead.
	Available() bool

	// ActiveVersion returns the KEK version new envelopes are written with.
	ActiveVersion() int

	// AllowedVersions returns the active version and up to N-1 preceding versions.
	AllowedVersions() []int

	// IsAllowedVersion reports whether version is in AllowedVersions.
	IsAllowedVersion(version int) bool

	// Encrypt seals plaintext into a new envelope under the active KEK.
	Encrypt(plaintext []byte) (string, error)

	// EncryptWithKek seals plaintext into a new envelope under an explicit KEK.
	EncryptWithKek(plaintext, kek []byte, version int) (string, error)

	// Decrypt opens an envelope, falling back to the legacy format only when
	// the input is not an envelope at all.
	Decrypt(ciphertext string) ([]byte, error)

	// Rewrap re-seals the envelope's DEK from oldKek to newKek. Only the key
	// version and the wrap nonce, tag and wrapped key change.
	Rewrap(ciphertext string, oldKek, newKek []byte, newVersion int) (string, error)

	// RewrapToActive rewraps an envelope onto the active KEK. The boolean
	// reports whether anything changed.
	RewrapToActive(ciphertext string) (string, bool, error)

	// KeyVersion returns the KEK version of an envelope.
	KeyVersion(ciphertext string) (int, error)

	// RecryptValue moves a value to newKey at version 1: legacy values are
	// fully re-encrypted, envelopes are rewrapped.
	RecryptValue(ciphertext string, oldKey, newKey []byte) (string, error)

	// DecryptLegacy opens a legacy CBC value under an explicit key.
	DecryptLegacy(ciphertext string, key []byte) ([]byte, error)

	// EncryptLegacy seals a value in the legacy CBC format under an explicit key.
	EncryptLegacy(plaintext, key []byte) (string, error)

	// SessionKey derives the transport key for key import from a session token.
	SessionKey(sessionToken string) ([]byte, error)
}
