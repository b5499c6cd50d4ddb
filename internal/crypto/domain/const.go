package domain

// Envelope and key sizing constants.
//
// Both envelope layers use AES-256-GCM with a 12-byte nonce and a detached
// 16-byte authentication tag. Legacy records use AES-256-CBC with a 16-byte IV
// prepended to the ciphertext and carry no authentication tag.
const (
	// EnvelopeVersion is the only envelope format version this package emits or accepts.
	EnvelopeVersion = 1

	// KeySize is the size in bytes of every KEK and DEK (AES-256).
	KeySize = 32

	// NonceSize is the GCM nonce length used for newly sealed data.
	NonceSize = 12

	// TagSize is the GCM authentication tag length.
	TagSize = 16

	// LegacyIVSize is the CBC IV length prefixed to legacy ciphertexts.
	LegacyIVSize = 16

	// MinKeyVersion is the smallest valid KEK version.
	MinKeyVersion = 1

	// DefaultMaxKeyVersions is how many KEK versions stay readable when
	// NOSTR_SIGNER_MAX_KEY_VERSIONS is not configured.
	DefaultMaxKeyVersions = 2
)

// Environment variable names consulted for key material.
const (
	// KeyMaterialEnvPrefix is the preferred per-version key variable prefix (NOSTR_SIGNER_KEY_V{n}).
	KeyMaterialEnvPrefix = "NOSTR_SIGNER_KEY_V"

	// FallbackKeyMaterialEnvPrefix is consulted when the preferred variable is empty (APP_KEY_V{n}).
	FallbackKeyMaterialEnvPrefix = "APP_KEY_V"

	// Base64KeyPrefix marks key material that must be decoded as standard base64.
	Base64KeyPrefix = "base64:"
)
