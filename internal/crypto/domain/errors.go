package domain

import (
	"github.com/allisson/nostr-signer/internal/errors"
)

// Key material errors.
//
// These are operator errors: they are raised while resolving KEKs from
// configuration and always wrap errors.ErrConfiguration.
var (
	// ErrKeyMaterialNotFound indicates no key material is configured for the requested version.
	ErrKeyMaterialNotFound = errors.Wrap(errors.ErrConfiguration, "key material not found")

	// ErrInvalidKeyMaterial indicates configured key material could not be decoded into 32 bytes.
	ErrInvalidKeyMaterial = errors.Wrap(errors.ErrConfiguration, "invalid key material")

	// ErrInvalidActiveVersion indicates NOSTR_SIGNER_ACTIVE_KEY_VERSION is not a positive integer.
	ErrInvalidActiveVersion = errors.Wrap(errors.ErrConfiguration, "invalid active key version")

	// ErrInvalidMaxVersions indicates NOSTR_SIGNER_MAX_KEY_VERSIONS is below 1.
	ErrInvalidMaxVersions = errors.Wrap(errors.ErrConfiguration, "invalid max key versions")

	// ErrMasterKeyNotSet indicates an operation needed the master secret but none is configured.
	ErrMasterKeyNotSet = errors.Wrap(errors.ErrConfiguration, "master key not set")

	// ErrInvalidKeySize indicates a key passed to a cipher is not exactly 32 bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")
)

// Ciphertext errors.
var (
	// ErrDecryptionFailed indicates a decryption operation failed.
	//
	// Wrong key and tampered data are deliberately indistinguishable: both
	// surface as this single error so callers cannot use it as an oracle.
	ErrDecryptionFailed = errors.Wrap(errors.ErrInvalidInput, "decryption failed")

	// ErrNotEnvelope indicates the input is not an envelope at all (bad outer
	// base64, bad JSON, or missing fields). Callers may fall back to the legacy format.
	ErrNotEnvelope = errors.Wrap(errors.ErrInvalidInput, "not an envelope")

	// ErrMalformedEnvelope indicates the input parsed as an envelope but a byte
	// field is not valid base64. This is a hard failure with no legacy fallback.
	ErrMalformedEnvelope = errors.Wrap(errors.ErrInvalidInput, "malformed envelope")

	// ErrUnsupportedEnvelopeVersion indicates an envelope whose "v" field is not EnvelopeVersion.
	ErrUnsupportedEnvelopeVersion = errors.Wrap(errors.ErrInvalidInput, "unsupported envelope version")

	// ErrInvalidLegacyCiphertext indicates a legacy blob is too short or not block aligned.
	ErrInvalidLegacyCiphertext = errors.Wrap(errors.ErrInvalidInput, "invalid legacy ciphertext")
)
