package domain

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

var hexKeyPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// DecodeKeyMaterial turns a configured key material string into a 32-byte KEK.
//
// Accepted forms, tried in order after trimming whitespace:
//   - "base64:<b64>": must decode to exactly 32 bytes
//   - standard base64 that decodes to exactly 32 bytes
//   - 64 hexadecimal characters
//   - a raw 32-byte string
//
// Anything else returns ErrInvalidKeyMaterial.
func DecodeKeyMaterial(value string) ([]byte, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: value is empty", ErrInvalidKeyMaterial)
	}

	if rest, ok := strings.CutPrefix(trimmed, Base64KeyPrefix); ok {
		decoded, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid base64", ErrInvalidKeyMaterial)
		}
		if len(decoded) != KeySize {
			Zero(decoded)
			return nil, fmt.Errorf(
				"%w: base64 key must decode to %d bytes, got %d",
				ErrInvalidKeyMaterial,
				KeySize,
				len(decoded),
			)
		}
		return decoded, nil
	}

	if decoded, err := base64.StdEncoding.DecodeString(trimmed); err == nil {
		if len(decoded) == KeySize {
			return decoded, nil
		}
		Zero(decoded)
	}

	if hexKeyPattern.MatchString(trimmed) {
		decoded, err := hex.DecodeString(trimmed)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid hex", ErrInvalidKeyMaterial)
		}
		return decoded, nil
	}

	if len(trimmed) == KeySize {
		return []byte(trimmed), nil
	}

	return nil, fmt.Errorf("%w: expected 32 bytes as base64, hex or raw", ErrInvalidKeyMaterial)
}

// DeriveLegacyKey hashes the master secret into the 32-byte key used by the
// legacy CBC format and by the version 1 KEK fallback. The secret is used as
// given, without trimming.
func DeriveLegacyKey(masterSecret string) []byte {
	sum := sha256.Sum256([]byte(masterSecret))
	return sum[:]
}

// DeriveRecryptKey turns an operator supplied secret into a 32-byte key for a
// full re-encryption run. 64 hex characters are used verbatim, a "base64:"
// value must decode to 32 bytes, and anything else is hashed with SHA-256
// after trimming.
func DeriveRecryptKey(secret string) ([]byte, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: secret is empty", ErrInvalidKeyMaterial)
	}

	if hexKeyPattern.MatchString(trimmed) {
		decoded, err := hex.DecodeString(trimmed)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid hex", ErrInvalidKeyMaterial)
		}
		return decoded, nil
	}

	if rest, ok := strings.CutPrefix(trimmed, Base64KeyPrefix); ok {
		decoded, err := base64.StdEncoding.DecodeString(rest)
		if err != nil || len(decoded) != KeySize {
			Zero(decoded)
			return nil, fmt.Errorf("%w: base64 secret must decode to %d bytes", ErrInvalidKeyMaterial, KeySize)
		}
		return decoded, nil
	}

	return DeriveLegacyKey(trimmed), nil
}
