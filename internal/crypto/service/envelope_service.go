package service

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	cryptoDomain "github.com/allisson/nostr-signer/internal/crypto/domain"
	"github.com/allisson/nostr-signer/internal/errors"
)

// EnvelopeCryptoService implements EnvelopeCrypto over a Keyring.
//
// Encryption flow:
//  1. Generate a random 32-byte DEK
//  2. Seal the plaintext under the DEK (data layer)
//  3. Seal the DEK under the KEK (wrap layer)
//  4. Zero the DEK and encode the envelope
//
// The service holds no mutable state; all key material lives in the Keyring.
type EnvelopeCryptoService struct {
	keyring *cryptoDomain.Keyring
	legacy  LegacyCipher
}

// NewEnvelopeCrypto creates the crypto facade.
func NewEnvelopeCrypto(keyring *cryptoDomain.Keyring, legacy LegacyCipher) *EnvelopeCryptoService {
	return &EnvelopeCryptoService{keyring: keyring, legacy: legacy}
}

// Available reports whether the active KEK resolves.
func (s *EnvelopeCryptoService) Available() bool {
	return s.keyring.Available()
}

// ActiveVersion returns the active KEK version.
func (s *EnvelopeCryptoService) ActiveVersion() int {
	return s.keyring.ActiveVersion()
}

// AllowedVersions returns the retained KEK versions, newest first.
func (s *EnvelopeCryptoService) AllowedVersions() []int {
	return s.keyring.AllowedVersions()
}

// IsAllowedVersion reports whether version is still in the allowed set.
func (s *EnvelopeCryptoService) IsAllowedVersion(version int) bool {
	return s.keyring.IsAllowed(version)
}

// Encrypt seals plaintext under the active KEK.
func (s *EnvelopeCryptoService) Encrypt(plaintext []byte) (string, error) {
	kek, version, err := s.keyring.ActiveKey()
	if err != nil {
		return "", err
	}
	return s.EncryptWithKek(plaintext, kek, version)
}

// EncryptWithKek seals plaintext under kek and stamps the envelope with version.
func (s *EnvelopeCryptoService) EncryptWithKek(plaintext, kek []byte, version int) (string, error) {
	if version < cryptoDomain.MinKeyVersion {
		return "", errors.Wrapf(errors.ErrInvalidInput, "key version must be >= 1, got %d", version)
	}

	wrapCipher, err := NewAESGCM(kek)
	if err != nil {
		return "", err
	}

	dek := make([]byte, cryptoDomain.KeySize)
	if _, err := rand.Read(dek); err != nil {
		return "", fmt.Errorf("failed to generate DEK: %w", err)
	}
	defer cryptoDomain.Zero(dek)

	dataCipher, err := NewAESGCM(dek)
	if err != nil {
		return "", err
	}

	ciphertext, dataNonce, dataTag, err := dataCipher.Seal(plaintext)
	if err != nil {
		return "", fmt.Errorf("failed to seal payload: %w", err)
	}

	wrappedDek, wrapNonce, wrapTag, err := wrapCipher.Seal(dek)
	if err != nil {
		return "", fmt.Errorf("failed to wrap DEK: %w", err)
	}

	env := &cryptoDomain.Envelope{
		Version:    cryptoDomain.EnvelopeVersion,
		KeyVersion: version,
		DataNonce:  dataNonce,
		DataTag:    dataTag,
		Ciphertext: ciphertext,
		WrapNonce:  wrapNonce,
		WrapTag:    wrapTag,
		WrappedDek: wrappedDek,
	}
	return env.Encode()
}

// Decrypt opens a stored value.
//
// Decision order:
//   - not an envelope (bad base64, bad JSON, missing fields): legacy CBC under
//     SHA-256 of the master secret
//   - malformed envelope or "v" other than 1: hard failure, no fallback
//   - unknown "kv": configuration error, no fallback
//   - wrap or payload authentication failure: ErrDecryptionFailed
func (s *EnvelopeCryptoService) Decrypt(ciphertext string) ([]byte, error) {
	env, err := cryptoDomain.DecodeEnvelope(ciphertext)
	if errors.Is(err, cryptoDomain.ErrNotEnvelope) {
		return s.decryptLegacyWithMaster(ciphertext)
	}
	if err != nil {
		return nil, err
	}

	if env.Version != cryptoDomain.EnvelopeVersion {
		return nil, fmt.Errorf("%w: %d", cryptoDomain.ErrUnsupportedEnvelopeVersion, env.Version)
	}

	kek, err := s.keyring.Resolve(env.KeyVersion)
	if err != nil {
		return nil, err
	}

	return openEnvelope(env, kek)
}

// Rewrap moves the envelope's DEK from oldKek to newKek.
func (s *EnvelopeCryptoService) Rewrap(
	ciphertext string,
	oldKek, newKek []byte,
	newVersion int,
) (string, error) {
	env, err := cryptoDomain.DecodeEnvelope(ciphertext)
	if err != nil {
		return "", err
	}
	return rewrapEnvelope(env, oldKek, newKek, newVersion)
}

// RewrapToActive rewraps an envelope onto the active KEK. Envelopes already on
// the active version are returned unchanged.
func (s *EnvelopeCryptoService) RewrapToActive(ciphertext string) (string, bool, error) {
	newKek, activeVersion, err := s.keyring.ActiveKey()
	if err != nil {
		return "", false, err
	}

	env, err := cryptoDomain.DecodeEnvelope(ciphertext)
	if err != nil {
		return "", false, err
	}
	if env.KeyVersion == activeVersion {
		return ciphertext, false, nil
	}

	oldKek, err := s.keyring.Resolve(env.KeyVersion)
	if err != nil {
		return "", false, err
	}

	rewrapped, err := rewrapEnvelope(env, oldKek, newKek, activeVersion)
	if err != nil {
		return "", false, err
	}
	return rewrapped, true, nil
}

// KeyVersion returns the KEK version recorded in an envelope.
func (s *EnvelopeCryptoService) KeyVersion(ciphertext string) (int, error) {
	return cryptoDomain.PeekKeyVersion(ciphertext)
}

// RecryptValue moves a stored value from oldKey to newKey at KEK version 1.
//
// Envelopes are rewrapped. Anything that is not an envelope is treated as
// legacy CBC under oldKey and fully re-encrypted into a new envelope.
// Envelope detection runs first so a valid envelope is never misread as CBC.
func (s *EnvelopeCryptoService) RecryptValue(ciphertext string, oldKey, newKey []byte) (string, error) {
	env, err := cryptoDomain.DecodeEnvelope(ciphertext)
	if err == nil {
		return rewrapEnvelope(env, oldKey, newKey, cryptoDomain.MinKeyVersion)
	}
	if !errors.Is(err, cryptoDomain.ErrNotEnvelope) {
		return "", err
	}

	plaintext, err := s.legacy.Decrypt(ciphertext, oldKey)
	if err != nil {
		return "", err
	}
	defer cryptoDomain.Zero(plaintext)

	return s.EncryptWithKek(plaintext, newKey, cryptoDomain.MinKeyVersion)
}

// DecryptLegacy opens a legacy value under key.
func (s *EnvelopeCryptoService) DecryptLegacy(ciphertext string, key []byte) ([]byte, error) {
	return s.legacy.Decrypt(ciphertext, key)
}

// EncryptLegacy seals plaintext in the legacy format under key.
func (s *EnvelopeCryptoService) EncryptLegacy(plaintext, key []byte) (string, error) {
	return s.legacy.Encrypt(plaintext, key)
}

// SessionKey returns HMAC-SHA256(master secret, sessionToken). Clients use it
// to encrypt an nsec for import so the plaintext never crosses the wire.
func (s *EnvelopeCryptoService) SessionKey(sessionToken string) ([]byte, error) {
	if sessionToken == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "session token is empty")
	}
	secret, err := s.keyring.MasterSecret()
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(sessionToken))
	return mac.Sum(nil), nil
}

func (s *EnvelopeCryptoService) decryptLegacyWithMaster(ciphertext string) ([]byte, error) {
	key, err := s.keyring.LegacyKey()
	if err != nil {
		return nil, fmt.Errorf("%w: not an envelope and %w", cryptoDomain.ErrDecryptionFailed, err)
	}
	plaintext, err := s.legacy.Decrypt(ciphertext, key)
	if err != nil {
		if errors.Is(err, cryptoDomain.ErrInvalidLegacyCiphertext) {
			return nil, fmt.Errorf("%w: %w", cryptoDomain.ErrDecryptionFailed, err)
		}
		return nil, err
	}
	return plaintext, nil
}

// unwrapDek opens the wrap layer and checks the DEK size.
func unwrapDek(env *cryptoDomain.Envelope, kek []byte) ([]byte, error) {
	wrapCipher, err := NewAESGCM(kek)
	if err != nil {
		return nil, err
	}
	dek, err := wrapCipher.Open(env.WrappedDek, env.WrapNonce, env.WrapTag)
	if err != nil {
		return nil, err
	}
	if len(dek) != cryptoDomain.KeySize {
		cryptoDomain.Zero(dek)
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return dek, nil
}

func openEnvelope(env *cryptoDomain.Envelope, kek []byte) ([]byte, error) {
	dek, err := unwrapDek(env, kek)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(dek)

	dataCipher, err := NewAESGCM(dek)
	if err != nil {
		return nil, err
	}
	return dataCipher.Open(env.Ciphertext, env.DataNonce, env.DataTag)
}

func rewrapEnvelope(env *cryptoDomain.Envelope, oldKek, newKek []byte, newVersion int) (string, error) {
	if newVersion < cryptoDomain.MinKeyVersion {
		return "", errors.Wrapf(errors.ErrInvalidInput, "key version must be >= 1, got %d", newVersion)
	}
	if env.Version != cryptoDomain.EnvelopeVersion {
		return "", fmt.Errorf("%w: %d", cryptoDomain.ErrUnsupportedEnvelopeVersion, env.Version)
	}

	newCipher, err := NewAESGCM(newKek)
	if err != nil {
		return "", err
	}

	dek, err := unwrapDek(env, oldKek)
	if err != nil {
		return "", err
	}
	defer cryptoDomain.Zero(dek)

	wrappedDek, wrapNonce, wrapTag, err := newCipher.Seal(dek)
	if err != nil {
		return "", fmt.Errorf("failed to wrap DEK: %w", err)
	}

	out := env.Clone()
	out.KeyVersion = newVersion
	out.WrapNonce = wrapNonce
	out.WrapTag = wrapTag
	out.WrappedDek = wrappedDek
	return out.Encode()
}
