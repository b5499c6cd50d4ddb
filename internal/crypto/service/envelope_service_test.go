package service

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/nostr-signer/internal/crypto/domain"
	apperrors "github.com/allisson/nostr-signer/internal/errors"
)

const testNsec = "nsec1vl029mgpspedva04g90vltkh6fvh240zqtv9k0t9af8935ke9laqsnlfe5"

func material(b byte) string {
	return "base64:" + base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{b}, cryptoDomain.KeySize))
}

func newTestCrypto(t *testing.T, cfg cryptoDomain.KeyringConfig) *EnvelopeCryptoService {
	t.Helper()
	if cfg.MaxVersions == 0 {
		cfg.MaxVersions = cryptoDomain.DefaultMaxKeyVersions
	}
	keyring, err := cryptoDomain.NewKeyring(cfg)
	require.NoError(t, err)
	t.Cleanup(keyring.Close)
	return NewEnvelopeCrypto(keyring, NewLegacyCBC())
}

func decodeDoc(t *testing.T, ciphertext string) map[string]any {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc
}

func encodeDoc(t *testing.T, doc map[string]any) string {
	t.Helper()
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestEnvelopeCrypto_RoundTrip(t *testing.T) {
	svc := newTestCrypto(t, cryptoDomain.KeyringConfig{
		ActiveVersion: "1",
		Materials:     map[int]string{1: material(1)},
	})

	for _, plaintext := range []string{testNsec, "", "ü unicode ✓"} {
		ciphertext, err := svc.Encrypt([]byte(plaintext))
		require.NoError(t, err)

		decrypted, err := svc.Decrypt(ciphertext)
		require.NoError(t, err)
		assert.Equal(t, plaintext, string(decrypted))
	}
}

func TestEnvelopeCrypto_AllowedVersions(t *testing.T) {
	svc := newTestCrypto(t, cryptoDomain.KeyringConfig{
		ActiveVersion: "4",
		MaxVersions:   2,
		Materials:     map[int]string{2: material(2), 3: material(3), 4: material(4)},
	})

	assert.Equal(t, 4, svc.ActiveVersion())
	assert.Equal(t, []int{4, 3}, svc.AllowedVersions())
	assert.True(t, svc.IsAllowedVersion(4))
	assert.True(t, svc.IsAllowedVersion(3))
	assert.False(t, svc.IsAllowedVersion(2))
	assert.False(t, svc.IsAllowedVersion(5))
}

func TestEnvelopeCrypto_EncryptIsRandomized(t *testing.T) {
	svc := newTestCrypto(t, cryptoDomain.KeyringConfig{Materials: map[int]string{1: material(1)}})

	a, err := svc.Encrypt([]byte(testNsec))
	require.NoError(t, err)
	b, err := svc.Encrypt([]byte(testNsec))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	docA, docB := decodeDoc(t, a), decodeDoc(t, b)
	assert.NotEqual(t, docA["wk"], docB["wk"])
	assert.NotEqual(t, docA["di"], docB["di"])
}

func TestEnvelopeCrypto_VersionStamp(t *testing.T) {
	svc := newTestCrypto(t, cryptoDomain.KeyringConfig{
		ActiveVersion: "3",
		Materials:     map[int]string{3: material(3)},
	})

	ciphertext, err := svc.Encrypt([]byte(testNsec))
	require.NoError(t, err)

	doc := decodeDoc(t, ciphertext)
	assert.EqualValues(t, 1, doc["v"])
	assert.EqualValues(t, 3, doc["kv"])

	kv, err := svc.KeyVersion(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, 3, kv)

	for field, size := range map[string]int{"di": 12, "dt": 16, "wi": 12, "wt": 16, "wk": 32} {
		raw, err := base64.StdEncoding.DecodeString(doc[field].(string))
		require.NoError(t, err)
		assert.Len(t, raw, size, field)
	}
}

func TestEnvelopeCrypto_EncryptWithoutActiveKek(t *testing.T) {
	svc := newTestCrypto(t, cryptoDomain.KeyringConfig{ActiveVersion: "2"})
	assert.False(t, svc.Available())

	_, err := svc.Encrypt([]byte(testNsec))
	assert.ErrorIs(t, err, cryptoDomain.ErrKeyMaterialNotFound)
	assert.True(t, apperrors.Is(err, apperrors.ErrConfiguration))
}

func TestEnvelopeCrypto_TamperDetection(t *testing.T) {
	svc := newTestCrypto(t, cryptoDomain.KeyringConfig{Materials: map[int]string{1: material(1)}})
	ciphertext, err := svc.Encrypt([]byte(testNsec))
	require.NoError(t, err)

	for _, field := range []string{"di", "dt", "ct", "wi", "wt", "wk"} {
		t.Run(field, func(t *testing.T) {
			doc := decodeDoc(t, ciphertext)
			raw, err := base64.StdEncoding.DecodeString(doc[field].(string))
			require.NoError(t, err)
			raw[0] ^= 0x01
			doc[field] = base64.StdEncoding.EncodeToString(raw)

			plaintext, err := svc.Decrypt(encodeDoc(t, doc))
			assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
			assert.Nil(t, plaintext)
		})
	}
}

func TestEnvelopeCrypto_WrongKeySameVersion(t *testing.T) {
	writer := newTestCrypto(t, cryptoDomain.KeyringConfig{Materials: map[int]string{1: material(1)}})
	reader := newTestCrypto(t, cryptoDomain.KeyringConfig{Materials: map[int]string{1: material(9)}})

	ciphertext, err := writer.Encrypt([]byte(testNsec))
	require.NoError(t, err)

	_, err = reader.Decrypt(ciphertext)
	assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
}

func TestEnvelopeCrypto_DecryptHardFailures(t *testing.T) {
	svc := newTestCrypto(t, cryptoDomain.KeyringConfig{
		MasterKey: "legacy master",
		Materials: map[int]string{1: material(1)},
	})
	ciphertext, err := svc.Encrypt([]byte(testNsec))
	require.NoError(t, err)

	t.Run("unknown envelope version", func(t *testing.T) {
		doc := decodeDoc(t, ciphertext)
		doc["v"] = 2
		_, err := svc.Decrypt(encodeDoc(t, doc))
		assert.ErrorIs(t, err, cryptoDomain.ErrUnsupportedEnvelopeVersion)
	})

	t.Run("unknown key version fails closed", func(t *testing.T) {
		doc := decodeDoc(t, ciphertext)
		doc["kv"] = 7
		_, err := svc.Decrypt(encodeDoc(t, doc))
		assert.ErrorIs(t, err, cryptoDomain.ErrKeyMaterialNotFound)
	})

	t.Run("byte field is not base64", func(t *testing.T) {
		doc := decodeDoc(t, ciphertext)
		doc["ct"] = "%%%"
		_, err := svc.Decrypt(encodeDoc(t, doc))
		assert.ErrorIs(t, err, cryptoDomain.ErrMalformedEnvelope)
	})
}

func TestEnvelopeCrypto_LegacyFallback(t *testing.T) {
	svc := newTestCrypto(t, cryptoDomain.KeyringConfig{
		MasterKey: "legacy master",
		Materials: map[int]string{1: material(1)},
	})

	legacyCiphertext, err := NewLegacyCBC().Encrypt([]byte(testNsec), cryptoDomain.DeriveLegacyKey("legacy master"))
	require.NoError(t, err)

	t.Run("legacy value decrypts under hashed master key", func(t *testing.T) {
		plaintext, err := svc.Decrypt(legacyCiphertext)
		require.NoError(t, err)
		assert.Equal(t, testNsec, string(plaintext))
	})

	t.Run("garbage fails", func(t *testing.T) {
		_, err := svc.Decrypt("not base64 json")
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})

	t.Run("legacy value without master key", func(t *testing.T) {
		noMaster := newTestCrypto(t, cryptoDomain.KeyringConfig{Materials: map[int]string{1: material(1)}})
		_, err := noMaster.Decrypt(legacyCiphertext)
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
		assert.ErrorIs(t, err, cryptoDomain.ErrMasterKeyNotSet)
	})
}

func TestEnvelopeCrypto_MasterKeyFallbackVersion1(t *testing.T) {
	// Pre-rotation deployments only have the master secret; version 1 envelopes
	// must be written and read with SHA-256 of it.
	svc := newTestCrypto(t, cryptoDomain.KeyringConfig{MasterKey: "legacy master"})
	ciphertext, err := svc.Encrypt([]byte(testNsec))
	require.NoError(t, err)

	explicit := newTestCrypto(t, cryptoDomain.KeyringConfig{
		Materials: map[int]string{1: hex.EncodeToString(cryptoDomain.DeriveLegacyKey("legacy master"))},
	})
	plaintext, err := explicit.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, testNsec, string(plaintext))
}

func TestEnvelopeCrypto_Rewrap(t *testing.T) {
	svc := newTestCrypto(t, cryptoDomain.KeyringConfig{
		ActiveVersion: "1",
		Materials:     map[int]string{1: material(1)},
	})
	ciphertext, err := svc.Encrypt([]byte(testNsec))
	require.NoError(t, err)

	oldKek := bytes.Repeat([]byte{1}, cryptoDomain.KeySize)
	newKek := bytes.Repeat([]byte{2}, cryptoDomain.KeySize)

	rewrapped, err := svc.Rewrap(ciphertext, oldKek, newKek, 2)
	require.NoError(t, err)

	before, after := decodeDoc(t, ciphertext), decodeDoc(t, rewrapped)
	for _, field := range []string{"v", "di", "dt", "ct"} {
		assert.Equal(t, before[field], after[field], field)
	}
	for _, field := range []string{"wi", "wt", "wk"} {
		assert.NotEqual(t, before[field], after[field], field)
	}
	assert.EqualValues(t, 2, after["kv"])

	reader := newTestCrypto(t, cryptoDomain.KeyringConfig{
		ActiveVersion: "2",
		Materials:     map[int]string{2: material(2)},
	})
	plaintext, err := reader.Decrypt(rewrapped)
	require.NoError(t, err)
	assert.Equal(t, testNsec, string(plaintext))

	t.Run("wrong old kek", func(t *testing.T) {
		_, err := svc.Rewrap(ciphertext, newKek, newKek, 2)
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})

	t.Run("not an envelope", func(t *testing.T) {
		_, err := svc.Rewrap("not base64 json", oldKek, newKek, 2)
		assert.ErrorIs(t, err, cryptoDomain.ErrNotEnvelope)
	})
}

func TestEnvelopeCrypto_RewrapToActive(t *testing.T) {
	v1 := newTestCrypto(t, cryptoDomain.KeyringConfig{
		ActiveVersion: "1",
		Materials:     map[int]string{1: material(1), 2: material(2)},
	})
	v2 := newTestCrypto(t, cryptoDomain.KeyringConfig{
		ActiveVersion: "2",
		Materials:     map[int]string{1: material(1), 2: material(2)},
	})

	ciphertext, err := v1.Encrypt([]byte(testNsec))
	require.NoError(t, err)

	rewrapped, changed, err := v2.RewrapToActive(ciphertext)
	require.NoError(t, err)
	assert.True(t, changed)
	kv, err := v2.KeyVersion(rewrapped)
	require.NoError(t, err)
	assert.Equal(t, 2, kv)

	again, changed, err := v2.RewrapToActive(rewrapped)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, rewrapped, again)

	plaintext, err := v2.Decrypt(rewrapped)
	require.NoError(t, err)
	assert.Equal(t, testNsec, string(plaintext))

	t.Run("old version material missing", func(t *testing.T) {
		onlyV2 := newTestCrypto(t, cryptoDomain.KeyringConfig{
			ActiveVersion: "2",
			Materials:     map[int]string{2: material(2)},
		})
		_, _, err := onlyV2.RewrapToActive(ciphertext)
		assert.ErrorIs(t, err, cryptoDomain.ErrKeyMaterialNotFound)
	})
}

func TestEnvelopeCrypto_RecryptValue(t *testing.T) {
	svc := newTestCrypto(t, cryptoDomain.KeyringConfig{Materials: map[int]string{1: material(1)}})

	oldKey, err := cryptoDomain.DeriveRecryptKey("old secret")
	require.NoError(t, err)
	newKey, err := cryptoDomain.DeriveRecryptKey("new secret")
	require.NoError(t, err)

	reader := newTestCrypto(t, cryptoDomain.KeyringConfig{
		Materials: map[int]string{1: hex.EncodeToString(newKey)},
	})

	t.Run("legacy value is fully re-encrypted", func(t *testing.T) {
		legacyCiphertext, err := svc.EncryptLegacy([]byte(testNsec), oldKey)
		require.NoError(t, err)

		recrypted, err := svc.RecryptValue(legacyCiphertext, oldKey, newKey)
		require.NoError(t, err)
		kv, err := svc.KeyVersion(recrypted)
		require.NoError(t, err)
		assert.Equal(t, 1, kv)

		plaintext, err := reader.Decrypt(recrypted)
		require.NoError(t, err)
		assert.Equal(t, testNsec, string(plaintext))
	})

	t.Run("envelope is rewrapped", func(t *testing.T) {
		ciphertext, err := svc.EncryptWithKek([]byte(testNsec), oldKey, 4)
		require.NoError(t, err)

		recrypted, err := svc.RecryptValue(ciphertext, oldKey, newKey)
		require.NoError(t, err)
		assert.Equal(t, decodeDoc(t, ciphertext)["ct"], decodeDoc(t, recrypted)["ct"])
		assert.EqualValues(t, 1, decodeDoc(t, recrypted)["kv"])

		plaintext, err := reader.Decrypt(recrypted)
		require.NoError(t, err)
		assert.Equal(t, testNsec, string(plaintext))
	})

	t.Run("wrong old key", func(t *testing.T) {
		ciphertext, err := svc.EncryptWithKek([]byte(testNsec), newKey, 1)
		require.NoError(t, err)
		_, err = svc.RecryptValue(ciphertext, oldKey, newKey)
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})
}

func TestEnvelopeCrypto_EncryptWithKekValidation(t *testing.T) {
	svc := newTestCrypto(t, cryptoDomain.KeyringConfig{})

	_, err := svc.EncryptWithKek([]byte("x"), make([]byte, 16), 1)
	assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize)

	_, err = svc.EncryptWithKek([]byte("x"), make([]byte, 32), 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestEnvelopeCrypto_SessionKey(t *testing.T) {
	svc := newTestCrypto(t, cryptoDomain.KeyringConfig{MasterKey: "legacy master"})

	key, err := svc.SessionKey("session-token")
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte("legacy master"))
	mac.Write([]byte("session-token"))
	assert.Equal(t, mac.Sum(nil), key)
	assert.Len(t, key, cryptoDomain.KeySize)

	_, err = svc.SessionKey("")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	noMaster := newTestCrypto(t, cryptoDomain.KeyringConfig{})
	_, err = noMaster.SessionKey("session-token")
	assert.ErrorIs(t, err, cryptoDomain.ErrMasterKeyNotSet)
}
