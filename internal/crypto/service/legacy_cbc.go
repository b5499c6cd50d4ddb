package service

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	cryptoDomain "github.com/allisson/nostr-signer/internal/crypto/domain"
)

// LegacyCBCCipher handles the pre-envelope format: base64(IV || AES-256-CBC
// ciphertext) with PKCS#7 padding and no authentication tag.
//
// It is used read-only for stored secrets and for the transport encryption of
// imported keys. Padding is the only integrity signal this format has, so a
// wrong key is detected only most of the time.
type LegacyCBCCipher struct{}

// NewLegacyCBC creates a legacy codec.
func NewLegacyCBC() *LegacyCBCCipher {
	return &LegacyCBCCipher{}
}

// Encrypt seals plaintext under key with a random 16-byte IV.
func (l *LegacyCBCCipher) Encrypt(plaintext, key []byte) (string, error) {
	block, err := legacyBlock(key)
	if err != nil {
		return "", err
	}

	iv := make([]byte, cryptoDomain.LegacyIVSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	defer cryptoDomain.Zero(padded)

	out := make([]byte, len(iv)+len(padded))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[len(iv):], padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt.
//
// Returns ErrInvalidLegacyCiphertext when the input is not base64 or is not a
// whole number of blocks after the IV, and ErrDecryptionFailed when the
// padding does not verify.
func (l *LegacyCBCCipher) Decrypt(ciphertext string, key []byte) ([]byte, error) {
	block, err := legacyBlock(key)
	if err != nil {
		return nil, err
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64", cryptoDomain.ErrInvalidLegacyCiphertext)
	}
	if len(data) <= cryptoDomain.LegacyIVSize || (len(data)-cryptoDomain.LegacyIVSize)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: unexpected length %d", cryptoDomain.ErrInvalidLegacyCiphertext, len(data))
	}

	iv := data[:cryptoDomain.LegacyIVSize]
	body := data[cryptoDomain.LegacyIVSize:]
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)

	unpadded, ok := pkcs7Unpad(plain, aes.BlockSize)
	if !ok {
		cryptoDomain.Zero(plain)
		return nil, cryptoDomain.ErrDecryptionFailed
	}

	out := bytes.Clone(unpadded)
	cryptoDomain.Zero(plain)
	return out, nil
}

func legacyBlock(key []byte) (cipher.Block, error) {
	if len(key) != cryptoDomain.KeySize {
		return nil, fmt.Errorf("%w: got %d bytes", cryptoDomain.ErrInvalidKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	return block, nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, bool) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, false
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize {
		return nil, false
	}
	want := bytes.Repeat([]byte{byte(n)}, n)
	if subtle.ConstantTimeCompare(b[len(b)-n:], want) != 1 {
		return nil, false
	}
	return b[:len(b)-n], true
}
