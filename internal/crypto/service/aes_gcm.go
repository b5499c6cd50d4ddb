package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	cryptoDomain "github.com/allisson/nostr-signer/internal/crypto/domain"
)

// AESGCMCipher implements the AEAD interface using AES-256-GCM with a
// detached authentication tag.
//
// Envelopes store nonce, tag and ciphertext as separate fields, so Seal splits
// the 16-byte tag off the sealed output and Open re-joins it before
// verification.
//
// Security properties:
//   - 256-bit key size
//   - 12-byte random nonce for every Seal
//   - 16-byte authentication tag
//   - Open accepts any non-empty nonce length so records written with a
//     16-byte IV by older writers still decrypt
//
// Thread safety:
//
//	The cipher instance is stateless and safe for concurrent use from multiple
//	goroutines.
type AESGCMCipher struct {
	block cipher.Block
	aead  cipher.AEAD
}

// NewAESGCM creates a new AES-256-GCM cipher instance. The key must be exactly 32 bytes.
func NewAESGCM(key []byte) (*AESGCMCipher, error) {
	if len(key) != cryptoDomain.KeySize {
		return nil, fmt.Errorf("%w: got %d bytes", cryptoDomain.ErrInvalidKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESGCMCipher{block: block, aead: aead}, nil
}

// Seal encrypts plaintext under a fresh random 12-byte nonce.
func (a *AESGCMCipher) Seal(plaintext []byte) (ciphertext, nonce, tag []byte, err error) {
	nonce = make([]byte, cryptoDomain.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := a.aead.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - cryptoDomain.TagSize
	return sealed[:split], nonce, sealed[split:], nil
}

// Open verifies the tag and decrypts ciphertext.
//
// Any failure (bad tag, wrong key, invalid nonce or tag length) returns
// cryptoDomain.ErrDecryptionFailed and never partial plaintext.
func (a *AESGCMCipher) Open(ciphertext, nonce, tag []byte) ([]byte, error) {
	if len(tag) != cryptoDomain.TagSize || len(nonce) == 0 {
		return nil, cryptoDomain.ErrDecryptionFailed
	}

	aead := a.aead
	if len(nonce) != aead.NonceSize() {
		var err error
		aead, err = cipher.NewGCMWithNonceSize(a.block, len(nonce))
		if err != nil {
			return nil, cryptoDomain.ErrDecryptionFailed
		}
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return plaintext, nil
}
