package validation

import (
	"crypto/aes"
	"encoding/base64"

	validation "github.com/jellydator/validation"

	cryptoDomain "github.com/allisson/nostr-signer/internal/crypto/domain"
)

// CBCCiphertext validates a standard base64 IV||ciphertext value in the CBC
// transport format: a 16-byte IV followed by at least one whole AES block.
// Empty strings pass so Required decides whether the field is mandatory.
var CBCCiphertext = validation.By(func(value any) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_cbc_ciphertext_type", "must be a string")
	}
	if s == "" {
		return nil
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return validation.NewError("validation_cbc_ciphertext_base64", "must be valid base64-encoded data")
	}
	body := len(data) - cryptoDomain.LegacyIVSize
	if body < aes.BlockSize || body%aes.BlockSize != 0 {
		return validation.NewError(
			"validation_cbc_ciphertext_length",
			"must hold a 16-byte IV followed by whole 16-byte blocks",
		)
	}
	return nil
})
