package commands

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	cryptoDomain "github.com/allisson/nostr-signer/internal/crypto/domain"
	cryptoService "github.com/allisson/nostr-signer/internal/crypto/service"
)

// RunKeygen generates fresh KEK material for the given version and prints the
// environment lines that configure it.
//
// When kmsKeyURI is set the material is encrypted with the KMS keeper and the
// printed value is the base64 KMS ciphertext the keyring expects in that mode.
// The plaintext key is zeroed before returning.
func RunKeygen(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	writer io.Writer,
	version int,
	kmsKeyURI string,
	format string,
) error {
	if version < cryptoDomain.MinKeyVersion {
		return fmt.Errorf("version must be >= %d, got: %d", cryptoDomain.MinKeyVersion, version)
	}
	if err := validateFormat(format); err != nil {
		return err
	}

	key := make([]byte, cryptoDomain.KeySize)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("failed to generate key material: %w", err)
	}
	defer cryptoDomain.Zero(key)

	material := "base64:" + base64.StdEncoding.EncodeToString(key)
	if kmsKeyURI != "" {
		wrapped, err := kmsService.WrapMaterial(ctx, kmsKeyURI, material)
		if err != nil {
			return fmt.Errorf("failed to encrypt key material with KMS: %w", err)
		}
		material = wrapped
	}

	name := fmt.Sprintf("NOSTR_SIGNER_KEY_V%d", version)

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"version":  version,
			"variable": name,
			"material": material,
			"kms":      kmsKeyURI != "",
		})
	}

	_, _ = fmt.Fprintln(writer, "# Add to your environment, then activate the version and run rotation")
	if kmsKeyURI != "" {
		_, _ = fmt.Fprintln(writer, "# Value is encrypted with KMS; KMS_KEY_URI must be set when loading it")
		_, _ = fmt.Fprintf(writer, "KMS_KEY_URI=%q\n", kmsKeyURI)
	}
	_, _ = fmt.Fprintf(writer, "%s=%q\n", name, material)
	_, _ = fmt.Fprintf(writer, "NOSTR_SIGNER_ACTIVE_KEY_VERSION=\"%d\"\n", version)
	return nil
}
