package service

import (
	"context"
	"log/slog"

	cryptoDomain "github.com/allisson/nostr-signer/internal/crypto/domain"
)

// LoadKeyring builds the process keyring, unwrapping key material through the
// KMS first when kmsKeyURI is set.
//
// The master secret is never KMS protected: it must stay byte-identical to
// what legacy records were written with.
func LoadKeyring(
	ctx context.Context,
	cfg cryptoDomain.KeyringConfig,
	kmsService KMSService,
	kmsKeyURI string,
	logger *slog.Logger,
) (*cryptoDomain.Keyring, error) {
	if kmsKeyURI != "" && len(cfg.Materials) > 0 {
		materials, err := kmsService.UnwrapMaterials(ctx, kmsKeyURI, cfg.Materials)
		if err != nil {
			return nil, err
		}
		cfg.Materials = materials
	}

	keyring, err := cryptoDomain.NewKeyring(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("keyring loaded",
		slog.Int("active_version", keyring.ActiveVersion()),
		slog.Any("allowed_versions", keyring.AllowedVersions()),
		slog.Any("configured_versions", keyring.ConfiguredVersions()),
		slog.Bool("kms", kmsKeyURI != ""),
		slog.Bool("available", keyring.Available()),
	)
	if !keyring.Available() {
		logger.Warn("active KEK is not available; encryption and rotation are disabled",
			slog.Int("active_version", keyring.ActiveVersion()),
		)
	}

	return keyring, nil
}
