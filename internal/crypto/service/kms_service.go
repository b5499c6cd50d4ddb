package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"gocloud.dev/secrets"

	cryptoDomain "github.com/allisson/nostr-signer/internal/crypto/domain"

	// Register all KMS provider drivers
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// KMSService protects KEK material at rest with an external KMS.
//
// When KMS_KEY_URI is set, each NOSTR_SIGNER_KEY_V{n} value is the base64 KMS
// ciphertext of the key material string rather than the material itself.
type KMSService interface {
	// OpenKeeper opens a secrets.Keeper for the configured KMS provider.
	// Returns an error if the KMS provider URI is invalid or connection fails.
	OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error)

	// UnwrapMaterials decrypts every configured material with the keeper at keyURI.
	UnwrapMaterials(ctx context.Context, keyURI string, materials map[int]string) (map[int]string, error)

	// WrapMaterial encrypts a key material string for storage in the environment.
	WrapMaterial(ctx context.Context, keyURI string, material string) (string, error)
}

// kmsService implements KMSService using gocloud.dev/secrets.
type kmsService struct{}

// NewKMSService creates a new KMS service instance.
func NewKMSService() KMSService {
	return &kmsService{}
}

// OpenKeeper opens a secrets.Keeper for the configured KMS provider using the keyURI.
// Supports: gcpkms://, awskms://, azurekeyvault://, hashivault://, base64key://
func (k *kmsService) OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error) {
	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	return keeper, nil
}

func (k *kmsService) UnwrapMaterials(
	ctx context.Context,
	keyURI string,
	materials map[int]string,
) (map[int]string, error) {
	keeper, err := k.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = keeper.Close()
	}()

	out := make(map[int]string, len(materials))
	for version, material := range materials {
		ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimSpace(material))
		if err != nil {
			return nil, fmt.Errorf("%w: version %d is not base64 KMS ciphertext", cryptoDomain.ErrInvalidKeyMaterial, version)
		}
		plaintext, err := keeper.Decrypt(ctx, ciphertext)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt key material version %d: %w", version, err)
		}
		out[version] = string(plaintext)
		cryptoDomain.Zero(plaintext)
	}
	return out, nil
}

func (k *kmsService) WrapMaterial(ctx context.Context, keyURI string, material string) (string, error) {
	keeper, err := k.OpenKeeper(ctx, keyURI)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = keeper.Close()
	}()

	ciphertext, err := keeper.Encrypt(ctx, []byte(material))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt key material: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}
