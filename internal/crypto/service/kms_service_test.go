package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"gocloud.dev/secrets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/nostr-signer/internal/crypto/domain"
)

// generateLocalSecretsURI generates a base64key:// URI for testing.
func generateLocalSecretsURI(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return "base64key://" + base64.URLEncoding.EncodeToString(key)
}

func TestKMSService_OpenKeeper(t *testing.T) {
	ctx := context.Background()
	kmsService := NewKMSService()

	t.Run("Success_LocalSecrets", func(t *testing.T) {
		keeper, err := kmsService.OpenKeeper(ctx, generateLocalSecretsURI(t))
		require.NoError(t, err)
		defer func() {
			assert.NoError(t, keeper.Close())
		}()

		_, ok := keeper.(*secrets.Keeper)
		assert.True(t, ok, "keeper should be *secrets.Keeper")
	})

	t.Run("Error_InvalidURI", func(t *testing.T) {
		keeper, err := kmsService.OpenKeeper(ctx, "invalid://uri")
		assert.Error(t, err)
		assert.Nil(t, keeper)
		assert.Contains(t, err.Error(), "failed to open KMS keeper")
	})
}

func TestKMSService_WrapUnwrapMaterials(t *testing.T) {
	ctx := context.Background()
	kmsService := NewKMSService()
	keyURI := generateLocalSecretsURI(t)

	material1 := "base64:" + base64.StdEncoding.EncodeToString(make([]byte, cryptoDomain.KeySize))
	material2 := "0000000000000000000000000000000000000000000000000000000000000002"

	wrapped1, err := kmsService.WrapMaterial(ctx, keyURI, material1)
	require.NoError(t, err)
	assert.NotEqual(t, material1, wrapped1)
	wrapped2, err := kmsService.WrapMaterial(ctx, keyURI, material2)
	require.NoError(t, err)

	unwrapped, err := kmsService.UnwrapMaterials(ctx, keyURI, map[int]string{1: wrapped1, 2: wrapped2})
	require.NoError(t, err)
	assert.Equal(t, map[int]string{1: material1, 2: material2}, unwrapped)
}

func TestKMSService_UnwrapMaterialsErrors(t *testing.T) {
	ctx := context.Background()
	kmsService := NewKMSService()

	t.Run("not base64", func(t *testing.T) {
		_, err := kmsService.UnwrapMaterials(ctx, generateLocalSecretsURI(t), map[int]string{1: "%%%"})
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeyMaterial)
	})

	t.Run("wrapped by another key", func(t *testing.T) {
		wrapped, err := kmsService.WrapMaterial(ctx, generateLocalSecretsURI(t), "material")
		require.NoError(t, err)

		_, err = kmsService.UnwrapMaterials(ctx, generateLocalSecretsURI(t), map[int]string{1: wrapped})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decrypt key material version 1")
	})

	t.Run("invalid uri", func(t *testing.T) {
		_, err := kmsService.UnwrapMaterials(ctx, "invalid://uri", map[int]string{1: "AAAA"})
		assert.Error(t, err)
	})
}
