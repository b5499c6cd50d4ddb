package usecase_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/nostr-signer/internal/crypto/domain"
	cryptoService "github.com/allisson/nostr-signer/internal/crypto/service"
	apperrors "github.com/allisson/nostr-signer/internal/errors"
	keysDomain "github.com/allisson/nostr-signer/internal/keys/domain"
	"github.com/allisson/nostr-signer/internal/keys/usecase"
	nostrDomain "github.com/allisson/nostr-signer/internal/nostr/domain"
	nostrService "github.com/allisson/nostr-signer/internal/nostr/service"
	"github.com/allisson/nostr-signer/internal/testutil"
)

const testMasterKey = "test master secret"

// pubKeyHex returns the hex public key inside a bech32 npub.
func pubKeyHex(t *testing.T, npub string) string {
	t.Helper()
	prefix, value, err := nip19.Decode(npub)
	require.NoError(t, err)
	require.Equal(t, "npub", prefix)
	return value.(string)
}

func assertValidSignature(t *testing.T, event *nostrDomain.Event) {
	t.Helper()
	tags := make(nostr.Tags, 0, len(event.Tags))
	for _, tag := range event.Tags {
		tags = append(tags, nostr.Tag(tag))
	}
	ev := nostr.Event{
		ID:        event.ID,
		PubKey:    event.PubKey,
		CreatedAt: nostr.Timestamp(event.CreatedAt),
		Kind:      event.Kind,
		Tags:      tags,
		Content:   event.Content,
		Sig:       event.Sig,
	}
	assert.Equal(t, ev.GetID(), event.ID)
	ok, err := ev.CheckSignature()
	require.NoError(t, err)
	assert.True(t, ok)
}

func material(b byte) string {
	return "base64:" + base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{b}, cryptoDomain.KeySize))
}

func newCrypto(t *testing.T, cfg cryptoDomain.KeyringConfig) cryptoService.EnvelopeCrypto {
	t.Helper()
	if cfg.MaxVersions == 0 {
		cfg.MaxVersions = cryptoDomain.DefaultMaxKeyVersions
	}
	keyring, err := cryptoDomain.NewKeyring(cfg)
	require.NoError(t, err)
	t.Cleanup(keyring.Close)
	return cryptoService.NewEnvelopeCrypto(keyring, cryptoService.NewLegacyCBC())
}

func defaultCrypto(t *testing.T) cryptoService.EnvelopeCrypto {
	return newCrypto(t, cryptoDomain.KeyringConfig{
		ActiveVersion: "1",
		MasterKey:     testMasterKey,
		Materials:     map[int]string{1: material(1)},
	})
}

type fixture struct {
	store   *testutil.MemoryStore
	crypto  cryptoService.EnvelopeCrypto
	signer  nostrService.Signer
	useCase usecase.KeyUseCase
}

func newFixture(t *testing.T, crypto cryptoService.EnvelopeCrypto) *fixture {
	t.Helper()
	store := testutil.NewMemoryStore()
	signer := nostrService.NewSigner()
	return &fixture{
		store:  store,
		crypto: crypto,
		signer: signer,
		useCase: usecase.NewKeyUseCase(
			&testutil.TxManager{},
			store.Users(),
			store.Options(),
			crypto,
			signer,
			"https://blog.example",
			slog.New(slog.NewTextHandler(io.Discard, nil)),
		),
	}
}

// storedNpub decrypts a stored nsec and derives its npub.
func (f *fixture) storedNpub(t *testing.T, encrypted string) string {
	t.Helper()
	nsec, err := f.crypto.Decrypt(encrypted)
	require.NoError(t, err)
	npub, err := f.signer.DeriveNpub(string(nsec))
	require.NoError(t, err)
	return npub
}

func TestKeyUseCase_EnsureUserKey(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_CreatesOnce", func(t *testing.T) {
		f := newFixture(t, defaultCrypto(t))

		created, err := f.useCase.EnsureUserKey(ctx, 42)
		require.NoError(t, err)
		assert.True(t, created)

		stored := f.store.User(42)
		require.NotNil(t, stored)
		assert.Equal(t, stored.Npub, f.storedNpub(t, stored.EncryptedNsec))

		version, err := f.crypto.KeyVersion(stored.EncryptedNsec)
		require.NoError(t, err)
		assert.Equal(t, 1, version)

		created, err = f.useCase.EnsureUserKey(ctx, 42)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, stored.EncryptedNsec, f.store.User(42).EncryptedNsec)

		npub, err := f.useCase.GetUserNpub(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, stored.Npub, npub)
	})

	t.Run("NoOp_WithoutKek", func(t *testing.T) {
		f := newFixture(t, newCrypto(t, cryptoDomain.KeyringConfig{ActiveVersion: "2"}))

		created, err := f.useCase.EnsureUserKey(ctx, 42)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Nil(t, f.store.User(42))

		_, err = f.useCase.GetUserNpub(ctx, 42)
		assert.ErrorIs(t, err, keysDomain.ErrUserKeyNotFound)
	})
}

func TestKeyUseCase_EnsureBlogKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultCrypto(t))

	_, err := f.useCase.GetBlogNpub(ctx)
	assert.ErrorIs(t, err, keysDomain.ErrBlogKeyNotFound)

	created, err := f.useCase.EnsureBlogKey(ctx)
	require.NoError(t, err)
	assert.True(t, created)

	npub, err := f.useCase.GetBlogNpub(ctx)
	require.NoError(t, err)
	encrypted, ok := f.store.Option(keysDomain.OptionBlogEncryptedNsec)
	require.True(t, ok)
	assert.Equal(t, npub, f.storedNpub(t, encrypted))

	created, err = f.useCase.EnsureBlogKey(ctx)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestKeyUseCase_ImportKey(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_PlaintextForUser", func(t *testing.T) {
		f := newFixture(t, defaultCrypto(t))
		kp, err := f.signer.GenerateKeyPair()
		require.NoError(t, err)

		npub, err := f.useCase.ImportKey(ctx, &keysDomain.ImportKeyInput{
			Target: keysDomain.KeyTypeUser,
			UserID: 5,
			Npub:   kp.Npub,
			Nsec:   kp.Nsec,
		})
		require.NoError(t, err)
		assert.Equal(t, kp.Npub, npub)

		stored := f.store.User(5)
		require.NotNil(t, stored)
		assert.Equal(t, kp.Npub, stored.Npub)
		nsec, err := f.crypto.Decrypt(stored.EncryptedNsec)
		require.NoError(t, err)
		assert.Equal(t, kp.Nsec, string(nsec))
	})

	t.Run("Success_SessionEncryptedForBlog", func(t *testing.T) {
		f := newFixture(t, defaultCrypto(t))
		kp, err := f.signer.GenerateKeyPair()
		require.NoError(t, err)

		sessionKey, err := f.crypto.SessionKey("session-token")
		require.NoError(t, err)
		transport, err := f.crypto.EncryptLegacy([]byte(kp.Nsec), sessionKey)
		require.NoError(t, err)

		_, err = f.useCase.ImportKey(ctx, &keysDomain.ImportKeyInput{
			Target:        keysDomain.KeyTypeBlog,
			Npub:          kp.Npub,
			EncryptedNsec: transport,
			SessionToken:  "session-token",
		})
		require.NoError(t, err)

		npub, err := f.useCase.GetBlogNpub(ctx)
		require.NoError(t, err)
		assert.Equal(t, kp.Npub, npub)

		encrypted, _ := f.store.Option(keysDomain.OptionBlogEncryptedNsec)
		assert.NotEqual(t, transport, encrypted)
		assert.Equal(t, kp.Npub, f.storedNpub(t, encrypted))
	})

	t.Run("Error_WrongSessionToken", func(t *testing.T) {
		f := newFixture(t, defaultCrypto(t))
		kp, err := f.signer.GenerateKeyPair()
		require.NoError(t, err)

		sessionKey, err := f.crypto.SessionKey("session-token")
		require.NoError(t, err)
		transport, err := f.crypto.EncryptLegacy([]byte(kp.Nsec), sessionKey)
		require.NoError(t, err)

		_, err = f.useCase.ImportKey(ctx, &keysDomain.ImportKeyInput{
			Target:        keysDomain.KeyTypeBlog,
			Npub:          kp.Npub,
			EncryptedNsec: transport,
			SessionToken:  "another-session",
		})
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
		_, ok := f.store.Option(keysDomain.OptionBlogEncryptedNsec)
		assert.False(t, ok)
	})

	t.Run("Error_NpubMismatch", func(t *testing.T) {
		f := newFixture(t, defaultCrypto(t))
		kp, err := f.signer.GenerateKeyPair()
		require.NoError(t, err)
		other, err := f.signer.GenerateKeyPair()
		require.NoError(t, err)

		_, err = f.useCase.ImportKey(ctx, &keysDomain.ImportKeyInput{
			Target: keysDomain.KeyTypeUser,
			UserID: 5,
			Npub:   other.Npub,
			Nsec:   kp.Nsec,
		})
		assert.ErrorIs(t, err, keysDomain.ErrNpubMismatch)
		assert.Nil(t, f.store.User(5))
	})

	t.Run("Error_InvalidInput", func(t *testing.T) {
		f := newFixture(t, defaultCrypto(t))

		_, err := f.useCase.ImportKey(ctx, &keysDomain.ImportKeyInput{Target: keysDomain.KeyTypeUser})
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
	})

	t.Run("Error_NoKek", func(t *testing.T) {
		f := newFixture(t, newCrypto(t, cryptoDomain.KeyringConfig{ActiveVersion: "3"}))
		kp, err := f.signer.GenerateKeyPair()
		require.NoError(t, err)

		_, err = f.useCase.ImportKey(ctx, &keysDomain.ImportKeyInput{
			Target: keysDomain.KeyTypeBlog,
			Npub:   kp.Npub,
			Nsec:   kp.Nsec,
		})
		assert.ErrorIs(t, err, keysDomain.ErrKeyEncryptionUnavailable)
	})
}

func TestKeyUseCase_SignEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_UserDefaults", func(t *testing.T) {
		f := newFixture(t, defaultCrypto(t))

		event, err := f.useCase.SignEvent(ctx, &keysDomain.SignEventInput{
			KeyType: keysDomain.KeyTypeUser,
			UserID:  9,
			Content: "hello nostr",
		})
		require.NoError(t, err)

		assert.Equal(t, nostrDomain.KindTextNote, event.Kind)
		assert.NotZero(t, event.CreatedAt)
		assert.Equal(t, "hello nostr", event.Content)
		assert.Equal(t, [][]string{{"r", "https://blog.example/?author=9"}}, event.Tags)

		assertValidSignature(t, event)

		npub, err := f.useCase.GetUserNpub(ctx, 9)
		require.NoError(t, err)
		assert.Equal(t, pubKeyHex(t, npub), event.PubKey)
	})

	t.Run("Success_BlogKeepsExistingTag", func(t *testing.T) {
		f := newFixture(t, defaultCrypto(t))
		kind := 30023
		createdAt := int64(1700000000)

		event, err := f.useCase.SignEvent(ctx, &keysDomain.SignEventInput{
			KeyType:   keysDomain.KeyTypeBlog,
			Kind:      &kind,
			CreatedAt: &createdAt,
			Tags:      [][]string{{"r", "https://blog.example/"}, {"t", "go"}},
		})
		require.NoError(t, err)

		assert.Equal(t, 30023, event.Kind)
		assert.Equal(t, createdAt, event.CreatedAt)
		assert.Equal(t, [][]string{{"r", "https://blog.example/"}, {"t", "go"}}, event.Tags)

		assertValidSignature(t, event)

		npub, err := f.useCase.GetBlogNpub(ctx)
		require.NoError(t, err)
		assert.Equal(t, pubKeyHex(t, npub), event.PubKey)
	})

	t.Run("Success_LegacyStoredKey", func(t *testing.T) {
		f := newFixture(t, defaultCrypto(t))
		kp, err := f.signer.GenerateKeyPair()
		require.NoError(t, err)
		legacy, err := f.crypto.EncryptLegacy([]byte(kp.Nsec), cryptoDomain.DeriveLegacyKey(testMasterKey))
		require.NoError(t, err)
		f.store.PutUser(3, kp.Npub, legacy)

		event, err := f.useCase.SignEvent(ctx, &keysDomain.SignEventInput{KeyType: keysDomain.KeyTypeUser, UserID: 3})
		require.NoError(t, err)
		assert.Equal(t, pubKeyHex(t, kp.Npub), event.PubKey)
	})

	t.Run("Error_NoKek", func(t *testing.T) {
		f := newFixture(t, newCrypto(t, cryptoDomain.KeyringConfig{ActiveVersion: "2"}))

		_, err := f.useCase.SignEvent(ctx, &keysDomain.SignEventInput{KeyType: keysDomain.KeyTypeBlog})
		assert.ErrorIs(t, err, keysDomain.ErrKeyEncryptionUnavailable)
	})

	t.Run("Error_UndecryptableKey", func(t *testing.T) {
		f := newFixture(t, defaultCrypto(t))
		foreign := newCrypto(t, cryptoDomain.KeyringConfig{ActiveVersion: "1", Materials: map[int]string{1: material(9)}})
		encrypted, err := foreign.Encrypt([]byte("nsec1whatever"))
		require.NoError(t, err)
		f.store.PutUser(4, "npub1x", encrypted)

		_, err = f.useCase.SignEvent(ctx, &keysDomain.SignEventInput{KeyType: keysDomain.KeyTypeUser, UserID: 4})
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})
}

func TestKeyUseCase_BackupRestore(t *testing.T) {
	ctx := context.Background()
	crypto := defaultCrypto(t)

	source := newFixture(t, crypto)
	for _, userID := range []int64{1, 2, 3} {
		_, err := source.useCase.EnsureUserKey(ctx, userID)
		require.NoError(t, err)
	}
	_, err := source.useCase.EnsureBlogKey(ctx)
	require.NoError(t, err)

	backup, err := source.useCase.Backup(ctx)
	require.NoError(t, err)
	assert.Equal(t, keysDomain.BackupFormatVersion, backup.FormatVersion)
	assert.Equal(t, 1, backup.KeyVersion)
	require.NotNil(t, backup.Blog)
	require.Len(t, backup.Users, 3)
	for _, entry := range backup.Users {
		assert.NotContains(t, entry.EncryptedNsec, "nsec1")
	}

	target := newFixture(t, crypto)
	restored, err := target.useCase.Restore(ctx, backup)
	require.NoError(t, err)
	assert.Equal(t, 4, restored)

	for _, userID := range []int64{1, 2, 3} {
		assert.Equal(t, source.store.User(userID).EncryptedNsec, target.store.User(userID).EncryptedNsec)
	}
	blogNpub, err := target.useCase.GetBlogNpub(ctx)
	require.NoError(t, err)
	assert.Equal(t, backup.Blog.Npub, blogNpub)

	_, err = target.useCase.Restore(ctx, &keysDomain.Backup{FormatVersion: 99})
	assert.ErrorIs(t, err, keysDomain.ErrUnsupportedBackupFormat)
}

type failingUserKeys struct {
	*testutil.MemoryUserKeys
	err error
}

func (f *failingUserKeys) Upsert(context.Context, *keysDomain.UserKey) error {
	return f.err
}

func TestKeyUseCase_RepositoryErrors(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryStore()
	storageErr := errors.New("storage down")

	uc := usecase.NewKeyUseCase(
		&testutil.TxManager{},
		&failingUserKeys{MemoryUserKeys: store.Users(), err: storageErr},
		store.Options(),
		defaultCrypto(t),
		nostrService.NewSigner(),
		"https://blog.example/",
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	_, err := uc.EnsureUserKey(ctx, 1)
	assert.ErrorIs(t, err, storageErr)

	_, err = uc.SignEvent(ctx, &keysDomain.SignEventInput{KeyType: keysDomain.KeyTypeUser, UserID: 1})
	assert.ErrorIs(t, err, storageErr)

	_, err = uc.Restore(ctx, &keysDomain.Backup{
		FormatVersion: keysDomain.BackupFormatVersion,
		Users:         []keysDomain.BackupUserKey{{UserID: 1, Npub: "npub1a", EncryptedNsec: "env"}},
	})
	assert.ErrorIs(t, err, storageErr)
}
