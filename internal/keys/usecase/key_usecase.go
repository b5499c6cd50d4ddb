package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/nostr-signer/internal/crypto/domain"
	cryptoService "github.com/allisson/nostr-signer/internal/crypto/service"
	"github.com/allisson/nostr-signer/internal/database"
	apperrors "github.com/allisson/nostr-signer/internal/errors"
	keysDomain "github.com/allisson/nostr-signer/internal/keys/domain"
	nostrDomain "github.com/allisson/nostr-signer/internal/nostr/domain"
	nostrService "github.com/allisson/nostr-signer/internal/nostr/service"
)

// backupPageSize is the number of users read per query while building a backup.
const backupPageSize = 200

type keyUseCase struct {
	txManager   database.TxManager
	userKeyRepo UserKeyRepository
	optionRepo  OptionRepository
	crypto      cryptoService.EnvelopeCrypto
	signer      nostrService.Signer
	siteURL     string
	logger      *slog.Logger
}

func (k *keyUseCase) EnsureUserKey(ctx context.Context, userID int64) (bool, error) {
	if !k.crypto.Available() {
		k.logger.Warn("skipping user key provisioning, no active key encryption key",
			slog.Int64("user_id", userID))
		return false, nil
	}

	existing, err := k.userKeyRepo.Get(ctx, userID)
	if err != nil && !errors.Is(err, keysDomain.ErrUserKeyNotFound) {
		return false, err
	}
	if existing != nil && existing.EncryptedNsec != "" {
		return false, nil
	}

	npub, encrypted, err := k.generate()
	if err != nil {
		return false, err
	}

	now := time.Now().UTC()
	key := &keysDomain.UserKey{
		UserID:        userID,
		Npub:          npub,
		EncryptedNsec: encrypted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := k.userKeyRepo.Upsert(ctx, key); err != nil {
		return false, err
	}

	k.logger.Info("user key provisioned", slog.Int64("user_id", userID), slog.String("npub", npub))
	return true, nil
}

func (k *keyUseCase) EnsureBlogKey(ctx context.Context) (bool, error) {
	if !k.crypto.Available() {
		k.logger.Warn("skipping blog key provisioning, no active key encryption key")
		return false, nil
	}

	blog, err := k.blogKey(ctx)
	if err != nil && !errors.Is(err, keysDomain.ErrBlogKeyNotFound) {
		return false, err
	}
	if blog != nil {
		return false, nil
	}

	npub, encrypted, err := k.generate()
	if err != nil {
		return false, err
	}

	if err := k.storeBlogKey(ctx, npub, encrypted); err != nil {
		return false, err
	}

	k.logger.Info("blog key provisioned", slog.String("npub", npub))
	return true, nil
}

func (k *keyUseCase) GetUserNpub(ctx context.Context, userID int64) (string, error) {
	key, err := k.userKeyRepo.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if key.Npub == "" {
		return "", keysDomain.ErrUserKeyNotFound
	}
	return key.Npub, nil
}

func (k *keyUseCase) GetBlogNpub(ctx context.Context) (string, error) {
	npub, err := k.optionRepo.Get(ctx, keysDomain.OptionBlogNpub)
	if err != nil {
		if errors.Is(err, keysDomain.ErrOptionNotFound) {
			return "", keysDomain.ErrBlogKeyNotFound
		}
		return "", err
	}
	if npub == "" {
		return "", keysDomain.ErrBlogKeyNotFound
	}
	return npub, nil
}

func (k *keyUseCase) ImportKey(ctx context.Context, input *keysDomain.ImportKeyInput) (string, error) {
	if err := input.Validate(); err != nil {
		return "", err
	}
	if !k.crypto.Available() {
		return "", keysDomain.ErrKeyEncryptionUnavailable
	}

	nsec, err := k.importedNsec(input)
	if err != nil {
		return "", err
	}
	defer cryptoDomain.Zero(nsec)

	if !nostrDomain.LooksLikeNsec(string(nsec)) {
		return "", keysDomain.ErrInvalidImportedNsec
	}

	derived, err := k.signer.DeriveNpub(string(nsec))
	if err != nil {
		return "", apperrors.Wrap(keysDomain.ErrInvalidImportedNsec, err.Error())
	}
	if derived != input.Npub {
		return "", keysDomain.ErrNpubMismatch
	}

	encrypted, err := k.crypto.Encrypt(nsec)
	if err != nil {
		return "", err
	}

	if input.Target == keysDomain.KeyTypeBlog {
		if err := k.storeBlogKey(ctx, derived, encrypted); err != nil {
			return "", err
		}
	} else {
		now := time.Now().UTC()
		if err := k.userKeyRepo.Upsert(ctx, &keysDomain.UserKey{
			UserID:        input.UserID,
			Npub:          derived,
			EncryptedNsec: encrypted,
			CreatedAt:     now,
			UpdatedAt:     now,
		}); err != nil {
			return "", err
		}
	}

	k.logger.Info("key imported",
		slog.String("target", string(input.Target)),
		slog.Int64("user_id", input.UserID),
		slog.String("npub", derived),
	)
	return derived, nil
}

// importedNsec returns the plaintext nsec of an import request.
func (k *keyUseCase) importedNsec(input *keysDomain.ImportKeyInput) ([]byte, error) {
	if input.EncryptedNsec == "" {
		return []byte(input.Nsec), nil
	}

	sessionKey, err := k.crypto.SessionKey(input.SessionToken)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(sessionKey)

	return k.crypto.DecryptLegacy(input.EncryptedNsec, sessionKey)
}

func (k *keyUseCase) SignEvent(
	ctx context.Context,
	input *keysDomain.SignEventInput,
) (*nostrDomain.Event, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if !k.crypto.Available() {
		return nil, keysDomain.ErrKeyEncryptionUnavailable
	}

	event := &nostrDomain.Event{
		Kind:      nostrDomain.KindTextNote,
		CreatedAt: time.Now().Unix(),
		Tags:      make([][]string, 0, len(input.Tags)+1),
		Content:   input.Content,
	}
	if input.Kind != nil {
		event.Kind = *input.Kind
	}
	if input.CreatedAt != nil {
		event.CreatedAt = *input.CreatedAt
	}
	for _, tag := range input.Tags {
		event.Tags = append(event.Tags, append([]string(nil), tag...))
	}

	authorURL := k.authorURL(input)
	if !event.HasTag("r", authorURL) {
		event.Tags = append(event.Tags, []string{"r", authorURL})
	}

	encrypted, err := k.encryptedNsecFor(ctx, input)
	if err != nil {
		return nil, err
	}

	nsec, err := k.crypto.Decrypt(encrypted)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(nsec)

	return k.signer.SignEvent(event, string(nsec))
}

// encryptedNsecFor provisions the selected key if needed and returns its ciphertext.
func (k *keyUseCase) encryptedNsecFor(ctx context.Context, input *keysDomain.SignEventInput) (string, error) {
	if input.KeyType == keysDomain.KeyTypeBlog {
		if _, err := k.EnsureBlogKey(ctx); err != nil {
			return "", err
		}
		blog, err := k.blogKey(ctx)
		if err != nil {
			return "", err
		}
		return blog.EncryptedNsec, nil
	}

	if _, err := k.EnsureUserKey(ctx, input.UserID); err != nil {
		return "", err
	}
	key, err := k.userKeyRepo.Get(ctx, input.UserID)
	if err != nil {
		return "", err
	}
	if key.EncryptedNsec == "" {
		return "", keysDomain.ErrUserKeyNotFound
	}
	return key.EncryptedNsec, nil
}

// authorURL is the "r" tag value attached to every signed event.
func (k *keyUseCase) authorURL(input *keysDomain.SignEventInput) string {
	base := k.siteURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	if input.KeyType == keysDomain.KeyTypeBlog {
		return base
	}
	return base + "?author=" + strconv.FormatInt(input.UserID, 10)
}

func (k *keyUseCase) Backup(ctx context.Context) (*keysDomain.Backup, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to generate backup id")
	}

	backup := &keysDomain.Backup{
		ID:            id,
		FormatVersion: keysDomain.BackupFormatVersion,
		KeyVersion:    k.crypto.ActiveVersion(),
		CreatedAt:     time.Now().UTC(),
		Users:         make([]keysDomain.BackupUserKey, 0),
	}

	blog, err := k.blogKey(ctx)
	if err != nil && !errors.Is(err, keysDomain.ErrBlogKeyNotFound) {
		return nil, err
	}
	backup.Blog = blog

	for offset := 0; ; offset += backupPageSize {
		keys, err := k.userKeyRepo.ListPage(ctx, offset, backupPageSize)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			backup.Users = append(backup.Users, keysDomain.BackupUserKey{
				UserID:        key.UserID,
				Npub:          key.Npub,
				EncryptedNsec: key.EncryptedNsec,
			})
		}
		if len(keys) < backupPageSize {
			break
		}
	}

	k.logger.Info("backup created",
		slog.String("backup_id", id.String()),
		slog.Int("users", len(backup.Users)),
		slog.Bool("blog", backup.Blog != nil),
	)
	return backup, nil
}

func (k *keyUseCase) Restore(ctx context.Context, backup *keysDomain.Backup) (int, error) {
	if backup == nil || backup.FormatVersion != keysDomain.BackupFormatVersion {
		return 0, keysDomain.ErrUnsupportedBackupFormat
	}

	restored := 0
	err := k.txManager.WithTx(ctx, func(ctx context.Context) error {
		if backup.Blog != nil && backup.Blog.EncryptedNsec != "" {
			if err := k.storeBlogKey(ctx, backup.Blog.Npub, backup.Blog.EncryptedNsec); err != nil {
				return err
			}
			restored++
		}

		now := time.Now().UTC()
		for _, entry := range backup.Users {
			if entry.EncryptedNsec == "" {
				continue
			}
			if err := k.userKeyRepo.Upsert(ctx, &keysDomain.UserKey{
				UserID:        entry.UserID,
				Npub:          entry.Npub,
				EncryptedNsec: entry.EncryptedNsec,
				CreatedAt:     now,
				UpdatedAt:     now,
			}); err != nil {
				return err
			}
			restored++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	k.logger.Info("backup restored",
		slog.String("backup_id", backup.ID.String()),
		slog.Int("restored", restored),
	)
	return restored, nil
}

// generate creates a keypair and returns its npub with the encrypted nsec.
func (k *keyUseCase) generate() (string, string, error) {
	kp, err := k.signer.GenerateKeyPair()
	if err != nil {
		return "", "", err
	}

	nsec := []byte(kp.Nsec)
	defer cryptoDomain.Zero(nsec)

	encrypted, err := k.crypto.Encrypt(nsec)
	if err != nil {
		return "", "", err
	}
	return kp.Npub, encrypted, nil
}

// blogKey returns the stored blog key. Both options must be present.
func (k *keyUseCase) blogKey(ctx context.Context) (*keysDomain.BlogKey, error) {
	encrypted, err := k.optionRepo.Get(ctx, keysDomain.OptionBlogEncryptedNsec)
	if err != nil {
		if errors.Is(err, keysDomain.ErrOptionNotFound) {
			return nil, keysDomain.ErrBlogKeyNotFound
		}
		return nil, err
	}
	npub, err := k.GetBlogNpub(ctx)
	if err != nil {
		return nil, err
	}
	if encrypted == "" {
		return nil, keysDomain.ErrBlogKeyNotFound
	}
	return &keysDomain.BlogKey{Npub: npub, EncryptedNsec: encrypted}, nil
}

func (k *keyUseCase) storeBlogKey(ctx context.Context, npub, encrypted string) error {
	return k.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := k.optionRepo.Set(ctx, keysDomain.OptionBlogNpub, npub); err != nil {
			return err
		}
		return k.optionRepo.Set(ctx, keysDomain.OptionBlogEncryptedNsec, encrypted)
	})
}

// NewKeyUseCase creates a new KeyUseCase.
func NewKeyUseCase(
	txManager database.TxManager,
	userKeyRepo UserKeyRepository,
	optionRepo OptionRepository,
	crypto cryptoService.EnvelopeCrypto,
	signer nostrService.Signer,
	siteURL string,
	logger *slog.Logger,
) KeyUseCase {
	return &keyUseCase{
		txManager:   txManager,
		userKeyRepo: userKeyRepo,
		optionRepo:  optionRepo,
		crypto:      crypto,
		signer:      signer,
		siteURL:     siteURL,
		logger:      logger,
	}
}
