package usecase

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/nostr-signer/internal/crypto/domain"
	cryptoService "github.com/allisson/nostr-signer/internal/crypto/service"
	"github.com/allisson/nostr-signer/internal/database"
	keysDomain "github.com/allisson/nostr-signer/internal/keys/domain"
	rotationDomain "github.com/allisson/nostr-signer/internal/rotation/domain"
)

// scanPageSize is the page size used when a full pass over users is needed.
const scanPageSize = 200

type rotationUseCase struct {
	txManager   database.TxManager
	userKeyRepo UserKeyRepository
	optionRepo  OptionRepository
	stateRepo   StateRepository
	crypto      cryptoService.EnvelopeCrypto
	logger      *slog.Logger
}

func (r *rotationUseCase) RunBatch(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = rotationDomain.DefaultBatchSize
	}

	if !r.crypto.Available() {
		r.logger.Warn("skipping rotation batch, no active key encryption key")
		return 0, nil
	}

	target := r.crypto.ActiveVersion()
	logger := r.logger.With(slog.String("run_id", newRunID()), slog.Int("target_version", target))

	updated := 0
	err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
		updated = 0

		state, err := r.stateRepo.GetForUpdate(ctx)
		if err != nil {
			return err
		}
		if state.TargetVersion != target {
			logger.Info("rotation target changed, starting over",
				slog.Int("previous_target_version", state.TargetVersion))
			state = rotationDomain.NewState(target)
		}

		if !state.DoneUsers {
			n, pageLen, err := r.rewrapUserPage(ctx, logger, state, limit)
			if err != nil {
				return err
			}
			updated += n

			if pageLen < limit {
				state.DoneUsers = true
			} else {
				state.UserPaged++
				return r.stateRepo.Save(ctx, state)
			}
		}

		if !state.DoneOptions {
			n, err := r.rewrapBlog(ctx, logger, target)
			if err != nil {
				return err
			}
			updated += n
			state.DoneOptions = true
		}

		if err := r.stateRepo.Save(ctx, state); err != nil {
			return err
		}
		return r.stateRepo.SetLastCompleted(ctx, time.Now().UTC())
	})
	if err != nil {
		return 0, err
	}

	logger.Info("rotation batch finished", slog.Int("updated", updated), slog.Int("limit", limit))
	return updated, nil
}

// rewrapUserPage rewraps the current page of users and returns how many
// records changed along with the page length.
func (r *rotationUseCase) rewrapUserPage(
	ctx context.Context,
	logger *slog.Logger,
	state *rotationDomain.State,
	limit int,
) (int, int, error) {
	keys, err := r.userKeyRepo.ListPage(ctx, state.Offset(limit), limit)
	if err != nil {
		return 0, 0, err
	}

	updated := 0
	for _, key := range keys {
		rewrapped, ok := r.rewrap(logger.With(slog.Int64("user_id", key.UserID)), key.EncryptedNsec, state.TargetVersion)
		if !ok {
			continue
		}
		if err := r.userKeyRepo.UpdateEncryptedNsec(ctx, key.UserID, rewrapped); err != nil {
			return 0, 0, err
		}
		updated++
	}

	return updated, len(keys), nil
}

func (r *rotationUseCase) rewrapBlog(ctx context.Context, logger *slog.Logger, target int) (int, error) {
	value, err := r.optionRepo.Get(ctx, keysDomain.OptionBlogEncryptedNsec)
	if err != nil {
		if errors.Is(err, keysDomain.ErrOptionNotFound) {
			return 0, nil
		}
		return 0, err
	}

	rewrapped, ok := r.rewrap(logger.With(slog.String("owner", "blog")), value, target)
	if !ok {
		return 0, nil
	}
	if err := r.optionRepo.Set(ctx, keysDomain.OptionBlogEncryptedNsec, rewrapped); err != nil {
		return 0, err
	}
	return 1, nil
}

// rewrap returns the value rewrapped to target and whether it changed.
// Any version other than target is rewrapped, including versions still in the
// allowed set, so a completed rotation leaves every envelope on one KEK.
// Values that are not envelopes or already use target are left alone, and
// crypto failures are logged and skipped.
func (r *rotationUseCase) rewrap(logger *slog.Logger, value string, target int) (string, bool) {
	if value == "" {
		return "", false
	}

	version, err := r.crypto.KeyVersion(value)
	if err != nil {
		if !errors.Is(err, cryptoDomain.ErrNotEnvelope) {
			logger.Warn("skipping unreadable envelope", slog.Any("error", err))
		}
		return "", false
	}
	if version == target {
		return "", false
	}

	rewrapped, changed, err := r.crypto.RewrapToActive(value)
	if err != nil {
		logger.Error("failed to rewrap envelope", slog.Int("key_version", version), slog.Any("error", err))
		return "", false
	}
	return rewrapped, changed
}

func (r *rotationUseCase) ResetState(ctx context.Context, targetVersion int) (*rotationDomain.State, error) {
	if targetVersion == 0 {
		targetVersion = r.crypto.ActiveVersion()
	}
	if targetVersion < cryptoDomain.MinKeyVersion {
		return nil, rotationDomain.ErrInvalidTargetVersion
	}

	state := rotationDomain.NewState(targetVersion)
	err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
		if _, err := r.stateRepo.GetForUpdate(ctx); err != nil {
			return err
		}
		return r.stateRepo.Save(ctx, state)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("rotation state reset", slog.Int("target_version", targetVersion))
	return state, nil
}

func (r *rotationUseCase) Progress(ctx context.Context) (*rotationDomain.State, error) {
	return r.stateRepo.Get(ctx)
}

func (r *rotationUseCase) Status(ctx context.Context) (*rotationDomain.Status, error) {
	state, err := r.stateRepo.Get(ctx)
	if err != nil {
		return nil, err
	}
	lastCompleted, err := r.stateRepo.GetLastCompleted(ctx)
	if err != nil {
		return nil, err
	}

	status := &rotationDomain.Status{
		State:           *state,
		LastCompletedAt: lastCompleted,
		KeyAvailable:    r.crypto.Available(),
		ActiveVersion:   r.crypto.ActiveVersion(),
		AllowedVersions: r.crypto.AllowedVersions(),
		VersionCounts:   make(map[int]int),
	}

	count := func(value string) {
		if value == "" {
			return
		}
		version, err := r.crypto.KeyVersion(value)
		switch {
		case err == nil:
			status.VersionCounts[version]++
		case errors.Is(err, cryptoDomain.ErrNotEnvelope):
			status.LegacyRecords++
		default:
			status.UnreadableRecords++
		}
	}

	blog, err := r.optionRepo.Get(ctx, keysDomain.OptionBlogEncryptedNsec)
	if err != nil && !errors.Is(err, keysDomain.ErrOptionNotFound) {
		return nil, err
	}
	count(blog)

	err = r.eachUserKey(ctx, func(key *keysDomain.UserKey) error {
		count(key.EncryptedNsec)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for version, n := range status.VersionCounts {
		if n > 0 && version < status.ActiveVersion && !r.crypto.IsAllowedVersion(version) {
			status.RetiredVersionsInUse = append(status.RetiredVersionsInUse, version)
		}
	}
	slices.Sort(status.RetiredVersionsInUse)

	return status, nil
}

func (r *rotationUseCase) RecryptAll(ctx context.Context, oldSecret, newSecret string) (int, error) {
	oldKey, err := cryptoDomain.DeriveRecryptKey(oldSecret)
	if err != nil {
		return 0, err
	}
	newKey, err := cryptoDomain.DeriveRecryptKey(newSecret)
	if err != nil {
		cryptoDomain.Zero(oldKey)
		return 0, err
	}
	defer cryptoDomain.ZeroAll(oldKey, newKey)

	updated := 0

	blog, err := r.optionRepo.Get(ctx, keysDomain.OptionBlogEncryptedNsec)
	if err != nil && !errors.Is(err, keysDomain.ErrOptionNotFound) {
		return 0, err
	}
	if blog != "" {
		recrypted, err := r.crypto.RecryptValue(blog, oldKey, newKey)
		if err != nil {
			r.logger.Error("failed to recrypt blog key", slog.Any("error", err))
		} else {
			if err := r.optionRepo.Set(ctx, keysDomain.OptionBlogEncryptedNsec, recrypted); err != nil {
				return updated, err
			}
			updated++
		}
	}

	err = r.eachUserKey(ctx, func(key *keysDomain.UserKey) error {
		recrypted, err := r.crypto.RecryptValue(key.EncryptedNsec, oldKey, newKey)
		if err != nil {
			r.logger.Error("failed to recrypt user key", slog.Int64("user_id", key.UserID), slog.Any("error", err))
			return nil
		}
		if err := r.userKeyRepo.UpdateEncryptedNsec(ctx, key.UserID, recrypted); err != nil {
			return err
		}
		updated++
		return nil
	})
	if err != nil {
		return updated, err
	}

	r.logger.Info("recrypt finished", slog.Int("updated", updated))
	return updated, nil
}

// eachUserKey calls fn for every user with a stored secret, page by page.
func (r *rotationUseCase) eachUserKey(ctx context.Context, fn func(key *keysDomain.UserKey) error) error {
	for offset := 0; ; offset += scanPageSize {
		keys, err := r.userKeyRepo.ListPage(ctx, offset, scanPageSize)
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := fn(key); err != nil {
				return err
			}
		}
		if len(keys) < scanPageSize {
			return nil
		}
	}
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NewRotationUseCase creates a new RotationUseCase.
func NewRotationUseCase(
	txManager database.TxManager,
	userKeyRepo UserKeyRepository,
	optionRepo OptionRepository,
	stateRepo StateRepository,
	crypto cryptoService.EnvelopeCrypto,
	logger *slog.Logger,
) RotationUseCase {
	return &rotationUseCase{
		txManager:   txManager,
		userKeyRepo: userKeyRepo,
		optionRepo:  optionRepo,
		stateRepo:   stateRepo,
		crypto:      crypto,
		logger:      logger,
	}
}
