package testutil

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	keysDomain "github.com/allisson/nostr-signer/internal/keys/domain"
	rotationDomain "github.com/allisson/nostr-signer/internal/rotation/domain"
)

// MemoryStore is an in-memory user key, option and rotation state store for
// use case tests. Its three views share one lock, mirroring a single database.
type MemoryStore struct {
	mu      sync.Mutex
	users   map[int64]*keysDomain.UserKey
	options map[string]string

	// UpdateErrors makes UpdateEncryptedNsec fail for the given user ids.
	UpdateErrors map[int64]error
	// Updates counts successful UpdateEncryptedNsec calls per user id.
	Updates map[int64]int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[int64]*keysDomain.UserKey),
		options:      make(map[string]string),
		UpdateErrors: make(map[int64]error),
		Updates:      make(map[int64]int),
	}
}

// Users returns the user key view.
func (s *MemoryStore) Users() *MemoryUserKeys {
	return &MemoryUserKeys{store: s}
}

// Options returns the option view.
func (s *MemoryStore) Options() *MemoryOptions {
	return &MemoryOptions{store: s}
}

// State returns the rotation state view, stored in the options like the SQL repositories do.
func (s *MemoryStore) State() *MemoryState {
	return &MemoryState{store: s}
}

// PutUser stores a user key directly.
func (s *MemoryStore) PutUser(userID int64, npub, encryptedNsec string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.users[userID] = &keysDomain.UserKey{
		UserID:        userID,
		Npub:          npub,
		EncryptedNsec: encryptedNsec,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// User returns a copy of a stored user key, or nil.
func (s *MemoryStore) User(userID int64) *keysDomain.UserKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.users[userID]
	if !ok {
		return nil
	}
	clone := *key
	return &clone
}

// Option returns a stored option value and whether it exists.
func (s *MemoryStore) Option(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.options[name]
	return value, ok
}

// PutOption stores an option directly.
func (s *MemoryStore) PutOption(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.options[name] = value
}

// MemoryUserKeys implements the user key repository interfaces.
type MemoryUserKeys struct {
	store *MemoryStore
}

// Get returns a copy of the user's key.
func (u *MemoryUserKeys) Get(_ context.Context, userID int64) (*keysDomain.UserKey, error) {
	key := u.store.User(userID)
	if key == nil {
		return nil, keysDomain.ErrUserKeyNotFound
	}
	return key, nil
}

// Upsert stores a copy of key, keeping CreatedAt of an existing row.
func (u *MemoryUserKeys) Upsert(_ context.Context, key *keysDomain.UserKey) error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	clone := *key
	if existing, ok := u.store.users[key.UserID]; ok {
		clone.CreatedAt = existing.CreatedAt
	}
	u.store.users[key.UserID] = &clone
	return nil
}

// UpdateEncryptedNsec replaces a user's ciphertext.
func (u *MemoryUserKeys) UpdateEncryptedNsec(_ context.Context, userID int64, encryptedNsec string) error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	if err := u.store.UpdateErrors[userID]; err != nil {
		return err
	}
	key, ok := u.store.users[userID]
	if !ok {
		return keysDomain.ErrUserKeyNotFound
	}
	key.EncryptedNsec = encryptedNsec
	key.UpdatedAt = time.Now().UTC()
	u.store.Updates[userID]++
	return nil
}

// ListPage returns users with a ciphertext ordered by user id.
func (u *MemoryUserKeys) ListPage(_ context.Context, offset, limit int) ([]*keysDomain.UserKey, error) {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	ids := make([]int64, 0, len(u.store.users))
	for id, key := range u.store.users {
		if key.EncryptedNsec != "" {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	keys := make([]*keysDomain.UserKey, 0, limit)
	for i := offset; i < len(ids) && len(keys) < limit; i++ {
		clone := *u.store.users[ids[i]]
		keys = append(keys, &clone)
	}
	return keys, nil
}

// MemoryOptions implements the option repository interfaces.
type MemoryOptions struct {
	store *MemoryStore
}

// Get returns an option value.
func (o *MemoryOptions) Get(_ context.Context, name string) (string, error) {
	value, ok := o.store.Option(name)
	if !ok {
		return "", keysDomain.ErrOptionNotFound
	}
	return value, nil
}

// Set stores an option value.
func (o *MemoryOptions) Set(_ context.Context, name, value string) error {
	o.store.PutOption(name, value)
	return nil
}

// MemoryState implements the rotation state repository.
type MemoryState struct {
	store *MemoryStore
}

// GetForUpdate reads the state. Locking is left to the caller's TxManager.
func (m *MemoryState) GetForUpdate(ctx context.Context) (*rotationDomain.State, error) {
	return m.Get(ctx)
}

// Get reads the state.
func (m *MemoryState) Get(_ context.Context) (*rotationDomain.State, error) {
	value, _ := m.store.Option(rotationDomain.OptionRotationState)
	return rotationDomain.DecodeState(value), nil
}

// Save stores the state.
func (m *MemoryState) Save(_ context.Context, state *rotationDomain.State) error {
	value, err := state.Encode()
	if err != nil {
		return err
	}
	m.store.PutOption(rotationDomain.OptionRotationState, value)
	return nil
}

// GetLastCompleted returns when a rotation last finished, or nil.
func (m *MemoryState) GetLastCompleted(_ context.Context) (*time.Time, error) {
	value, ok := m.store.Option(rotationDomain.OptionRotationLastOK)
	if !ok {
		return nil, nil
	}
	secs, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, nil
	}
	t := time.Unix(secs, 0).UTC()
	return &t, nil
}

// SetLastCompleted records when a rotation finished.
func (m *MemoryState) SetLastCompleted(_ context.Context, at time.Time) error {
	m.store.PutOption(rotationDomain.OptionRotationLastOK, strconv.FormatInt(at.Unix(), 10))
	return nil
}

// TxManager is a database.TxManager that runs fn directly. Calls are serialized
// so concurrent batches observe each other the way row locks would make them.
type TxManager struct {
	mu    sync.Mutex
	Calls int
}

type inTxKey struct{}

// WithTx runs fn while holding the manager's lock. Nested calls reuse the outer one.
func (t *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Calls++
	return fn(context.WithValue(ctx, inTxKey{}, true))
}
