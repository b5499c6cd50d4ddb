// Package mocks provides mock implementations of the key use case for testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	keysDomain "github.com/allisson/nostr-signer/internal/keys/domain"
	nostrDomain "github.com/allisson/nostr-signer/internal/nostr/domain"
)

// MockKeyUseCase is a mock implementation of KeyUseCase for testing.
type MockKeyUseCase struct {
	mock.Mock
}

// EnsureUserKey mocks the EnsureUserKey method of KeyUseCase.
func (m *MockKeyUseCase) EnsureUserKey(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

// EnsureBlogKey mocks the EnsureBlogKey method of KeyUseCase.
func (m *MockKeyUseCase) EnsureBlogKey(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

// GetUserNpub mocks the GetUserNpub method of KeyUseCase.
func (m *MockKeyUseCase) GetUserNpub(ctx context.Context, userID int64) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

// GetBlogNpub mocks the GetBlogNpub method of KeyUseCase.
func (m *MockKeyUseCase) GetBlogNpub(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// ImportKey mocks the ImportKey method of KeyUseCase.
func (m *MockKeyUseCase) ImportKey(ctx context.Context, input *keysDomain.ImportKeyInput) (string, error) {
	args := m.Called(ctx, input)
	return args.String(0), args.Error(1)
}

// SignEvent mocks the SignEvent method of KeyUseCase.
func (m *MockKeyUseCase) SignEvent(
	ctx context.Context,
	input *keysDomain.SignEventInput,
) (*nostrDomain.Event, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*nostrDomain.Event), args.Error(1)
}

// Backup mocks the Backup method of KeyUseCase.
func (m *MockKeyUseCase) Backup(ctx context.Context) (*keysDomain.Backup, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keysDomain.Backup), args.Error(1)
}

// Restore mocks the Restore method of KeyUseCase.
func (m *MockKeyUseCase) Restore(ctx context.Context, backup *keysDomain.Backup) (int, error) {
	args := m.Called(ctx, backup)
	return args.Int(0), args.Error(1)
}
