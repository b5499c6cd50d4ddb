// Package mocks provides mock implementations of the rotation use case for testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	rotationDomain "github.com/allisson/nostr-signer/internal/rotation/domain"
)

// MockRotationUseCase is a mock implementation of RotationUseCase for testing.
type MockRotationUseCase struct {
	mock.Mock
}

// RunBatch mocks the RunBatch method of RotationUseCase.
func (m *MockRotationUseCase) RunBatch(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

// ResetState mocks the ResetState method of RotationUseCase.
func (m *MockRotationUseCase) ResetState(ctx context.Context, targetVersion int) (*rotationDomain.State, error) {
	args := m.Called(ctx, targetVersion)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rotationDomain.State), args.Error(1)
}

// Progress mocks the Progress method of RotationUseCase.
func (m *MockRotationUseCase) Progress(ctx context.Context) (*rotationDomain.State, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rotationDomain.State), args.Error(1)
}

// Status mocks the Status method of RotationUseCase.
func (m *MockRotationUseCase) Status(ctx context.Context) (*rotationDomain.Status, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rotationDomain.Status), args.Error(1)
}

// RecryptAll mocks the RecryptAll method of RotationUseCase.
func (m *MockRotationUseCase) RecryptAll(ctx context.Context, oldSecret, newSecret string) (int, error) {
	args := m.Called(ctx, oldSecret, newSecret)
	return args.Int(0), args.Error(1)
}
