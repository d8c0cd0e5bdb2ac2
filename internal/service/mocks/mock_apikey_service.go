package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"blobvault/internal/model"
	"blobvault/internal/service"
)

type MockAPIKeyService struct {
	mock.Mock
}

func (m *MockAPIKeyService) Issue(ctx context.Context, name string) (*service.IssuedKey, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IssuedKey), args.Error(1)
}

func (m *MockAPIKeyService) Verify(ctx context.Context, token string) (*model.APIKey, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.APIKey), args.Error(1)
}

func (m *MockAPIKeyService) List(ctx context.Context) ([]model.APIKey, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.APIKey), args.Error(1)
}

func (m *MockAPIKeyService) Revoke(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
