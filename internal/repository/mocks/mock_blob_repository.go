package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"blobvault/internal/model"
)

type MockBlobRepository struct {
	mock.Mock
}

func (m *MockBlobRepository) Create(ctx context.Context, blob *model.Blob) (*model.Blob, error) {
	args := m.Called(ctx, blob)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Blob), args.Error(1)
}

func (m *MockBlobRepository) FindByID(ctx context.Context, id int64) (*model.Blob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Blob), args.Error(1)
}

func (m *MockBlobRepository) FindByDigest(ctx context.Context, digest string) (*model.Blob, error) {
	args := m.Called(ctx, digest)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Blob), args.Error(1)
}

func (m *MockBlobRepository) List(ctx context.Context) ([]model.Blob, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Blob), args.Error(1)
}

func (m *MockBlobRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
