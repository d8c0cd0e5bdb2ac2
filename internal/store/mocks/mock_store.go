package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"blobvault/internal/store"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Save(ctx context.Context, r io.Reader, opt store.SaveOptions) (store.SaveResult, error) {
	args := m.Called(ctx, r, opt)
	return args.Get(0).(store.SaveResult), args.Error(1)
}

func (m *MockStore) Open(ctx context.Context, filename string) (io.ReadCloser, error) {
	args := m.Called(ctx, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockStore) OpenRaw(ctx context.Context, filename string) (io.ReadCloser, error) {
	args := m.Called(ctx, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockStore) Remove(ctx context.Context, filename string) error {
	args := m.Called(ctx, filename)
	return args.Error(0)
}

func (m *MockStore) Prune(ctx context.Context, keep int) (int, error) {
	args := m.Called(ctx, keep)
	return args.Int(0), args.Error(1)
}
