package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"blobvault/internal/model"
	"blobvault/internal/service"
)

type MockBlobService struct {
	mock.Mock
}

func (m *MockBlobService) Ingest(ctx context.Context, r io.Reader, opt service.IngestOptions) (*service.IngestResult, error) {
	args := m.Called(ctx, r, opt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestResult), args.Error(1)
}

func (m *MockBlobService) Get(ctx context.Context, id int64) (*model.Blob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Blob), args.Error(1)
}

func (m *MockBlobService) OpenContent(ctx context.Context, id int64) (*model.Blob, io.ReadCloser, error) {
	args := m.Called(ctx, id)
	return blobAndReader(args)
}

func (m *MockBlobService) OpenArchive(ctx context.Context, id int64) (*model.Blob, io.ReadCloser, error) {
	args := m.Called(ctx, id)
	return blobAndReader(args)
}

func blobAndReader(args mock.Arguments) (*model.Blob, io.ReadCloser, error) {
	var blob *model.Blob
	var rc io.ReadCloser
	if args.Get(0) != nil {
		blob = args.Get(0).(*model.Blob)
	}
	if args.Get(1) != nil {
		rc = args.Get(1).(io.ReadCloser)
	}
	return blob, rc, args.Error(2)
}

func (m *MockBlobService) List(ctx context.Context) ([]model.Blob, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Blob), args.Error(1)
}

func (m *MockBlobService) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
