package repository

import (
	"context"

	"blobvault/internal/model"
)

// BlobRepository defines data access for blob records using SQL queries only.
// No business logic here — strictly persistence operations.
type BlobRepository interface {
	// Create inserts a new blob record and returns it with its assigned id.
	// A unique-constraint hit on the digest column returns ErrDuplicateDigest.
	Create(ctx context.Context, blob *model.Blob) (*model.Blob, error)

	// FindByID returns a blob record by its id.
	FindByID(ctx context.Context, id int64) (*model.Blob, error)

	// FindByDigest returns the blob record with the given content digest.
	FindByDigest(ctx context.Context, digest string) (*model.Blob, error)

	// List returns all blob records, newest first.
	List(ctx context.Context) ([]model.Blob, error)

	// Delete removes a blob record by id. It returns sql.ErrNoRows if no
	// such record exists.
	Delete(ctx context.Context, id int64) error
}
