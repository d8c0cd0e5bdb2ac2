package repository

import (
	"context"
	"time"

	"blobvault/internal/model"
)

// APIKeyRepository defines data access for API key records.
type APIKeyRepository interface {
	// Create inserts a new key record and returns it with its assigned id.
	// A unique-constraint hit on the name column returns ErrDuplicateName.
	Create(ctx context.Context, key *model.APIKey) (*model.APIKey, error)

	// FindByID returns a key record by id.
	FindByID(ctx context.Context, id int64) (*model.APIKey, error)

	// ListActive returns the key records currently eligible for
	// verification, i.e. those not revoked.
	ListActive(ctx context.Context) ([]model.APIKey, error)

	// ListAll returns every key record, newest first, revoked included.
	ListAll(ctx context.Context) ([]model.APIKey, error)

	// TouchLastUsed stamps the key's last successful verification time.
	TouchLastUsed(ctx context.Context, id int64, at time.Time) error

	// Deactivate soft-deletes a key: the row stays for audit, the key is
	// excluded from verification scans. Returns sql.ErrNoRows if no such
	// record exists.
	Deactivate(ctx context.Context, id int64) error
}
