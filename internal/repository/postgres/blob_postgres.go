package postgres

import (
	"context"
	"database/sql"

	"blobvault/internal/model"
	"blobvault/internal/repository"
)

// BlobPostgres is a PostgreSQL implementation of repository.BlobRepository.
// It uses database/sql with parameterized queries and contains no business
// logic.
type BlobPostgres struct {
	db *sql.DB
}

// NewBlobPostgres creates a new BlobPostgres repository.
func NewBlobPostgres(db *sql.DB) *BlobPostgres {
	return &BlobPostgres{db: db}
}

var _ repository.BlobRepository = (*BlobPostgres)(nil)

// Create inserts a new blob row and returns the stored record. The unique
// index on digest is the dedup race guard: a violation surfaces as
// repository.ErrDuplicateDigest, never as a crash.
func (r *BlobPostgres) Create(ctx context.Context, blob *model.Blob) (*model.Blob, error) {
	const q = `
		INSERT INTO blobs (name, filename, size, digest, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name, filename, size, digest, created_at
	`
	row := r.db.QueryRowContext(ctx, q,
		blob.Name,
		blob.Filename,
		blob.Size,
		blob.Digest,
		blob.CreatedAt,
	)
	var out model.Blob
	if err := row.Scan(
		&out.ID,
		&out.Name,
		&out.Filename,
		&out.Size,
		&out.Digest,
		&out.CreatedAt,
	); err != nil {
		if isUniqueViolation(err, "idx_blobs_digest") {
			return nil, repository.ErrDuplicateDigest
		}
		return nil, err
	}
	return &out, nil
}

// FindByID fetches a single blob record by its id.
func (r *BlobPostgres) FindByID(ctx context.Context, id int64) (*model.Blob, error) {
	const q = `
		SELECT id, name, filename, size, digest, created_at
		FROM blobs
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, q, id))
}

// FindByDigest fetches the blob record with the given content digest.
func (r *BlobPostgres) FindByDigest(ctx context.Context, digest string) (*model.Blob, error) {
	const q = `
		SELECT id, name, filename, size, digest, created_at
		FROM blobs
		WHERE digest = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, q, digest))
}

func (r *BlobPostgres) scanOne(row *sql.Row) (*model.Blob, error) {
	var b model.Blob
	if err := row.Scan(
		&b.ID,
		&b.Name,
		&b.Filename,
		&b.Size,
		&b.Digest,
		&b.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &b, nil
}

// List returns all blob records, newest first.
func (r *BlobPostgres) List(ctx context.Context) ([]model.Blob, error) {
	const q = `
		SELECT id, name, filename, size, digest, created_at
		FROM blobs
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Blob, 0)
	for rows.Next() {
		var b model.Blob
		if err := rows.Scan(
			&b.ID,
			&b.Name,
			&b.Filename,
			&b.Size,
			&b.Digest,
			&b.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Delete removes a blob row by id. Missing rows report sql.ErrNoRows so the
// caller can answer 404.
func (r *BlobPostgres) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM blobs WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
