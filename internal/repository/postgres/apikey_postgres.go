package postgres

import (
	"context"
	"database/sql"
	"time"

	"blobvault/internal/model"
	"blobvault/internal/repository"
)

// APIKeyPostgres is a PostgreSQL implementation of repository.APIKeyRepository.
type APIKeyPostgres struct {
	db *sql.DB
}

// NewAPIKeyPostgres creates a new APIKeyPostgres repository.
func NewAPIKeyPostgres(db *sql.DB) *APIKeyPostgres {
	return &APIKeyPostgres{db: db}
}

var _ repository.APIKeyRepository = (*APIKeyPostgres)(nil)

// Create inserts a new key row. The label is unique; a violation surfaces
// as repository.ErrDuplicateName.
func (r *APIKeyPostgres) Create(ctx context.Context, key *model.APIKey) (*model.APIKey, error) {
	const q = `
		INSERT INTO api_keys (name, key_hash, created_at, is_active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id, name, key_hash, created_at, last_used, is_active
	`
	row := r.db.QueryRowContext(ctx, q, key.Name, key.KeyHash, key.CreatedAt)
	var out model.APIKey
	if err := row.Scan(
		&out.ID,
		&out.Name,
		&out.KeyHash,
		&out.CreatedAt,
		&out.LastUsed,
		&out.Active,
	); err != nil {
		if isUniqueViolation(err, "api_keys_name_key") {
			return nil, repository.ErrDuplicateName
		}
		return nil, err
	}
	return &out, nil
}

// FindByID fetches a single key record by id.
func (r *APIKeyPostgres) FindByID(ctx context.Context, id int64) (*model.APIKey, error) {
	const q = `
		SELECT id, name, key_hash, created_at, last_used, is_active
		FROM api_keys
		WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, q, id)
	var k model.APIKey
	if err := row.Scan(
		&k.ID,
		&k.Name,
		&k.KeyHash,
		&k.CreatedAt,
		&k.LastUsed,
		&k.Active,
	); err != nil {
		return nil, err
	}
	return &k, nil
}

// ListActive returns the keys eligible for verification.
func (r *APIKeyPostgres) ListActive(ctx context.Context) ([]model.APIKey, error) {
	const q = `
		SELECT id, name, key_hash, created_at, last_used, is_active
		FROM api_keys
		WHERE is_active = TRUE
	`
	return r.list(ctx, q)
}

// ListAll returns every key record, newest first, revoked included.
func (r *APIKeyPostgres) ListAll(ctx context.Context) ([]model.APIKey, error) {
	const q = `
		SELECT id, name, key_hash, created_at, last_used, is_active
		FROM api_keys
		ORDER BY created_at DESC, id DESC
	`
	return r.list(ctx, q)
}

func (r *APIKeyPostgres) list(ctx context.Context, q string) ([]model.APIKey, error) {
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.APIKey, 0)
	for rows.Next() {
		var k model.APIKey
		if err := rows.Scan(
			&k.ID,
			&k.Name,
			&k.KeyHash,
			&k.CreatedAt,
			&k.LastUsed,
			&k.Active,
		); err != nil {
			return nil, err
		}
		items = append(items, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// TouchLastUsed stamps the key's last successful verification time.
func (r *APIKeyPostgres) TouchLastUsed(ctx context.Context, id int64, at time.Time) error {
	const q = `UPDATE api_keys SET last_used = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, q, at, id)
	return err
}

// Deactivate flips the key inactive; the audit row remains.
func (r *APIKeyPostgres) Deactivate(ctx context.Context, id int64) error {
	const q = `UPDATE api_keys SET is_active = FALSE WHERE id = $1`
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
