package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blobvault/internal/model"
	"blobvault/internal/repository"
)

func keyColumns() []string {
	return []string{"id", "name", "key_hash", "created_at", "last_used", "is_active"}
}

func TestAPIKeyPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAPIKeyPostgres(db)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(keyColumns()).
		AddRow(int64(1), "ci-bot", "$2a$10$hash", now, nil, true)

	mock.ExpectQuery("INSERT INTO api_keys").
		WithArgs("ci-bot", "$2a$10$hash", now).
		WillReturnRows(rows)

	key, err := repo.Create(context.Background(), &model.APIKey{
		Name:      "ci-bot",
		KeyHash:   "$2a$10$hash",
		CreatedAt: now,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1), key.ID)
	assert.True(t, key.Active)
	assert.Nil(t, key.LastUsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyPostgres_CreateDuplicateName(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAPIKeyPostgres(db)

	mock.ExpectQuery("INSERT INTO api_keys").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "api_keys_name_key"})

	_, err = repo.Create(context.Background(), &model.APIKey{Name: "ci-bot"})

	assert.ErrorIs(t, err, repository.ErrDuplicateName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyPostgres_ListActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAPIKeyPostgres(db)

	rows := sqlmock.NewRows(keyColumns()).
		AddRow(int64(1), "ci-bot", "$2a$10$hash", time.Now(), nil, true)

	mock.ExpectQuery("SELECT id, name, key_hash, created_at, last_used, is_active FROM api_keys WHERE is_active").
		WillReturnRows(rows)

	keys, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "ci-bot", keys[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyPostgres_TouchLastUsed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAPIKeyPostgres(db)
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE api_keys SET last_used").
		WithArgs(at, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.TouchLastUsed(context.Background(), 1, at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyPostgres_Deactivate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAPIKeyPostgres(db)
	ctx := context.Background()

	t.Run("revoked", func(t *testing.T) {
		mock.ExpectExec("UPDATE api_keys SET is_active = FALSE").
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Deactivate(ctx, 1))
	})

	t.Run("missing", func(t *testing.T) {
		mock.ExpectExec("UPDATE api_keys SET is_active = FALSE").
			WithArgs(int64(42)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Deactivate(ctx, 42), sql.ErrNoRows)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
