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

func blobColumns() []string {
	return []string{"id", "name", "filename", "size", "digest", "created_at"}
}

func TestBlobPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewBlobPostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	blob := &model.Blob{
		Name:      "report",
		Filename:  "1700000000-a1b2c3d4e5f6.json.gz",
		Size:      123,
		Digest:    "deadbeef",
		CreatedAt: now,
	}

	rows := sqlmock.NewRows(blobColumns()).
		AddRow(int64(7), blob.Name, blob.Filename, blob.Size, blob.Digest, blob.CreatedAt)

	mock.ExpectQuery("INSERT INTO blobs").
		WithArgs(blob.Name, blob.Filename, blob.Size, blob.Digest, blob.CreatedAt).
		WillReturnRows(rows)

	result, err := repo.Create(ctx, blob)

	require.NoError(t, err)
	assert.Equal(t, int64(7), result.ID)
	assert.Equal(t, blob.Digest, result.Digest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlobPostgres_CreateDuplicateDigest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewBlobPostgres(db)

	mock.ExpectQuery("INSERT INTO blobs").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_blobs_digest"})

	_, err = repo.Create(context.Background(), &model.Blob{Digest: "deadbeef"})

	assert.ErrorIs(t, err, repository.ErrDuplicateDigest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlobPostgres_FindByDigest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewBlobPostgres(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		rows := sqlmock.NewRows(blobColumns()).
			AddRow(int64(3), "report", "f.json.gz", int64(10), "deadbeef", time.Now())
		mock.ExpectQuery("SELECT id, name, filename, size, digest, created_at FROM blobs WHERE digest").
			WithArgs("deadbeef").
			WillReturnRows(rows)

		b, err := repo.FindByDigest(ctx, "deadbeef")
		require.NoError(t, err)
		assert.Equal(t, int64(3), b.ID)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, filename, size, digest, created_at FROM blobs WHERE digest").
			WithArgs("cafebabe").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.FindByDigest(ctx, "cafebabe")
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlobPostgres_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewBlobPostgres(db)

	rows := sqlmock.NewRows(blobColumns()).
		AddRow(int64(2), "newer", "b.json.gz", int64(20), "bbbb", time.Now()).
		AddRow(int64(1), "older", "a.json.gz", int64(10), "aaaa", time.Now().Add(-time.Hour))

	mock.ExpectQuery("SELECT id, name, filename, size, digest, created_at FROM blobs ORDER BY created_at DESC").
		WillReturnRows(rows)

	items, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "newer", items[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlobPostgres_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewBlobPostgres(db)
	ctx := context.Background()

	t.Run("deleted", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM blobs WHERE id").
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Delete(ctx, 1))
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM blobs WHERE id").
			WithArgs(int64(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Delete(ctx, 99), sql.ErrNoRows)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
