package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"blobvault/internal/model"
	"blobvault/internal/repository"
	"blobvault/internal/store"
	"blobvault/internal/validate"
)

var (
	ErrIDRequired = errors.New("id is required")
	ErrNotFound   = errors.New("blob not found")
	ErrReaderNil  = errors.New("reader is nil")
)

// IngestOptions controls one upload. Filename is the client's original name
// and only gates JSON validation (.json uploads are validated unless
// SkipValidation is set); the stored filename is generated by the store.
type IngestOptions struct {
	Name           string
	Filename       string
	Compress       bool
	SkipValidation bool
}

// IngestResult is the outcome of one upload. Duplicate reports that the
// content already existed; Blob then points at the pre-existing record and
// no second on-disk copy was kept.
type IngestResult struct {
	Blob      *model.Blob
	Duplicate bool
}

// BlobService defines the use cases for handling content-addressed blobs.
type BlobService interface {
	// Ingest runs the upload pipeline: optional structural validation,
	// streaming hashed write, dedup against the index, retention prune.
	Ingest(ctx context.Context, r io.Reader, opt IngestOptions) (*IngestResult, error)

	// Get returns a blob record by id.
	Get(ctx context.Context, id int64) (*model.Blob, error)

	// OpenContent returns the record and its decompressed content stream.
	OpenContent(ctx context.Context, id int64) (*model.Blob, io.ReadCloser, error)

	// OpenArchive returns the record and its stored representation, for
	// byte-exact downloads.
	OpenArchive(ctx context.Context, id int64) (*model.Blob, io.ReadCloser, error)

	// List returns all blob records, newest first.
	List(ctx context.Context) ([]model.Blob, error)

	// Delete removes the index row and best-effort removes the backing
	// file; a missing file never fails the delete.
	Delete(ctx context.Context, id int64) error
}

// BlobServiceConfig carries the pipeline policy knobs.
type BlobServiceConfig struct {
	Limits        validate.Limits
	MaxUploadSize int64
	Retention     int
}

type blobService struct {
	store store.Store
	repo  repository.BlobRepository
	cfg   BlobServiceConfig
}

// NewBlobService constructs a new BlobService.
func NewBlobService(st store.Store, repo repository.BlobRepository, cfg BlobServiceConfig) BlobService {
	return &blobService{store: st, repo: repo, cfg: cfg}
}

func (s *blobService) Ingest(ctx context.Context, r io.Reader, opt IngestOptions) (*IngestResult, error) {
	if r == nil {
		return nil, ErrReaderNil
	}

	src := r
	if s.shouldValidate(opt) {
		// Structural validation needs the materialized document. The size
		// cap gates materialization; the validator itself never sees more
		// than MaxUploadSize bytes.
		data, err := readCapped(r, s.cfg.MaxUploadSize)
		if err != nil {
			return nil, err
		}
		if err := validate.Document(data, s.cfg.Limits); err != nil {
			return nil, err
		}
		src = bytes.NewReader(data)
	}

	res, err := s.store.Save(ctx, src, store.SaveOptions{
		Compress: opt.Compress,
		MaxBytes: s.cfg.MaxUploadSize,
	})
	if err != nil {
		return nil, err
	}

	// Fast-path dedup lookup. The unique index on digest remains the
	// authoritative guard below; this just avoids the insert round-trip for
	// the common repeat-upload case.
	existing, err := s.repo.FindByDigest(ctx, res.Digest)
	if err == nil {
		_ = s.store.Remove(ctx, res.Filename)
		return &IngestResult{Blob: existing, Duplicate: true}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		_ = s.store.Remove(ctx, res.Filename)
		return nil, fmt.Errorf("dedup lookup failed: %w", err)
	}

	created, err := s.repo.Create(ctx, &model.Blob{
		Name:      ingestName(opt),
		Filename:  res.Filename,
		Size:      res.Size,
		Digest:    res.Digest,
		CreatedAt: time.Now().UTC(),
	})
	if errors.Is(err, repository.ErrDuplicateDigest) {
		// A concurrent upload of identical content won the insert. Recover
		// as a duplicate outcome: drop our copy, return the winner's record.
		_ = s.store.Remove(ctx, res.Filename)
		winner, ferr := s.repo.FindByDigest(ctx, res.Digest)
		if ferr != nil {
			return nil, fmt.Errorf("duplicate recovery lookup failed: %w", ferr)
		}
		return &IngestResult{Blob: winner, Duplicate: true}, nil
	}
	if err != nil {
		// Rollback: delete the blob file so index and store stay in sync.
		if delErr := s.store.Remove(ctx, res.Filename); delErr != nil {
			return nil, fmt.Errorf("index save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("index save failed: %w", err)
	}

	// Retention sweep is opportunistic and never fails the request.
	if s.cfg.Retention > 0 {
		_, _ = s.store.Prune(ctx, s.cfg.Retention)
	}

	return &IngestResult{Blob: created, Duplicate: false}, nil
}

func (s *blobService) shouldValidate(opt IngestOptions) bool {
	return !opt.SkipValidation && strings.HasSuffix(strings.ToLower(opt.Filename), ".json")
}

func ingestName(opt IngestOptions) string {
	if opt.Name != "" {
		return opt.Name
	}
	if opt.Filename != "" {
		return opt.Filename
	}
	return fmt.Sprintf("source-%d", time.Now().Unix())
}

// readCapped materializes r up to max bytes. One byte beyond the cap aborts
// with the store's size error so callers treat it like any other oversize.
func readCapped(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > max {
		return nil, store.ErrSizeExceeded
	}
	return data, nil
}

func (s *blobService) Get(ctx context.Context, id int64) (*model.Blob, error) {
	if id <= 0 {
		return nil, ErrIDRequired
	}
	blob, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return blob, nil
}

func (s *blobService) OpenContent(ctx context.Context, id int64) (*model.Blob, io.ReadCloser, error) {
	return s.open(ctx, id, s.store.Open)
}

func (s *blobService) OpenArchive(ctx context.Context, id int64) (*model.Blob, io.ReadCloser, error) {
	return s.open(ctx, id, s.store.OpenRaw)
}

func (s *blobService) open(ctx context.Context, id int64, opener func(context.Context, string) (io.ReadCloser, error)) (*model.Blob, io.ReadCloser, error) {
	blob, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := opener(ctx, blob.Filename)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	return blob, rc, nil
}

func (s *blobService) List(ctx context.Context) ([]model.Blob, error) {
	return s.repo.List(ctx)
}

func (s *blobService) Delete(ctx context.Context, id int64) error {
	blob, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	// Index row first, then the file. The file removal is best effort: a
	// record whose backing file already vanished must still be deletable.
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	_ = s.store.Remove(ctx, blob.Filename)
	return nil
}
