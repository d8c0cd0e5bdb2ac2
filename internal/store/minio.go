package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"blobvault/internal/config"
)

// MinIOStore implements Store against an S3-compatible backend. The digest
// is still computed over the uncompressed client bytes: the reader is
// tee-hashed before the optional gzip pipe, so dedup semantics are identical
// to the disk backend. Object stores have no rename, but a PutObject is only
// visible once complete, which gives the same no-partial-file guarantee.
//
// Safe for concurrent use by multiple goroutines.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

var _ Store = (*MinIOStore)(nil)

// NewMinIO creates a new S3-compatible store client. It validates
// connectivity and ensures the bucket exists (creates it if missing).
func NewMinIO(cfg config.MinIOConfig) (*MinIOStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &MinIOStore{client: cli, bucket: cfg.Bucket}, nil
}

// hashingReader hashes and counts uncompressed bytes as they are consumed,
// failing with ErrSizeExceeded once the cap is passed.
type hashingReader struct {
	src io.Reader
	h   hash.Hash
	n   int64
	max int64
}

func (r *hashingReader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	if n > 0 {
		r.h.Write(p[:n])
		r.n += int64(n)
		if r.max > 0 && r.n > r.max {
			return n, ErrSizeExceeded
		}
	}
	return n, err
}

// Save uploads via streaming PutObject. Compression runs through a pipe so
// nothing is buffered in full.
func (m *MinIOStore) Save(ctx context.Context, r io.Reader, opt SaveOptions) (SaveResult, error) {
	name, err := newFilename(opt.Compress)
	if err != nil {
		return SaveResult{}, err
	}

	hr := &hashingReader{src: r, h: sha256.New(), max: opt.MaxBytes}

	body := io.Reader(hr)
	contentType := "application/json"
	if opt.Compress {
		contentType = "application/gzip"
		pr, pw := io.Pipe()
		go func() {
			gz := gzip.NewWriter(pw)
			if err := copyChunks(ctx, gz, hr); err != nil {
				pw.CloseWithError(err)
				return
			}
			if err := gz.Close(); err != nil {
				pw.CloseWithError(err)
				return
			}
			pw.Close()
		}()
		body = pr
	}

	_, err = m.client.PutObject(ctx, m.bucket, name, body, -1, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		// The client aborts the multipart upload on reader failure, but an
		// already-completed object from a post-stream cap hit is removed
		// explicitly, best effort.
		_ = m.client.RemoveObject(context.WithoutCancel(ctx), m.bucket, name, minio.RemoveObjectOptions{})
		if errors.Is(err, ErrSizeExceeded) || strings.Contains(err.Error(), ErrSizeExceeded.Error()) {
			return SaveResult{}, ErrSizeExceeded
		}
		return SaveResult{}, fmt.Errorf("upload to object store: %w", err)
	}

	return SaveResult{
		Filename: name,
		Size:     hr.n,
		Digest:   hex.EncodeToString(hr.h.Sum(nil)),
	}, nil
}

// Open returns the decompressed content of a stored object.
func (m *MinIOStore) Open(ctx context.Context, filename string) (io.ReadCloser, error) {
	obj, err := m.openObject(ctx, filename)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(filename, ".gz") {
		return obj, nil
	}
	return newGzipReadCloser(obj)
}

// OpenRaw returns the stored representation.
func (m *MinIOStore) OpenRaw(ctx context.Context, filename string) (io.ReadCloser, error) {
	return m.openObject(ctx, filename)
}

func (m *MinIOStore) openObject(ctx context.Context, filename string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, filename, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %q: %w", filename, err)
	}
	// GetObject is lazy; Stat forces the existence check now so missing
	// objects map to ErrNotFound instead of failing on first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("blob %q: %w", filename, ErrNotFound)
		}
		return nil, fmt.Errorf("stat object %q: %w", filename, err)
	}
	return obj, nil
}

// Remove deletes an object; removing a missing object is not an error.
func (m *MinIOStore) Remove(ctx context.Context, filename string) error {
	err := m.client.RemoveObject(ctx, m.bucket, filename, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("remove object %q: %w", filename, err)
	}
	return nil
}

// Prune keeps the keep newest objects in the bucket and removes the rest.
func (m *MinIOStore) Prune(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	var objects []minio.ObjectInfo
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{}) {
		if obj.Err != nil {
			return 0, fmt.Errorf("listing objects: %w", obj.Err)
		}
		objects = append(objects, obj)
	}

	if len(objects) <= keep {
		return 0, nil
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})

	removed := 0
	for _, obj := range objects[keep:] {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := m.client.RemoveObject(ctx, m.bucket, obj.Key, minio.RemoveObjectOptions{}); err == nil {
			removed++
		}
	}
	return removed, nil
}
