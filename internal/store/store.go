// Package store persists uploaded content as content-addressed files.
//
// Writes stream through a fixed-size chunk loop into a temporary location
// while a SHA-256 digest is computed over the uncompressed bytes as they are
// read from the source. The digest is always of the original content, never
// of the stored (possibly gzip-compressed) representation; deduplication
// depends on that pairing.
package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"
)

// chunkSize bounds each streaming read so a slow or hostile client cannot
// make a single copy call hold memory unboundedly.
const chunkSize = 64 * 1024

var (
	// ErrSizeExceeded reports that the running byte total passed the
	// permitted maximum. It is distinct from generic I/O failure: the caller
	// can surface it as an admission problem, not a server fault.
	ErrSizeExceeded = errors.New("content exceeds maximum permitted size")

	// ErrNotFound reports that no stored file exists under the given name.
	ErrNotFound = errors.New("stored file not found")
)

// SaveOptions controls one Save call. MaxBytes <= 0 means uncapped.
type SaveOptions struct {
	Compress bool
	MaxBytes int64
}

// SaveResult describes a committed write. Size counts uncompressed bytes
// read from the source; Digest is the hex-encoded SHA-256 of those bytes.
type SaveResult struct {
	Filename string
	Size     int64
	Digest   string
}

// Store is the blob persistence interface. Implementations must commit
// atomically: a partially-written file is never visible under its final name,
// and any failure removes whatever was written.
type Store interface {
	// Save streams r to storage, hashing and counting as it goes.
	Save(ctx context.Context, r io.Reader, opt SaveOptions) (SaveResult, error)

	// Open returns the decompressed content of a stored file.
	Open(ctx context.Context, filename string) (io.ReadCloser, error)

	// OpenRaw returns the stored representation (compressed when the file
	// was saved with compression), for byte-exact downloads.
	OpenRaw(ctx context.Context, filename string) (io.ReadCloser, error)

	// Remove deletes a stored file. Removing a missing file is not an error.
	Remove(ctx context.Context, filename string) error

	// Prune removes all but the keep newest stored files and returns how
	// many were removed. keep <= 0 disables pruning.
	Prune(ctx context.Context, keep int) (int, error)
}

// newFilename builds a collision-free name from the current time plus random
// suffix, with an extension reflecting compression. Two concurrent saves can
// never target the same final path.
func newFilename(compress bool) (string, error) {
	var suffix [6]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return "", fmt.Errorf("random filename suffix: %w", err)
	}
	ext := ".json"
	if compress {
		ext = ".json.gz"
	}
	return fmt.Sprintf("%d-%s%s", time.Now().Unix(), hex.EncodeToString(suffix[:]), ext), nil
}

// copyChunks copies r into w in chunkSize pieces, honoring ctx between
// chunks so a canceled request stops consuming resources.
func copyChunks(ctx context.Context, w io.Writer, r io.Reader) error {
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := r.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return writeErr
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}
