package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"os"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// Writer is one in-flight upload: a temporary file owned exclusively by this
// writer until Commit renames it into place or Discard removes it. The
// SHA-256 digest is computed incrementally over the bytes handed to Write,
// before optional compression, so the digest always addresses the original
// content.
type Writer struct {
	mu       sync.Mutex
	tmpFile  *os.File
	tmpPath  string
	gz       *gzip.Writer
	hasher   hash.Hash
	size     int64
	maxBytes int64
	closed   bool
	err      error // sticky: once a write fails, everything after fails the same way
}

func newWriter(tmpFile *os.File, compress bool, maxBytes int64) *Writer {
	w := &Writer{
		tmpFile:  tmpFile,
		tmpPath:  tmpFile.Name(),
		hasher:   sha256.New(),
		maxBytes: maxBytes,
	}
	if compress {
		w.gz = gzip.NewWriter(tmpFile)
	}
	return w
}

// Write hashes and counts p, enforces the size cap, then writes to the
// (possibly compressed) temp file. Exceeding the cap fails with
// ErrSizeExceeded and poisons the writer; it never silently truncates.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, fmt.Errorf("write after close")
	}
	if w.err != nil {
		return 0, w.err
	}

	if w.maxBytes > 0 && w.size+int64(len(p)) > w.maxBytes {
		w.err = ErrSizeExceeded
		return 0, w.err
	}

	w.hasher.Write(p)
	w.size += int64(len(p))

	var err error
	if w.gz != nil {
		_, err = w.gz.Write(p)
	} else {
		_, err = w.tmpFile.Write(p)
	}
	if err != nil {
		w.err = err
		return 0, err
	}
	return len(p), nil
}

// Size returns the number of uncompressed bytes written so far.
func (w *Writer) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Digest returns the hex-encoded SHA-256 of the bytes written so far.
func (w *Writer) Digest() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return hex.EncodeToString(w.hasher.Sum(nil))
}

// Commit flushes, closes, and atomically renames the temp file to finalPath.
// finalPath must be on the same filesystem as the temp directory; the rename
// is a single syscall with no window where a partial file is visible under
// the final name. On any failure the temp file is removed.
func (w *Writer) Commit(finalPath string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("commit after close")
	}
	if w.err != nil {
		return w.err
	}
	w.closed = true

	defer func() {
		if w.err != nil {
			os.Remove(w.tmpPath)
		}
	}()

	if w.gz != nil {
		if err := w.gz.Close(); err != nil {
			w.err = err
			w.tmpFile.Close()
			return err
		}
	}
	if err := w.tmpFile.Close(); err != nil {
		w.err = err
		return err
	}
	if err := os.Rename(w.tmpPath, finalPath); err != nil {
		w.err = fmt.Errorf("committing blob: %w", err)
		return w.err
	}
	return nil
}

// Discard closes the writer and removes the temp file without committing.
// Safe to call after Commit and safe to call multiple times.
func (w *Writer) Discard() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true

	if w.gz != nil {
		w.gz.Close()
	}
	w.tmpFile.Close()
	os.Remove(w.tmpPath)
}
