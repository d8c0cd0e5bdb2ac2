package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const tempDirName = ".tmp"

// DiskStore keeps blob files flat under a root directory, with in-flight
// writes isolated in root/.tmp. Temp and final locations share a filesystem
// so commits are single-rename atomic.
type DiskStore struct {
	root    string
	tmpDir  string
	dirMode os.FileMode
}

var _ Store = (*DiskStore)(nil)

// NewDisk creates the storage root and temp directory if missing.
func NewDisk(root string) (*DiskStore, error) {
	root = filepath.Clean(root)
	tmpDir := filepath.Join(root, tempDirName)
	for _, dir := range []string{root, tmpDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating storage directory %s: %w", dir, err)
		}
	}
	return &DiskStore{root: root, tmpDir: tmpDir, dirMode: 0o755}, nil
}

// NewWriter opens a temp file for one upload. The caller must Commit or
// Discard it.
func (d *DiskStore) NewWriter(compress bool, maxBytes int64) (*Writer, error) {
	f, err := os.CreateTemp(d.tmpDir, "upload-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	return newWriter(f, compress, maxBytes), nil
}

// Save streams r through a Writer and commits under a fresh collision-free
// filename. Oversize input surfaces as ErrSizeExceeded, anything else as a
// storage failure; in both cases the temp file is gone before Save returns.
func (d *DiskStore) Save(ctx context.Context, r io.Reader, opt SaveOptions) (SaveResult, error) {
	w, err := d.NewWriter(opt.Compress, opt.MaxBytes)
	if err != nil {
		return SaveResult{}, err
	}
	defer w.Discard()

	if err := copyChunks(ctx, w, r); err != nil {
		if errors.Is(err, ErrSizeExceeded) {
			return SaveResult{}, err
		}
		return SaveResult{}, fmt.Errorf("writing blob: %w", err)
	}

	name, err := newFilename(opt.Compress)
	if err != nil {
		return SaveResult{}, err
	}
	if err := w.Commit(filepath.Join(d.root, name)); err != nil {
		return SaveResult{}, fmt.Errorf("committing blob: %w", err)
	}

	return SaveResult{Filename: name, Size: w.Size(), Digest: w.Digest()}, nil
}

// Open returns the decompressed content of a stored file.
func (d *DiskStore) Open(ctx context.Context, filename string) (io.ReadCloser, error) {
	f, err := d.open(filename)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(filename, ".gz") {
		return f, nil
	}
	return newGzipReadCloser(f)
}

// OpenRaw returns the stored representation for byte-exact download.
func (d *DiskStore) OpenRaw(ctx context.Context, filename string) (io.ReadCloser, error) {
	return d.open(filename)
}

func (d *DiskStore) open(filename string) (*os.File, error) {
	path, err := d.resolve(filename)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("blob %q: %w", filename, ErrNotFound)
		}
		return nil, fmt.Errorf("open blob %q: %w", filename, err)
	}
	return f, nil
}

// Remove deletes a stored file; a missing file is not an error.
func (d *DiskStore) Remove(ctx context.Context, filename string) error {
	path, err := d.resolve(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove blob %q: %w", filename, err)
	}
	return nil
}

// Prune keeps the keep newest blob files and removes the rest, best effort.
// Files that vanish mid-sweep are skipped, not failures.
func (d *DiskStore) Prune(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	entries, err := os.ReadDir(d.root)
	if err != nil {
		return 0, fmt.Errorf("listing storage root: %w", err)
	}

	type candidate struct {
		name  string
		mtime int64
	}
	var files []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, candidate{name: e.Name(), mtime: info.ModTime().UnixNano()})
	}

	if len(files) <= keep {
		return 0, nil
	}

	sort.Slice(files, func(i, j int) bool { return files[i].mtime > files[j].mtime })

	removed := 0
	for _, f := range files[keep:] {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := os.Remove(filepath.Join(d.root, f.name)); err == nil {
			removed++
		}
	}
	return removed, nil
}

// resolve rejects names that would escape the storage root. Stored filenames
// are generated internally, but the ids in the index are client-reachable
// history, so this stays defensive.
func (d *DiskStore) resolve(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) {
		return "", fmt.Errorf("invalid blob filename %q", filename)
	}
	return filepath.Join(d.root, filename), nil
}
