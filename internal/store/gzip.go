package store

import (
	"io"

	"github.com/klauspost/compress/gzip"
)

// gzipReadCloser decompresses src and closes both the gzip stream and the
// underlying source.
type gzipReadCloser struct {
	gz  *gzip.Reader
	src io.ReadCloser
}

func newGzipReadCloser(src io.ReadCloser) (io.ReadCloser, error) {
	gz, err := gzip.NewReader(src)
	if err != nil {
		src.Close()
		return nil, err
	}
	return &gzipReadCloser{gz: gz, src: src}, nil
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipReadCloser) Close() error {
	err := g.gz.Close()
	if cerr := g.src.Close(); err == nil {
		err = cerr
	}
	return err
}
