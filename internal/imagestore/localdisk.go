// Package imagestore persists uploaded recipe images and serves them back
// under /uploads/. LocalDisk keeps them in a flat directory, Minio in an
// S3-compatible bucket.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
)

// LocalDisk stores images as files of a single directory.
type LocalDisk struct {
	dir        string
	fileServer http.Handler
}

// NewLocalDisk creates dir if needed.
func NewLocalDisk(dir string) (*LocalDisk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/imagestore/localdisk.go/NewLocalDisk(): error while `os.MkdirAll()` calling: %w",
				err,
			)
	}

	return &LocalDisk{
		dir:        dir,
		fileServer: http.FileServer(http.Dir(dir)),
	}, nil
}

// Save writes r to dir/name.
func (s *LocalDisk) Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	file, err := os.OpenFile(filepath.Join(s.dir, filepath.Base(name)), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(file, r); err != nil {
		_ = file.Close()
		return err
	}

	return file.Close()
}

// ServeHTTP serves stored files. It expects the /uploads prefix to be stripped.
func (s *LocalDisk) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.fileServer.ServeHTTP(w, r)
}

// Delete removes dir/name. A missing file is not an error.
func (s *LocalDisk) Delete(ctx context.Context, name string) error {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(name)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}

// Close is a no-op.
func (s *LocalDisk) Close() error {
	return nil
}
