package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/moby/sys/atomicwriter"
)

// FileBackend keeps the snapshot as a JSON document on local disk. Writes go
// to a temporary file in the same directory which is synced and renamed over
// the target, so a crash mid-write leaves the previous document in place.
type FileBackend struct {
	path string
	now  func() time.Time
}

// NewFileBackend returns a backend for the document at path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path, now: time.Now}
}

var _ Quarantiner = (*FileBackend)(nil)

func (b *FileBackend) Describe() string { return "file:" + b.path }

// Path returns the document location.
func (b *FileBackend) Path() string { return b.path }

func (b *FileBackend) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

func (b *FileBackend) Write(_ context.Context, doc []byte) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return err
	}
	return atomicwriter.WriteFile(b.path, doc, 0o600)
}

// Quarantine renames the current document to <path>.corrupt-<unix>.
func (b *FileBackend) Quarantine(_ context.Context) (string, error) {
	dst := fmt.Sprintf("%s.corrupt-%d", b.path, b.now().Unix())
	if err := os.Rename(b.path, dst); err != nil {
		return "", err
	}
	return dst, nil
}
