package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrBlobNotFound is returned when a named blob does not exist in the store.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore is a single logical store of path-addressed objects, distinct from
// the metadata store holding task and user rows.
type BlobStore interface {
	// Save durably writes the reader's bytes under name and returns the
	// resolved storage path.
	Save(name string, r io.Reader) (string, error)

	// Open returns a reader over the named blob, or ErrBlobNotFound.
	Open(name string) (io.ReadCloser, error)

	// Delete removes the named blob. A missing blob yields ErrBlobNotFound.
	Delete(name string) error

	// Exists reports whether the named blob is present.
	Exists(name string) bool
}

// LocalBlobStore keeps blobs as files under a fixed uploads root.
type LocalBlobStore struct {
	root string
}

// NewLocalBlobStore creates the uploads root if needed.
func NewLocalBlobStore(root string) (*LocalBlobStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create uploads root: %w", err)
	}
	return &LocalBlobStore{root: root}, nil
}

func (s *LocalBlobStore) path(name string) string {
	// Names are generated server-side; Base strips anything path-like anyway.
	return filepath.Join(s.root, filepath.Base(name))
}

func (s *LocalBlobStore) Save(name string, r io.Reader) (string, error) {
	path := s.path(name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create blob file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path) // clean up the partial file
		return "", fmt.Errorf("failed to write blob: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close blob file: %w", err)
	}

	return path, nil
}

func (s *LocalBlobStore) Open(name string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return f, nil
}

func (s *LocalBlobStore) Delete(name string) error {
	if err := os.Remove(s.path(name)); err != nil {
		if os.IsNotExist(err) {
			return ErrBlobNotFound
		}
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

func (s *LocalBlobStore) Exists(name string) bool {
	_, err := os.Stat(s.path(name))
	return err == nil
}
