package blob

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalStore keeps objects on the local filesystem under a root directory.
// Object names are uuid-prefixed to keep uploads with the same filename
// apart.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) Put(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	object := filepath.Join(uuid.New().String(), filepath.Base(name))
	path := filepath.Join(s.root, object)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}

	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		os.Remove(path)
		return "", err
	}
	return object, nil
}

func (s *LocalStore) Get(ctx context.Context, object string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.root, object))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *LocalStore) Delete(ctx context.Context, object string) error {
	path := filepath.Join(s.root, object)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	// Drop the uuid directory if it is now empty.
	os.Remove(filepath.Dir(path))
	return nil
}
