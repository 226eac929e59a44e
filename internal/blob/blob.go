package blob

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a requested object does not exist.
var ErrNotFound = errors.New("blob: object not found")

// Store holds raw document bytes, addressed by an opaque object name.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader, size int64) (string, error)
	Get(ctx context.Context, object string) (io.ReadCloser, error)
	Delete(ctx context.Context, object string) error
}
