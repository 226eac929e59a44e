package vectorstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned when a vector does not match the index
// dimensionality.
var ErrDimensionMismatch = errors.New("vectorstore: vector dimension mismatch")

// Entry is one vector plus its payload, addressed by a caller-supplied or
// generated id. Upserting an existing id overwrites it.
type Entry struct {
	ID         string
	Vector     []float32
	Text       string
	Attributes map[string]string
}

// Result is one search hit. Distance is backend-native dissimilarity and
// increases as similarity decreases; both shipped backends use cosine
// distance.
type Result struct {
	ID         string
	Text       string
	Attributes map[string]string
	Distance   float64
}

// Stats describes the current state of a collection.
type Stats struct {
	Collection string            `json:"collection"`
	Count      int64             `json:"count"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Index is a similarity-search backend over a named collection.
//
// Search returns up to k results ordered by ascending distance; an empty
// collection yields an empty result, not an error. Delete is idempotent:
// deleting an unknown id is a no-op.
type Index interface {
	Upsert(ctx context.Context, entries []Entry) ([]string, error)
	Search(ctx context.Context, vector []float32, k int, filter map[string]string) ([]Result, error)
	Delete(ctx context.Context, ids []string) error
	Stats(ctx context.Context) (Stats, error)
}

// StoreError wraps an index error with the operation that produced it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("vectorstore: %v", e.Err)
	}
	return fmt.Sprintf("vectorstore: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
