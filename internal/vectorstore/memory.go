package vectorstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Neerajsainii/suitcase/internal/embedding"
)

// MemoryIndex is a brute-force in-memory Index. It backs development mode
// and tests; distances are cosine distances (1 - cosine similarity).
type MemoryIndex struct {
	mu         sync.RWMutex
	collection string
	dims       int // fixed by the first upserted vector
	entries    map[string]Entry
}

func NewMemoryIndex(collection string) *MemoryIndex {
	return &MemoryIndex{
		collection: collection,
		entries:    make(map[string]Entry),
	}
}

func (m *MemoryIndex) Upsert(ctx context.Context, entries []Entry) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate the whole batch before writing so a mismatch cannot leave a
	// partial upsert behind.
	dims := m.dims
	for _, entry := range entries {
		if dims == 0 {
			dims = len(entry.Vector)
		} else if len(entry.Vector) != dims {
			return nil, wrapError("upsert", ErrDimensionMismatch)
		}
	}
	m.dims = dims

	ids := make([]string, len(entries))
	for i, entry := range entries {
		if entry.ID == "" {
			entry.ID = uuid.New().String()
		}
		m.entries[entry.ID] = entry
		ids[i] = entry.ID
	}
	return ids, nil
}

func (m *MemoryIndex) Search(ctx context.Context, vector []float32, k int, filter map[string]string) ([]Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if k <= 0 {
		k = 5
	}
	if m.dims != 0 && len(vector) != m.dims {
		return nil, wrapError("search", ErrDimensionMismatch)
	}

	results := make([]Result, 0, len(m.entries))
	for _, entry := range m.entries {
		if !matchesFilter(entry.Attributes, filter) {
			continue
		}
		results = append(results, Result{
			ID:         entry.ID,
			Text:       entry.Text,
			Attributes: entry.Attributes,
			Distance:   1 - embedding.CosineSimilarity(vector, entry.Vector),
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (m *MemoryIndex) Delete(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		delete(m.entries, id)
	}
	return nil
}

func (m *MemoryIndex) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		Collection: m.collection,
		Count:      int64(len(m.entries)),
		Metadata:   map[string]string{"backend": "memory"},
	}, nil
}

func matchesFilter(attributes, filter map[string]string) bool {
	for k, v := range filter {
		if attributes[k] != v {
			return false
		}
	}
	return true
}
