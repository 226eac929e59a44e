package pipeline

import (
	"sync"

	"github.com/google/uuid"
)

// docLocks hands out one mutex per document id so that at most one
// process/reprocess/delete run touches a document at a time. Entries are
// reference counted and dropped when the last holder releases.
type docLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*docLock
}

type docLock struct {
	mu   sync.Mutex
	refs int
}

func newDocLocks() *docLocks {
	return &docLocks{locks: make(map[uuid.UUID]*docLock)}
}

func (l *docLocks) lock(id uuid.UUID) {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &docLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
}

func (l *docLocks) unlock(id uuid.UUID) {
	l.mu.Lock()
	entry := l.locks[id]
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, id)
	}
	l.mu.Unlock()

	entry.mu.Unlock()
}
