package fs

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// PathLocks serializes work on the same file. Entries are created on demand
// and dropped once nobody holds or waits for them.
type PathLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	sem  *semaphore.Weighted
	refs int
}

// NewPathLocks creates an empty lock table.
func NewPathLocks() *PathLocks {
	return &PathLocks{entries: make(map[string]*lockEntry)}
}

// Lock blocks until the caller owns absPath or ctx is done. The returned
// function releases the lock and must be called exactly once.
func (l *PathLocks) Lock(ctx context.Context, absPath string) (func(), error) {
	key := Key(absPath)

	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{sem: semaphore.NewWeighted(1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		l.release(key, e)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			l.release(key, e)
		})
	}, nil
}

func (l *PathLocks) release(key string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// Len returns the number of paths currently locked or waited on.
func (l *PathLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
