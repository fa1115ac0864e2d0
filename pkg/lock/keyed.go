package lock

import (
	"context"
	"fmt"
	"sync"
)

// KeyedMutex is an in-process Locker for single-node deployments.
// Entries are reference counted and dropped once nobody holds or waits for them.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	sem  chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*entry)}
}

func (km *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	e := km.acquireEntry(key)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		km.releaseEntry(key, e)
		return nil, fmt.Errorf("%w: key %q: %w", ErrNotAcquired, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			km.releaseEntry(key, e)
		})
	}, nil
}

func (km *KeyedMutex) acquireEntry(key string) *entry {
	km.mu.Lock()
	defer km.mu.Unlock()

	e, ok := km.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		km.entries[key] = e
	}
	e.refs++

	return e
}

func (km *KeyedMutex) releaseEntry(key string, e *entry) {
	km.mu.Lock()
	defer km.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(km.entries, key)
	}
}

// size is used by tests to make sure entries don't leak.
func (km *KeyedMutex) size() int {
	km.mu.Lock()
	defer km.mu.Unlock()
	return len(km.entries)
}
