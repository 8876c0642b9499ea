// Package locker provides per-key mutual exclusion so that operations on
// the same order are serialized while unrelated orders proceed in parallel.
package locker

import (
	"sync"

	"github.com/google/uuid"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex is a lock manager keyed by order id. Lock returns an unlock
// function; entries are discarded once the last holder releases, so the map
// does not grow with the order table.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[uuid.UUID]*entry)}
}

func (k *KeyedMutex) Lock(key uuid.UUID) (unlock func()) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			k.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(k.entries, key)
			}
			k.mu.Unlock()
		})
	}
}
