// Package keylock provides a mutex per string key, so callers can
// serialize operations on the same quote id without holding a single
// process-wide lock.
package keylock

import "sync"

type entry struct {
	mu       sync.Mutex
	waiters  int
}

// Table is a reference-counted map of string keys to mutexes. An entry is
// removed once the last waiter releases it, so the map doesn't grow
// without bound over the life of the process.
type Table struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewTable() *Table {
	return &Table{entries: make(map[string]*entry)}
}

// Lock acquires the mutex for key, creating it if necessary. The returned
// func must be called to release it.
func (t *Table) Lock(key string) func() {
	t.mu.Lock()
	e, ok := t.entries[key]
	if !ok {
		e = &entry{}
		t.entries[key] = e
	}
	e.waiters++
	t.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		t.mu.Lock()
		e.waiters--
		if e.waiters == 0 {
			delete(t.entries, key)
		}
		t.mu.Unlock()
	}
}
