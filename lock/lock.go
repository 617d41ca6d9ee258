// Package lock serialises work per key (one syncback executor per account)
// with weighted semaphores.
package lock

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrNotHeld is returned when releasing a key that is not locked.
var ErrNotHeld = errors.New("go-mailsync: lock not held")

type entry struct {
	sem  *semaphore.Weighted
	refs int
	held bool
}

// Manager hands out exclusive per-key locks. Entries are dropped once no
// caller holds or waits for them.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{entries: make(map[string]*entry)}
}

// Acquire blocks until key is free or ctx is done.
func (m *Manager) Acquire(ctx context.Context, key string) error {
	e := m.ref(key)
	if err := e.sem.Acquire(ctx, 1); err != nil {
		m.unref(key, e)
		return err
	}
	m.mu.Lock()
	e.held = true
	m.mu.Unlock()
	return nil
}

// TryAcquire takes key without blocking and reports whether it succeeded.
func (m *Manager) TryAcquire(key string) bool {
	e := m.ref(key)
	if !e.sem.TryAcquire(1) {
		m.unref(key, e)
		return false
	}
	m.mu.Lock()
	e.held = true
	m.mu.Unlock()
	return true
}

// Release frees key.
func (m *Manager) Release(key string) error {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok || !e.held {
		m.mu.Unlock()
		return ErrNotHeld
	}
	e.held = false
	m.mu.Unlock()

	e.sem.Release(1)
	m.unref(key, e)
	return nil
}

// Held reports whether key is currently locked.
func (m *Manager) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return ok && e.held
}

// Len returns the number of tracked keys.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Manager) ref(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		m.entries[key] = e
	}
	e.refs++
	return e
}

func (m *Manager) unref(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs <= 0 {
		delete(m.entries, key)
	}
}
