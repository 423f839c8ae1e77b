package engine

import (
	"sync"

	"github.com/google/uuid"
)

// guildLock serializes writers of one guild. refs counts holders and waiters so the entry can
// be dropped once nobody uses it.
type guildLock struct {
	sync.RWMutex
	refs int
}

// lockTable hands out one guildLock per guild. Different guilds never share a lock.
type lockTable struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*guildLock
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[uuid.UUID]*guildLock)}
}

func (t *lockTable) acquire(id uuid.UUID) *guildLock {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.locks[id]
	if !ok {
		l = &guildLock{}
		t.locks[id] = l
	}

	l.refs++

	return l
}

func (t *lockTable) release(id uuid.UUID, l *guildLock) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(t.locks, id)
	}
}

// Lock takes the write lock of a guild and returns its release function.
func (t *lockTable) Lock(id uuid.UUID) func() {
	l := t.acquire(id)
	l.Lock()

	return func() {
		l.Unlock()
		t.release(id, l)
	}
}

// RLock takes the read lock of a guild and returns its release function.
func (t *lockTable) RLock(id uuid.UUID) func() {
	l := t.acquire(id)
	l.RLock()

	return func() {
		l.RUnlock()
		t.release(id, l)
	}
}

// Len returns the number of guilds with a lock held or awaited.
func (t *lockTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.locks)
}
