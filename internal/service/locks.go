package service

import "sync"

// keyedMutex serializes mutations per entity id. Two near-simultaneous
// moves against one game (or appends against one chat) must not both read
// the same pre-mutation state, so each mutation holds its entity's lock
// across load, validate, persist and broadcast.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the lock for id and returns the unlock func.
func (k *keyedMutex) Lock(id string) func() {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &sync.Mutex{}
		k.locks[id] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
