// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

package coordinator

import "sync"

// deckLocks serializes mutating operations per deck id, so a delete racing a
// save on the same deck cannot interleave its store and index calls.
// Entries are reference-counted and removed when the last holder releases.
type deckLocks struct {
	mu    sync.Mutex
	locks map[string]*deckLock
}

type deckLock struct {
	mu   sync.Mutex
	refs int
}

func newDeckLocks() *deckLocks {
	return &deckLocks{locks: map[string]*deckLock{}}
}

// acquire blocks until the lock for id is held and returns a release func.
func (d *deckLocks) acquire(id string) func() {
	d.mu.Lock()
	l, ok := d.locks[id]
	if !ok {
		l = &deckLock{}
		d.locks[id] = l
	}
	l.refs++
	d.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		d.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.locks, id)
		}
		d.mu.Unlock()
	}
}
