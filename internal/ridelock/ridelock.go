// Package ridelock serializes mutations per ride id. Two accepts racing
// on the same ride must never both read available_seats before either
// writes it; operations on different rides stay fully parallel.
package ridelock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Registry hands out one mutex per ride id. Entries are reference
// counted and dropped when the last holder unlocks, so the map does not
// grow with the number of rides ever seen.
type Registry struct {
	mu    sync.Mutex
	locks map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{locks: make(map[string]*entry)}
}

// Lock acquires the mutex for id and returns the matching unlock.
func (r *Registry) Lock(id string) (unlock func()) {
	r.mu.Lock()
	e, ok := r.locks[id]
	if !ok {
		e = &entry{}
		r.locks[id] = e
	}
	e.refs++
	r.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		r.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(r.locks, id)
		}
		r.mu.Unlock()
	}
}
