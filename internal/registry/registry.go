// Package registry holds per-user state behind one lock per user.
//
// The map lock is only held while an entry is looked up or created; all work
// on a user's value happens under that user's own mutex, so unrelated users
// never serialize on each other.
package registry

import (
	"sort"
	"sync"
)

type entry[T any] struct {
	mu  sync.Mutex
	val T
}

// Registry maps opaque user ids to a value of type T
type Registry[T any] struct {
	mu      sync.RWMutex
	entries map[string]*entry[T]
	init    func() T
}

// New creates a registry; init builds the zero state for a user seen for the first time
func New[T any](init func() T) *Registry[T] {
	if init == nil {
		init = func() T {
			var zero T
			return zero
		}
	}
	return &Registry[T]{
		entries: make(map[string]*entry[T]),
		init:    init,
	}
}

func (r *Registry[T]) get(user string, create bool) *entry[T] {
	r.mu.RLock()
	e, ok := r.entries[user]
	r.mu.RUnlock()
	if ok || !create {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if e, ok := r.entries[user]; ok {
		return e
	}
	e = &entry[T]{val: r.init()}
	r.entries[user] = e
	return e
}

// With runs fn with exclusive access to the user's value, creating it if needed
func (r *Registry[T]) With(user string, fn func(v *T)) {
	e := r.get(user, true)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.val)
}

// Peek runs fn only if the user already has a value. Returns false otherwise.
func (r *Registry[T]) Peek(user string, fn func(v *T)) bool {
	e := r.get(user, false)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.val)
	return true
}

// Has reports whether the user has been seen
func (r *Registry[T]) Has(user string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[user]
	return ok
}

// Users returns all known user ids in sorted order
func (r *Registry[T]) Users() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.entries))
	for id := range r.entries {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

// Len returns the number of known users
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
