// Package kvstore provides the small concurrent key-value abstraction shared
// state is kept in. Readers run concurrently, writers are exclusive and only
// hold the lock for the in-memory mutation.
package kvstore

import "sync"

// Map is the narrow read/write interface handed to the components that share
// state across event handlers.
type Map[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V)
	Delete(key K)

	// Update atomically replaces the value for key with the result of fn.
	// fn receives the current value and whether it existed, and returns the
	// new value and whether to keep it (false deletes the key).
	Update(key K, fn func(current V, ok bool) (V, bool)) V

	Len() int
}

type rwMap[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

var _ Map[int64, struct{}] = (*rwMap[int64, struct{}])(nil)

func New[K comparable, V any]() Map[K, V] {
	return &rwMap[K, V]{
		m: make(map[K]V),
	}
}

func (r *rwMap[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	v, ok := r.m[key]
	r.mu.RUnlock()
	return v, ok
}

func (r *rwMap[K, V]) Set(key K, value V) {
	r.mu.Lock()
	r.m[key] = value
	r.mu.Unlock()
}

func (r *rwMap[K, V]) Delete(key K) {
	r.mu.Lock()
	delete(r.m, key)
	r.mu.Unlock()
}

func (r *rwMap[K, V]) Update(key K, fn func(current V, ok bool) (V, bool)) V {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.m[key]
	next, keep := fn(current, ok)
	if keep {
		r.m[key] = next
	} else {
		delete(r.m, key)
	}

	return next
}

func (r *rwMap[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}
