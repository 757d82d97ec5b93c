// Package syncx provides small generic synchronization helpers.
package syncx

import "sync"

// Guard protects a value with an RWMutex and exposes scoped access.
type Guard[T any] struct {
	mu    sync.RWMutex
	value T
}

// NewGuard creates a guarded value.
func NewGuard[T any](initial T) *Guard[T] {
	return &Guard[T]{value: initial}
}

// View runs fn under the read lock. fn must not retain references into the value.
func (g *Guard[T]) View(fn func(T)) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fn(g.value)
}

// Update runs fn under the write lock.
func (g *Guard[T]) Update(fn func(*T)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(&g.value)
}

// Get returns a copy of the value.
func (g *Guard[T]) Get() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value
}

// Set replaces the value.
func (g *Guard[T]) Set(v T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = v
}

// Swap replaces the value and returns the previous one in a single critical section.
func (g *Guard[T]) Swap(v T) T {
	g.mu.Lock()
	defer g.mu.Unlock()
	old := g.value
	g.value = v
	return old
}

// Append adds items to a guarded slice and returns the new length.
func Append[E any](g *Guard[[]E], items ...E) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = append(g.value, items...)
	return len(g.value)
}

// Len returns the length of a guarded slice.
func Len[E any](g *Guard[[]E]) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.value)
}

// Drain takes every element out of a guarded slice, leaving it empty.
// Appends that race with Drain land either in the result or in the fresh slice, never both.
func Drain[E any](g *Guard[[]E]) []E {
	return g.Swap(nil)
}

// Snapshot returns a copy of a guarded slice.
func Snapshot[E any](g *Guard[[]E]) []E {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]E(nil), g.value...)
}
