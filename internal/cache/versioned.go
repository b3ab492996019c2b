package cache

import "sync"

// Versioned holds a value that is replaced wholesale and ordered by a
// monotonic sequence. A refresh takes a ticket with Begin before fetching
// and applies its result with Commit; the result is dropped if anything
// begun later (a newer refresh or a local Update) has already been applied.
//
// Values are shared with readers, so callers must treat them as immutable
// and build a new value in Update rather than mutating the old one.
type Versioned[T any] struct {
	mu      sync.RWMutex
	value   T
	seq     uint64
	applied uint64
}

// Begin issues a ticket for a refresh about to start.
func (v *Versioned[T]) Begin() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	return v.seq
}

// Commit stores value if ticket is newer than the applied one. It reports
// whether the value was stored.
func (v *Versioned[T]) Commit(ticket uint64, value T) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if ticket <= v.applied {
		return false
	}
	v.value = value
	v.applied = ticket
	return true
}

// Update applies a local patch immediately under a fresh ticket. Refreshes
// begun before the patch can no longer overwrite it.
func (v *Versioned[T]) Update(fn func(T) T) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	v.value = fn(v.value)
	v.applied = v.seq
	return v.seq
}

// Load returns the current value.
func (v *Versioned[T]) Load() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Version returns the ticket of the applied value; zero if none.
func (v *Versioned[T]) Version() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.applied
}
