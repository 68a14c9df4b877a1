package ast

import (
	"sync"

	"fortio.org/safecast"
)

// Arena is an append-only store handing out stable 1-based indices.
// Existing entries are never replaced, so a pointer from Get stays valid
// for readers while other goroutines append.
type Arena[T any] struct {
	mu   sync.RWMutex
	data []*T
}

// NewArena creates an arena whose storage is preallocated for capHint items.
func NewArena[T any](capHint uint) *Arena[T] {
	return &Arena[T]{
		data: make([]*T, 0, capHint),
	}
}

// Allocate stores value and returns its 1-based index.
func (a *Arena[T]) Allocate(value T) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	v := value
	a.data = append(a.data, &v)
	n, err := safecast.Conv[uint32](len(a.data))
	if err != nil {
		panic(err)
	}
	return n
}

// Get returns the item at index, or nil for 0 and out-of-range indices.
func (a *Arena[T]) Get(index uint32) *T {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if index == 0 || int(index) > len(a.data) {
		return nil
	}
	return a.data[index-1]
}

// Len returns the number of allocated items.
func (a *Arena[T]) Len() uint32 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return uint32(len(a.data))
}
