package export

import "sync"

// bounded is a mutex-guarded accumulation buffer with a hard capacity.
// The policy is drop-new: once full, additions are refused and the
// caller counts the drop. Multiple producers append; the flush task
// drains.
type bounded[T any] struct {
	mu    sync.Mutex
	items []T
	max   int
}

func newBounded[T any](max int) *bounded[T] {
	return &bounded[T]{
		items: make([]T, 0, min(max, 64)),
		max:   max,
	}
}

// add appends item, reporting false when the buffer is full.
func (b *bounded[T]) add(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) >= b.max {
		return false
	}
	b.items = append(b.items, item)
	return true
}

// drain returns all buffered items and resets the buffer.
func (b *bounded[T]) drain() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return nil
	}
	out := b.items
	b.items = make([]T, 0, min(b.max, 64))
	return out
}

// size returns the current item count.
func (b *bounded[T]) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
