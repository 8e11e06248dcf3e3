package sessionlog

import "sync"

// Buffer is a fixed-size circular buffer safe for concurrent use. Once full,
// each Add overwrites the oldest value.
type Buffer[T any] struct {
	mu    sync.Mutex
	buf   []T
	next  int
	count int
}

// NewBuffer returns a Buffer holding up to capacity values (minimum 1).
func NewBuffer[T any](capacity int) *Buffer[T] {
	return &Buffer[T]{buf: make([]T, max(capacity, 1))}
}

// Add stores v, overwriting the oldest value when full.
func (b *Buffer[T]) Add(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf[b.next] = v
	b.next = (b.next + 1) % len(b.buf)
	if b.count < len(b.buf) {
		b.count++
	}
}

// Snapshot returns the stored values, oldest first.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]T, 0, b.count)
	start := (b.next - b.count + len(b.buf)) % len(b.buf)
	for i := range b.count {
		out = append(out, b.buf[(start+i)%len(b.buf)])
	}
	return out
}

// Newest returns up to limit values accepted by keep, newest first.
// A nil keep accepts everything.
func (b *Buffer[T]) Newest(limit int, keep func(T) bool) []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []T
	for i := 1; i <= b.count && len(out) < limit; i++ {
		v := b.buf[(b.next-i+len(b.buf))%len(b.buf)]
		if keep != nil && !keep(v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Len reports how many values are stored.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}
