package export

import (
	"sync/atomic"
)

// Buffer is an encoded query result owned by the caller.
// It must be released with Free exactly once.
type Buffer struct {
	data  []byte
	freed atomic.Bool
}

func newBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Bytes returns the encoded result. It returns nil after Free.
func (b *Buffer) Bytes() []byte {
	if b.freed.Load() {
		return nil
	}
	return b.data
}

// Len returns the encoded size in bytes
func (b *Buffer) Len() int {
	if b.freed.Load() {
		return 0
	}
	return len(b.data)
}

// Free releases the buffer. Freeing twice is a caller bug and panics.
func (b *Buffer) Free() {
	if b.freed.Swap(true) {
		panic("export: buffer freed twice")
	}
	b.data = nil
}

// Freed reports whether Free has been called
func (b *Buffer) Freed() bool { return b.freed.Load() }
