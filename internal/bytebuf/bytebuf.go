// Package bytebuf provides a growable byte buffer addressed by absolute
// offsets. Writes past the end extend the buffer with zero bytes.
package bytebuf

import "fmt"

// Buffer is a random-access byte buffer.
type Buffer struct {
	b []byte
}

// New returns an empty buffer.
func New() *Buffer {
	return &Buffer{}
}

// From wraps data without copying it.
func From(data []byte) *Buffer {
	return &Buffer{b: data}
}

// Len returns the number of bytes written or wrapped.
func (b *Buffer) Len() int {
	return len(b.b)
}

// Bytes returns the underlying bytes.
func (b *Buffer) Bytes() []byte {
	return b.b
}

// Slice returns n bytes starting at off.
func (b *Buffer) Slice(off, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+n > len(b.b) {
		return nil, fmt.Errorf("read of %d bytes at offset %d exceeds buffer of %d bytes", n, off, len(b.b))
	}
	return b.b[off : off+n], nil
}

// WriteAt copies p into the buffer at off, growing it as needed.
func (b *Buffer) WriteAt(off int, p []byte) {
	b.Grow(off + len(p))
	copy(b.b[off:], p)
}

// Grow extends the buffer with zero bytes until it is at least n bytes long.
func (b *Buffer) Grow(n int) {
	if n <= len(b.b) {
		return
	}
	if n <= cap(b.b) {
		tail := b.b[len(b.b):n]
		clear(tail)
		b.b = b.b[:n]
		return
	}
	grown := make([]byte, n, max(n, 2*cap(b.b)))
	copy(grown, b.b)
	b.b = grown
}
