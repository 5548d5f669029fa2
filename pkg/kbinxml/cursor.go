package kbinxml

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/twinfer/kbinxml/internal/bytebuf"
)

// Cursor reads and writes the data block. One and two byte accesses are
// packed into lanes that trail the main position; everything else goes to
// the main position and is realigned to 4 bytes afterwards.
type Cursor struct {
	buf   *bytebuf.Buffer
	pos   int
	lane1 int
	lane2 int
}

// NewReadCursor returns a cursor over an existing data block.
func NewReadCursor(data []byte) *Cursor {
	return &Cursor{buf: bytebuf.From(data)}
}

// NewWriteCursor returns a cursor over an empty, growable data block.
func NewWriteCursor() *Cursor {
	return &Cursor{buf: bytebuf.New()}
}

// Pos returns the main position.
func (c *Cursor) Pos() int {
	return c.pos
}

func align4(n int) int {
	return (n + 3) &^ 3
}

// Realign moves the main position to the next 4 byte boundary.
func (c *Cursor) Realign() {
	c.pos = align4(c.pos)
}

// access runs op at the offset chosen for an access of size bytes and
// advances the positions.
func (c *Cursor) access(size int, op func(off int) error) error {
	if c.lane1%4 == 0 {
		c.lane1 = c.pos
	}
	if c.lane2%4 == 0 {
		c.lane2 = c.pos
	}
	saved := c.pos

	switch size {
	case 1:
		if err := op(c.lane1); err != nil {
			return err
		}
		c.lane1++
	case 2:
		if err := op(c.lane2); err != nil {
			return err
		}
		c.lane2 += 2
	default:
		if err := op(c.pos); err != nil {
			return err
		}
		c.pos = align4(c.pos + size)
		return nil
	}

	if trailing := max(c.lane1, c.lane2); saved < trailing {
		c.pos = align4(trailing)
	} else {
		c.pos = saved
	}
	return nil
}

// Read returns size bytes using the lane rules.
func (c *Cursor) Read(size int) ([]byte, error) {
	var out []byte
	err := c.access(size, func(off int) error {
		b, err := c.buf.Slice(off, size)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnexpectedEndOfInput, err)
		}
		out = b
		return nil
	})
	return out, err
}

// Write stores p using the lane rules for len(p).
func (c *Cursor) Write(p []byte) {
	_ = c.access(len(p), func(off int) error {
		c.buf.WriteAt(off, p)
		return nil
	})
}

// ReadU32 reads a big-endian length or value from the main position.
func (c *Cursor) ReadU32() (uint32, error) {
	b, err := c.Read(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// WriteU32 writes a big-endian u32 at the main position.
func (c *Cursor) WriteU32(v uint32) {
	c.Write(binary.BigEndian.AppendUint32(nil, v))
}

// ReadBinary reads a length-prefixed blob.
func (c *Cursor) ReadBinary() ([]byte, error) {
	n, err := c.ReadU32()
	if err != nil {
		return nil, err
	}
	if int64(n) > int64(c.buf.Len()-c.pos) {
		return nil, fmt.Errorf("%w: blob of %d bytes at offset %d exceeds data block of %d bytes", ErrUnexpectedEndOfInput, n, c.pos, c.buf.Len())
	}
	b, err := c.bulk(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// WriteBinary writes a length-prefixed blob.
func (c *Cursor) WriteBinary(p []byte) {
	c.WriteU32(uint32(len(p)))
	c.writeBulk(p)
}

// ReadString reads a length-prefixed, NUL terminated string in enc.
func (c *Cursor) ReadString(enc Encoding) (string, error) {
	raw, err := c.ReadBinary()
	if err != nil {
		return "", err
	}
	s, err := enc.DecodeText(raw)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(s, "\x00"), nil
}

// WriteString writes s in enc with a NUL terminator counted in the length.
func (c *Cursor) WriteString(s string, enc Encoding) error {
	raw, err := enc.EncodeText(s)
	if err != nil {
		return err
	}
	c.WriteBinary(append(raw, 0))
	return nil
}

// bulk reads n bytes at the main position regardless of n, then realigns.
// Variable length payloads always take this path, even when n is 1 or 2.
func (c *Cursor) bulk(n int) ([]byte, error) {
	b, err := c.buf.Slice(c.pos, n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedEndOfInput, err)
	}
	c.pos = align4(c.pos + n)
	return b, nil
}

func (c *Cursor) writeBulk(p []byte) {
	c.buf.WriteAt(c.pos, p)
	c.pos = align4(c.pos + len(p))
}

// Bytes returns the written block padded with zeros to a 4 byte boundary.
func (c *Cursor) Bytes() []byte {
	c.buf.Grow(align4(c.buf.Len()))
	return c.buf.Bytes()
}
