package kbinxml

import (
	"bytes"
	"fmt"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
)

// Signature is the first byte of every KBin buffer.
const Signature byte = 0xA0

// headerSize covers the signature, compression, encoding, check byte and the
// node block length.
const headerSize = 8

// Compression selects how node names are stored.
type Compression byte

const (
	Compressed   Compression = 0x42
	Uncompressed Compression = 0x45
)

func (c Compression) String() string {
	switch c {
	case Compressed:
		return "compressed"
	case Uncompressed:
		return "uncompressed"
	}
	return fmt.Sprintf("Compression(0x%02X)", byte(c))
}

// Valid reports whether c is a known compression mode.
func (c Compression) Valid() bool {
	return c == Compressed || c == Uncompressed
}

// ParseCompression maps a config string to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "compressed", "":
		return Compressed, nil
	case "uncompressed":
		return Uncompressed, nil
	}
	return 0, fmt.Errorf("unknown compression %q", s)
}

// Header holds the per-document settings carried in the first four bytes.
type Header struct {
	Compression Compression
	Encoding    Encoding
}

// IsKBin reports whether data starts like a KBin buffer.
func IsKBin(data []byte) bool {
	return len(data) >= headerSize && data[0] == Signature && data[3] == ^data[2]
}

// parseHeader validates the header and splits data into the node and data
// blocks. Block lengths are checked against len(data) before reading.
func parseHeader(data []byte) (Header, []byte, []byte, error) {
	var h Header
	stream := kaitai.NewStream(bytes.NewReader(data))

	fields := make([]uint8, 4)
	for i := range fields {
		v, err := stream.ReadU1()
		if err != nil {
			return h, nil, nil, fmt.Errorf("%w: reading byte %d: %v", ErrMalformedHeader, i, err)
		}
		fields[i] = v
	}

	if fields[0] != Signature {
		return h, nil, nil, fmt.Errorf("%w: signature 0x%02X, want 0x%02X", ErrMalformedHeader, fields[0], Signature)
	}
	h.Compression = Compression(fields[1])
	if !h.Compression.Valid() {
		return h, nil, nil, fmt.Errorf("%w: unknown compression 0x%02X", ErrMalformedHeader, fields[1])
	}
	h.Encoding = Encoding(fields[2])
	if fields[3] != ^fields[2] {
		return h, nil, nil, fmt.Errorf("%w: encoding check 0x%02X does not match encoding 0x%02X", ErrMalformedHeader, fields[3], fields[2])
	}
	if !h.Encoding.Valid() {
		return h, nil, nil, fmt.Errorf("%w: unknown encoding 0x%02X", ErrMalformedHeader, fields[2])
	}

	nodes, err := readBlock(stream, "node", len(data))
	if err != nil {
		return h, nil, nil, err
	}
	dataBlock, err := readBlock(stream, "data", len(data))
	if err != nil {
		return h, nil, nil, err
	}
	return h, nodes, dataBlock, nil
}

func readBlock(stream *kaitai.Stream, name string, total int) ([]byte, error) {
	n, err := stream.ReadU4be()
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s block length: %v", ErrMalformedHeader, name, err)
	}
	pos, err := stream.Pos()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	if int64(n) > int64(total)-pos {
		return nil, fmt.Errorf("%w: %s block of %d bytes truncated, %d bytes remain", ErrMalformedHeader, name, n, int64(total)-pos)
	}
	block, err := stream.ReadBytes(int(n))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s block: %v", ErrMalformedHeader, name, err)
	}
	return block, nil
}

// assemble writes the header and both length-prefixed blocks.
func assemble(h Header, nodes, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(headerSize + len(nodes) + 4 + len(data))
	w := kaitai.NewWriter(&buf)

	for _, b := range []byte{Signature, byte(h.Compression), byte(h.Encoding), ^byte(h.Encoding)} {
		if err := w.WriteU1(b); err != nil {
			return nil, err
		}
	}
	for _, block := range [][]byte{nodes, data} {
		if err := w.WriteU4be(uint32(len(block))); err != nil {
			return nil, err
		}
		if err := w.WriteBytes(block); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
