package kbinxml

import (
	"bytes"
	"fmt"
	"io"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
	"github.com/twinfer/kbinxml/pkg/sixbit"
)

// Entry is one structural event of the node stream.
type Entry struct {
	Type    NodeType
	IsArray bool
	Name    string
}

func (e Entry) String() string {
	if e.IsArray {
		return fmt.Sprintf("%s[] %s", e.Type, e.Name)
	}
	return fmt.Sprintf("%s %s", e.Type, e.Name)
}

type nodeReader struct {
	stream *kaitai.Stream
	header Header
}

func newNodeReader(block []byte, h Header) *nodeReader {
	return &nodeReader{stream: kaitai.NewStream(bytes.NewReader(block)), header: h}
}

// Next returns the next entry, or io.EOF once the block is exhausted.
func (r *nodeReader) Next() (Entry, error) {
	eof, err := r.stream.EOF()
	if err != nil {
		return Entry{}, err
	}
	if eof {
		return Entry{}, io.EOF
	}

	tag, err := r.stream.ReadU1()
	if err != nil {
		return Entry{}, fmt.Errorf("%w: reading tag: %v", ErrUnexpectedEndOfInput, err)
	}
	t, isArray := splitTag(tag)
	e := Entry{Type: t, IsArray: isArray}
	if !t.hasName() {
		return e, nil
	}

	if r.header.Compression == Compressed {
		e.Name, err = sixbit.UnpackFrom(r.stream)
		if err != nil {
			return Entry{}, fmt.Errorf("reading name of %s entry: %w", t, err)
		}
		return e, nil
	}

	n, err := r.stream.ReadU1()
	if err != nil {
		return Entry{}, fmt.Errorf("%w: reading name length: %v", ErrUnexpectedEndOfInput, err)
	}
	raw, err := r.stream.ReadBytes(int(n))
	if err != nil {
		return Entry{}, fmt.Errorf("%w: reading name of %d bytes: %v", ErrUnexpectedEndOfInput, n, err)
	}
	if e.Name, err = r.header.Encoding.DecodeText(raw); err != nil {
		return Entry{}, fmt.Errorf("reading name of %s entry: %w", t, err)
	}
	return e, nil
}

type nodeWriter struct {
	buf    bytes.Buffer
	w      *kaitai.Writer
	header Header
}

func newNodeWriter(h Header) *nodeWriter {
	nw := &nodeWriter{header: h}
	nw.w = kaitai.NewWriter(&nw.buf)
	return nw
}

// WriteEntry appends a tag and, for named types, the encoded name.
func (w *nodeWriter) WriteEntry(t NodeType, isArray bool, name string) error {
	if err := w.w.WriteU1(joinTag(t, isArray)); err != nil {
		return err
	}
	if !t.hasName() {
		return nil
	}

	if w.header.Compression == Compressed {
		packed, err := sixbit.Pack(name)
		if err != nil {
			return fmt.Errorf("packing name %q: %w", name, err)
		}
		return w.w.WriteBytes(packed)
	}

	raw, err := w.header.Encoding.EncodeText(name)
	if err != nil {
		return fmt.Errorf("encoding name: %w", err)
	}
	if len(raw) > sixbit.MaxLength {
		return fmt.Errorf("%w: %q is %d bytes", ErrNameTooLong, name, len(raw))
	}
	if err := w.w.WriteU1(uint8(len(raw))); err != nil {
		return err
	}
	return w.w.WriteBytes(raw)
}

// Bytes returns the node block padded with zeros to a 4 byte boundary.
func (w *nodeWriter) Bytes() []byte {
	for w.buf.Len()%4 != 0 {
		w.buf.WriteByte(0)
	}
	return w.buf.Bytes()
}
