package kbinxml

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

type decoder[E any] struct {
	header  Header
	nodes   *nodeReader
	data    *Cursor
	builder TreeBuilder[E]
	stack   []E
	logger  *slog.Logger
}

// Decode parses a KBin buffer and replays its structure into b. On error
// the builder may hold a partial tree and must be discarded.
func Decode[E any](data []byte, b TreeBuilder[E], opts ...Option) (Header, error) {
	o := buildOptions(opts)
	if o.maxInputSize > 0 && len(data) > o.maxInputSize {
		return Header{}, fmt.Errorf("%w: %d bytes, limit %d", ErrInputTooLarge, len(data), o.maxInputSize)
	}

	h, nodeBlock, dataBlock, err := parseHeader(data)
	if err != nil {
		return Header{}, err
	}
	o.logger.Debug("parsed kbin header",
		"compression", h.Compression,
		"encoding", h.Encoding,
		"node_block", len(nodeBlock),
		"data_block", len(dataBlock))

	d := &decoder[E]{
		header:  h,
		nodes:   newNodeReader(nodeBlock, h),
		data:    NewReadCursor(dataBlock),
		builder: b,
		logger:  o.logger,
	}
	if err := d.run(); err != nil {
		return Header{}, err
	}
	return h, nil
}

func (d *decoder[E]) current() (E, bool) {
	if len(d.stack) == 0 {
		var zero E
		return zero, false
	}
	return d.stack[len(d.stack)-1], true
}

func (d *decoder[E]) run() error {
	for entries := 0; ; entries++ {
		e, err := d.nodes.Next()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: node stream ended without file end after %d entries", ErrStructural, entries)
		}
		if err != nil {
			return err
		}

		cur, ok := d.current()
		switch e.Type {
		case FileEnd:
			if !ok {
				return fmt.Errorf("%w: file end with no root element", ErrStructural)
			}
			if len(d.stack) > 1 {
				return fmt.Errorf("%w: file end with %d unclosed elements", ErrStructural, len(d.stack)-1)
			}
			d.builder.Finalize(cur, d.header)
			d.logger.Debug("decoded kbin document", "entries", entries+1, "data_read", d.data.Pos())
			return nil

		case NodeEnd:
			if !ok {
				return fmt.Errorf("%w: node end with no open element", ErrStructural)
			}
			if len(d.stack) > 1 {
				d.stack = d.stack[:len(d.stack)-1]
			}

		case AttributeNode:
			if !ok {
				return fmt.Errorf("%w: attribute %q with no open element", ErrStructural, e.Name)
			}
			value, err := d.data.ReadString(d.header.Encoding)
			if err != nil {
				return fmt.Errorf("reading attribute %q: %w", e.Name, err)
			}
			d.builder.SetAttribute(cur, e.Name, value)

		case NodeStart:
			d.push(e.Name)

		default:
			if err := d.leaf(e); err != nil {
				return err
			}
		}
	}
}

// push creates an element as a child of the current one and makes it current.
func (d *decoder[E]) push(name string) E {
	elem := d.builder.CreateElement(name)
	if parent, ok := d.current(); ok {
		d.builder.AppendChild(parent, elem)
	}
	d.stack = append(d.stack, elem)
	return elem
}

func (d *decoder[E]) leaf(e Entry) error {
	var desc *TypeDescriptor
	if e.Type != String && e.Type != Binary {
		var ok bool
		if desc, ok = Lookup(e.Type); !ok {
			return fmt.Errorf("%w: tag %d on node %q", ErrUnknownType, byte(e.Type), e.Name)
		}
	}

	elem := d.push(e.Name)
	d.builder.SetTypeName(elem, e.Type.String())

	switch e.Type {
	case String:
		text, err := d.data.ReadString(d.header.Encoding)
		if err != nil {
			return fmt.Errorf("reading string node %q: %w", e.Name, err)
		}
		d.builder.SetText(elem, text)
		return nil

	case Binary:
		raw, err := d.data.ReadBinary()
		if err != nil {
			return fmt.Errorf("reading binary node %q: %w", e.Name, err)
		}
		d.builder.SetText(elem, strings.ToUpper(hex.EncodeToString(raw)))
		return nil
	}

	count := 1
	if e.IsArray {
		size, err := d.data.ReadU32()
		if err != nil {
			return fmt.Errorf("reading array length of %q: %w", e.Name, err)
		}
		if int(size)%desc.Stride() != 0 {
			return fmt.Errorf("%w: array %q of %d bytes is not a multiple of %s stride %d", ErrMalformedScalar, e.Name, size, desc.Name, desc.Stride())
		}
		count = int(size) / desc.Stride()
	}

	text, err := desc.Decode(d.data, count)
	if err != nil {
		return fmt.Errorf("decoding node %q: %w", e.Name, err)
	}
	d.builder.SetText(elem, text)
	if e.IsArray {
		d.builder.SetElementCount(elem, count)
	}
	d.data.Realign()
	return nil
}
