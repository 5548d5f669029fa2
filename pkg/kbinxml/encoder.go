package kbinxml

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
)

// Reserved attribute names used by XML renditions to carry node metadata.
const (
	TypeAttr  = "__type"
	CountAttr = "__count"
)

type encoder[E any] struct {
	header Header
	tree   TreeReader[E]
	nodes  *nodeWriter
	data   *Cursor
	logger *slog.Logger
}

// Encode walks the tree depth first and returns the KBin buffer.
func Encode[E any](r TreeReader[E], opts ...Option) ([]byte, error) {
	o := buildOptions(opts)

	h := Header{Compression: r.DeclaredCompression(), Encoding: r.DeclaredEncoding()}
	if o.compression != 0 {
		h.Compression = o.compression
	}
	if o.encoding != 0 {
		h.Encoding = o.encoding
	}
	if h.Compression == 0 {
		h.Compression = Compressed
	}
	if h.Encoding == 0 {
		h.Encoding = EncodingUTF8
	}
	if !h.Compression.Valid() {
		return nil, fmt.Errorf("unknown compression %s", h.Compression)
	}
	if !h.Encoding.Valid() {
		return nil, fmt.Errorf("%w: unknown encoding %s", ErrTextEncoding, h.Encoding)
	}

	enc := &encoder[E]{
		header: h,
		tree:   r,
		nodes:  newNodeWriter(h),
		data:   NewWriteCursor(),
		logger: o.logger,
	}
	if err := enc.element(r.Root()); err != nil {
		return nil, err
	}
	if err := enc.nodes.WriteEntry(FileEnd, true, ""); err != nil {
		return nil, err
	}

	nodeBlock, dataBlock := enc.nodes.Bytes(), enc.data.Bytes()
	out, err := assemble(h, nodeBlock, dataBlock)
	if err != nil {
		return nil, fmt.Errorf("assembling output: %w", err)
	}
	o.logger.Debug("encoded kbin document",
		"compression", h.Compression,
		"encoding", h.Encoding,
		"node_block", len(nodeBlock),
		"data_block", len(dataBlock))
	return out, nil
}

func (enc *encoder[E]) element(elem E) error {
	name := enc.tree.Name(elem)

	t, isArray := NodeStart, false
	count, hasCount := 0, false
	if typeName, ok := enc.tree.TypeName(elem); ok {
		if t, ok = LookupName(typeName); !ok {
			return fmt.Errorf("%w: %q on node %q", ErrUnknownTypeName, typeName, name)
		}
		count, hasCount = enc.tree.ElementCount(elem)
		isArray = hasCount
	}

	if err := enc.nodes.WriteEntry(t, isArray, name); err != nil {
		return fmt.Errorf("writing node %q: %w", name, err)
	}
	if err := enc.payload(elem, name, t, count, isArray); err != nil {
		return err
	}

	for _, attr := range enc.tree.Attributes(elem) {
		if err := enc.nodes.WriteEntry(AttributeNode, false, attr.Name); err != nil {
			return fmt.Errorf("writing attribute %q of %q: %w", attr.Name, name, err)
		}
		if err := enc.data.WriteString(attr.Value, enc.header.Encoding); err != nil {
			return fmt.Errorf("writing attribute %q of %q: %w", attr.Name, name, err)
		}
	}

	for _, child := range enc.tree.Children(elem) {
		if err := enc.element(child); err != nil {
			return err
		}
	}

	// end markers carry the array bit on the wire
	return enc.nodes.WriteEntry(NodeEnd, true, "")
}

func (enc *encoder[E]) payload(elem E, name string, t NodeType, count int, isArray bool) error {
	switch t {
	case NodeStart:
		return nil

	case String:
		if err := enc.data.WriteString(enc.tree.Text(elem), enc.header.Encoding); err != nil {
			return fmt.Errorf("writing string node %q: %w", name, err)
		}
		return nil

	case Binary:
		raw, err := hex.DecodeString(strings.TrimSpace(enc.tree.Text(elem)))
		if err != nil {
			return fmt.Errorf("%w: binary node %q: %v", ErrMalformedScalar, name, err)
		}
		enc.data.WriteBinary(raw)
		return nil
	}

	desc, ok := Lookup(t)
	if !ok {
		return fmt.Errorf("%w: %s on node %q", ErrUnknownType, t, name)
	}
	raw, n, err := desc.Parse(enc.tree.Text(elem))
	if err != nil {
		return fmt.Errorf("node %q: %w", name, err)
	}

	if isArray {
		if count < 0 || n != count {
			return fmt.Errorf("%w: node %q declares %d elements, text holds %d", ErrMalformedScalar, name, count, n)
		}
		enc.data.WriteU32(uint32(count * desc.Stride()))
	} else if n != 1 {
		return fmt.Errorf("%w: scalar node %q holds %d elements", ErrMalformedScalar, name, n)
	}

	enc.data.Write(raw)
	enc.data.Realign()
	return nil
}
