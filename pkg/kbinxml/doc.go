// Package kbinxml implements the KBin binary XML format.
//
// # Layout
//
// A KBin buffer starts with a four byte header (signature 0xA0, compression
// mode, text encoding and its bitwise complement) followed by two length
// prefixed blocks:
//
//   - the node block, a pre-order stream of tags and element/attribute names
//   - the data block, holding attribute values, text and typed payloads in
//     the order the node block references them
//
// All multi-byte numbers are big-endian.
//
// # Alignment
//
// Payloads of one or two bytes are packed into two lanes that trail the
// main data position so that runs of small scalars share 4 byte words.
// Larger payloads are written at the main position and realigned to the
// next 4 byte boundary. See Cursor.
//
// # Trees
//
// The codec does not own a tree type. Decode replays the document into a
// TreeBuilder and Encode walks a TreeReader, both generic over the caller's
// element handle. Package tree provides a ready implementation.
//
//	doc := tree.New()
//	if _, err := kbinxml.Decode(data, tree.NewBuilder(doc)); err != nil {
//	    return err
//	}
//	out, err := kbinxml.Encode[*tree.Element](doc)
package kbinxml
