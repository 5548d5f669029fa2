// Package kbin provides a high-level API for converting KBin binary XML
// buffers to and from trees, XML, JSON, YAML and CBOR.
//
// # Overview
//
// The package wraps the kbinxml codec and the tree document model:
//
//   - Decoding KBin buffers to tree documents
//   - Encoding documents back to byte-identical buffers
//   - XML, JSON, YAML and CBOR renditions
//   - Selecting elements with CEL predicates
//   - Context support and input size limits
//
// # Quick Start
//
// The simplest way to inspect a buffer is using the global functions:
//
//	xmlData, err := kbin.ToXML(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%s", xmlData)
//
//	// Edit the XML as needed, then convert back
//	newBinary, err := kbin.FromXML(xmlData)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Custom Codec Instance
//
// For more control, create a codec with specific options:
//
//	codec := kbin.NewCodec(
//	    kbin.WithCompression(kbinxml.Uncompressed),
//	    kbin.WithMaxInputSize(1<<20),
//	    kbin.WithDebugMode(true),
//	)
//
//	doc, err := codec.Decode(ctx, data)
//
// # Configuration Options
//
//   - WithLogger(*slog.Logger): Custom logging
//   - WithCompression(kbinxml.Compression): Force the output compression mode
//   - WithEncoding(kbinxml.Encoding): Force the output text encoding
//   - WithMaxInputSize(int): Reject larger input (default DefaultMaxInputSize)
//   - WithDebugMode(bool): Enable debug output
//
// # Selecting Elements
//
// Select evaluates a CEL predicate against every element in document order.
// The predicate sees the variables name, type_name, text, count, is_array, attrs,
// depth, path and children, plus the helpers values, to_i, to_f, length,
// substring and reverse:
//
//	scores, err := kbin.Select(data, `type_name == "s32" && to_i(text) > 100`)
//
// # Error Handling
//
// Codec failures wrap the sentinel errors of package kbinxml; match them
// with errors.Is:
//
//	if errors.Is(err, kbinxml.ErrMalformedHeader) {
//	    // not a KBin buffer
//	}
//
// # Thread Safety
//
// A Codec holds no per-call state. The global instance and the compiled
// predicate cache are safe for concurrent use.
package kbin
