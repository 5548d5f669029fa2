package kbin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fxamacker/cbor/v2"
	celpool "github.com/twinfer/kbinxml/internal/cel"
	"github.com/twinfer/kbinxml/pkg/kbinxml"
	"github.com/twinfer/kbinxml/pkg/tree"
	"gopkg.in/yaml.v3"
)

// DefaultMaxInputSize bounds decode input unless WithMaxInputSize says otherwise.
const DefaultMaxInputSize = 64 << 20

// Codec converts between KBin buffers, trees and their text renditions
type Codec struct {
	logger  *slog.Logger
	options options

	poolOnce sync.Once
	pool     *celpool.ExpressionPool
	poolErr  error
}

// options holds configuration for the codec
type options struct {
	logger       *slog.Logger
	compression  kbinxml.Compression
	encoding     kbinxml.Encoding
	maxInputSize int
	debugMode    bool
}

// Option is a function that configures codec options
type Option func(*options)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCompression forces the compression mode of encoded output
func WithCompression(c kbinxml.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithEncoding forces the text encoding of encoded output
func WithEncoding(e kbinxml.Encoding) Option {
	return func(o *options) {
		o.encoding = e
	}
}

// WithMaxInputSize rejects larger decode input (0 disables the limit)
func WithMaxInputSize(n int) Option {
	return func(o *options) {
		o.maxInputSize = n
	}
}

// WithDebugMode enables debug logging
func WithDebugMode(enabled bool) Option {
	return func(o *options) {
		o.debugMode = enabled
	}
}

// defaultOptions returns the default configuration
func defaultOptions() options {
	return options{
		logger:       slog.Default(),
		maxInputSize: DefaultMaxInputSize,
		debugMode:    false,
	}
}

// Global codec instance for convenience functions
var globalCodec *Codec
var globalCodecOnce sync.Once

// getGlobalCodec returns a singleton codec instance
func getGlobalCodec() *Codec {
	globalCodecOnce.Do(func() {
		globalCodec = NewCodec()
	})
	return globalCodec
}

// NewCodec creates a new codec instance with the given options
func NewCodec(opts ...Option) *Codec {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.debugMode {
		options.logger = options.logger.With("debug", true)
	}

	return &Codec{
		logger:  options.logger,
		options: options,
	}
}

func (c *Codec) apply(opts []Option) options {
	options := c.options
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// kbinOptions translates codec options to codec core options
func (o options) kbinOptions() []kbinxml.Option {
	out := []kbinxml.Option{kbinxml.WithLogger(o.logger), kbinxml.WithMaxInputSize(o.maxInputSize)}
	if o.compression != 0 {
		out = append(out, kbinxml.WithCompression(o.compression))
	}
	if o.encoding != 0 {
		out = append(out, kbinxml.WithEncoding(o.encoding))
	}
	return out
}

// Decode parses a KBin buffer into a document
func Decode(data []byte, opts ...Option) (*tree.Document, error) {
	return getGlobalCodec().Decode(context.Background(), data, opts...)
}

// DecodeWithContext parses a KBin buffer into a document with a context
func DecodeWithContext(ctx context.Context, data []byte, opts ...Option) (*tree.Document, error) {
	return getGlobalCodec().Decode(ctx, data, opts...)
}

// Encode serializes a document to a KBin buffer
func Encode(doc *tree.Document, opts ...Option) ([]byte, error) {
	return getGlobalCodec().Encode(context.Background(), doc, opts...)
}

// EncodeWithContext serializes a document to a KBin buffer with a context
func EncodeWithContext(ctx context.Context, doc *tree.Document, opts ...Option) ([]byte, error) {
	return getGlobalCodec().Encode(ctx, doc, opts...)
}

// ToXML converts a KBin buffer to XML text
func ToXML(data []byte, opts ...Option) ([]byte, error) {
	return getGlobalCodec().ToXML(context.Background(), data, opts...)
}

// ToXMLWithContext converts a KBin buffer to XML text with a context
func ToXMLWithContext(ctx context.Context, data []byte, opts ...Option) ([]byte, error) {
	return getGlobalCodec().ToXML(ctx, data, opts...)
}

// FromXML converts XML text to a KBin buffer
func FromXML(xmlData []byte, opts ...Option) ([]byte, error) {
	return getGlobalCodec().FromXML(context.Background(), xmlData, opts...)
}

// FromXMLWithContext converts XML text to a KBin buffer with a context
func FromXMLWithContext(ctx context.Context, xmlData []byte, opts ...Option) ([]byte, error) {
	return getGlobalCodec().FromXML(ctx, xmlData, opts...)
}

// ToJSON converts a KBin buffer to JSON
func ToJSON(data []byte, opts ...Option) ([]byte, error) {
	return getGlobalCodec().ToJSON(context.Background(), data, opts...)
}

// ToJSONWithContext converts a KBin buffer to JSON with a context
func ToJSONWithContext(ctx context.Context, data []byte, opts ...Option) ([]byte, error) {
	return getGlobalCodec().ToJSON(ctx, data, opts...)
}

// FromJSON converts JSON back to a KBin buffer
func FromJSON(jsonData []byte, opts ...Option) ([]byte, error) {
	return getGlobalCodec().FromJSON(context.Background(), jsonData, opts...)
}

// FromJSONWithContext converts JSON back to a KBin buffer with a context
func FromJSONWithContext(ctx context.Context, jsonData []byte, opts ...Option) ([]byte, error) {
	return getGlobalCodec().FromJSON(ctx, jsonData, opts...)
}

// ToYAML converts a KBin buffer to YAML
func ToYAML(data []byte, opts ...Option) ([]byte, error) {
	return getGlobalCodec().ToYAML(context.Background(), data, opts...)
}

// FromYAML converts YAML back to a KBin buffer
func FromYAML(yamlData []byte, opts ...Option) ([]byte, error) {
	return getGlobalCodec().FromYAML(context.Background(), yamlData, opts...)
}

// ToCBOR converts a KBin buffer to CBOR
func ToCBOR(data []byte, opts ...Option) ([]byte, error) {
	return getGlobalCodec().ToCBOR(context.Background(), data, opts...)
}

// FromCBOR converts CBOR back to a KBin buffer
func FromCBOR(cborData []byte, opts ...Option) ([]byte, error) {
	return getGlobalCodec().FromCBOR(context.Background(), cborData, opts...)
}

// Select decodes a KBin buffer and returns the elements matching a CEL predicate
func Select(data []byte, expr string, opts ...Option) ([]*tree.Element, error) {
	return getGlobalCodec().Select(context.Background(), data, expr, opts...)
}

// SelectWithContext decodes a KBin buffer and returns matching elements with a context
func SelectWithContext(ctx context.Context, data []byte, expr string, opts ...Option) ([]*tree.Element, error) {
	return getGlobalCodec().Select(ctx, data, expr, opts...)
}

// Validate checks that data is a well-formed KBin buffer
func Validate(data []byte, opts ...Option) error {
	_, err := getGlobalCodec().Decode(context.Background(), data, opts...)
	return err
}

// Decode parses a KBin buffer into a document
func (c *Codec) Decode(ctx context.Context, data []byte, opts ...Option) (*tree.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	options := c.apply(opts)

	doc, err := tree.Decode(data, options.kbinOptions()...)
	if err != nil {
		return nil, fmt.Errorf("decoding kbin: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Encode serializes a document to a KBin buffer
func (c *Codec) Encode(ctx context.Context, doc *tree.Document, opts ...Option) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, tree.ErrNoRoot
	}
	options := c.apply(opts)

	out, err := doc.Encode(options.kbinOptions()...)
	if err != nil {
		return nil, fmt.Errorf("encoding kbin: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ToXML converts a KBin buffer to XML text
func (c *Codec) ToXML(ctx context.Context, data []byte, opts ...Option) ([]byte, error) {
	doc, err := c.Decode(ctx, data, opts...)
	if err != nil {
		return nil, err
	}
	out, err := doc.XML()
	if err != nil {
		return nil, fmt.Errorf("writing XML: %w", err)
	}
	return out, nil
}

// FromXML converts XML text to a KBin buffer
func (c *Codec) FromXML(ctx context.Context, xmlData []byte, opts ...Option) ([]byte, error) {
	doc, err := tree.ParseXML(bytes.NewReader(xmlData))
	if err != nil {
		return nil, fmt.Errorf("reading XML: %w", err)
	}
	return c.Encode(ctx, doc, opts...)
}

// ToJSON converts a KBin buffer to indented JSON
func (c *Codec) ToJSON(ctx context.Context, data []byte, opts ...Option) ([]byte, error) {
	doc, err := c.Decode(ctx, data, opts...)
	if err != nil {
		return nil, err
	}
	jsonData, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling to JSON: %w", err)
	}
	return jsonData, nil
}

// FromJSON converts JSON back to a KBin buffer
func (c *Codec) FromJSON(ctx context.Context, jsonData []byte, opts ...Option) ([]byte, error) {
	doc := tree.New()
	if err := json.Unmarshal(jsonData, doc); err != nil {
		return nil, fmt.Errorf("unmarshaling JSON: %w", err)
	}
	return c.Encode(ctx, doc, opts...)
}

// ToYAML converts a KBin buffer to YAML
func (c *Codec) ToYAML(ctx context.Context, data []byte, opts ...Option) ([]byte, error) {
	doc, err := c.Decode(ctx, data, opts...)
	if err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshaling to YAML: %w", err)
	}
	return out, nil
}

// FromYAML converts YAML back to a KBin buffer
func (c *Codec) FromYAML(ctx context.Context, yamlData []byte, opts ...Option) ([]byte, error) {
	doc := tree.New()
	if err := yaml.Unmarshal(yamlData, doc); err != nil {
		return nil, fmt.Errorf("unmarshaling YAML: %w", err)
	}
	return c.Encode(ctx, doc, opts...)
}

// ToCBOR converts a KBin buffer to CBOR
func (c *Codec) ToCBOR(ctx context.Context, data []byte, opts ...Option) ([]byte, error) {
	doc, err := c.Decode(ctx, data, opts...)
	if err != nil {
		return nil, err
	}
	out, err := doc.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("marshaling to CBOR: %w", err)
	}
	return out, nil
}

// FromCBOR converts CBOR back to a KBin buffer
func (c *Codec) FromCBOR(ctx context.Context, cborData []byte, opts ...Option) ([]byte, error) {
	doc := tree.New()
	if err := cbor.Unmarshal(cborData, doc); err != nil {
		return nil, fmt.Errorf("unmarshaling CBOR: %w", err)
	}
	return c.Encode(ctx, doc, opts...)
}

// Select decodes a KBin buffer and returns the elements matching a CEL predicate
func (c *Codec) Select(ctx context.Context, data []byte, expr string, opts ...Option) ([]*tree.Element, error) {
	doc, err := c.Decode(ctx, data, opts...)
	if err != nil {
		return nil, err
	}
	return c.SelectDocument(ctx, doc, expr)
}

// SelectDocument returns the elements of doc matching a CEL predicate, in
// document order. The predicate sees name, type_name, text, count, is_array,
// attrs, depth, path and children.
func (c *Codec) SelectDocument(ctx context.Context, doc *tree.Document, expr string) ([]*tree.Element, error) {
	pool, err := c.expressionPool()
	if err != nil {
		return nil, err
	}
	program, err := pool.GetPredicate(expr)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, tree.ErrNoRoot
	}
	if doc.Root() == nil {
		return nil, nil
	}

	var (
		matches []*tree.Element
		evalErr error
	)
	doc.Root().Walk(func(e *tree.Element, depth int) bool {
		if evalErr != nil {
			return false
		}
		if evalErr = ctx.Err(); evalErr != nil {
			return false
		}
		ok, err := pool.Match(program, nodeView(e, depth))
		if err != nil {
			evalErr = fmt.Errorf("evaluating %q on %s: %w", expr, e.Path(), err)
			return false
		}
		if ok {
			matches = append(matches, e)
		}
		return true
	})
	if evalErr != nil {
		return nil, evalErr
	}

	c.logger.Debug("selected kbin nodes", "expr", expr, "matches", len(matches))
	return matches, nil
}

func (c *Codec) expressionPool() (*celpool.ExpressionPool, error) {
	c.poolOnce.Do(func() {
		c.pool, c.poolErr = celpool.NewExpressionPool()
	})
	return c.pool, c.poolErr
}

// nodeView returns the predicate view of e at the given depth.
func nodeView(e *tree.Element, depth int) celpool.Node {
	attrs := make(map[string]string, len(e.Attrs))
	for _, a := range e.Attrs {
		attrs[a.Name] = a.Value
	}
	return celpool.Node{
		Name:     e.Name,
		Type:     e.TypeName,
		Text:     e.Text,
		Count:    e.Count,
		IsArray:  e.IsArray,
		Attrs:    attrs,
		Depth:    depth,
		Path:     e.Path(),
		Children: len(e.Children),
	}
}
