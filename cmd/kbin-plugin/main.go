package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redpanda-data/benthos/v4/public/service"
	"github.com/twinfer/kbinxml/pkg/kbin"
	"github.com/twinfer/kbinxml/pkg/kbinxml"
	"github.com/twinfer/kbinxml/pkg/tree"
	"gopkg.in/yaml.v3"
)

const (
	operationDecode = "decode"
	operationEncode = "encode"

	formatStructured = "structured"
	formatXML        = "xml"
	formatJSON       = "json"
	formatYAML       = "yaml"
	formatCBOR       = "cbor"

	metaEncoding    = "kbin_encoding"
	metaCompression = "kbin_compression"
)

// TimeSource abstracts the clock used for processing duration metrics.
type TimeSource interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

type systemTime struct{}

func (systemTime) Now() time.Time                  { return time.Now() }
func (systemTime) Since(t time.Time) time.Duration { return time.Since(t) }

// SystemTime is the clock used by the processor. Tests replace it.
var SystemTime TimeSource = systemTime{}

// KBinProcessor is a Benthos processor that converts KBin binary XML
// messages to and from trees, XML, JSON, YAML and CBOR.
type KBinProcessor struct {
	config    KBinConfig
	codec     *kbin.Codec
	logger    *service.Logger
	mDecoded  *service.MetricCounter
	mEncoded  *service.MetricCounter
	mErrors   *service.MetricCounter
	mSelected *service.MetricCounter
	mDuration *service.MetricTimer
}

// KBinConfig contains configuration parameters for the KBin processor.
type KBinConfig struct {
	Operation    string `json:"operation" yaml:"operation"`
	Format       string `json:"format" yaml:"format"`
	Compression  string `json:"compression" yaml:"compression"`
	Encoding     string `json:"encoding" yaml:"encoding"`
	MaxInputSize int    `json:"max_input_size" yaml:"max_input_size"`
	Select       string `json:"select" yaml:"select"`
}

func init() {
	// Register the processor with Benthos
	err := service.RegisterProcessor(
		"kbinxml",
		kbinProcessorConfig(),
		func(conf *service.ParsedConfig, mgr *service.Resources) (service.Processor, error) {
			return newKBinProcessorFromConfig(conf, mgr)
		},
	)
	if err != nil {
		panic(err)
	}
}

func main() {
	service.RunCLI(context.Background())
}

// kbinProcessorConfig returns a config spec for a kbinxml processor.
func kbinProcessorConfig() *service.ConfigSpec {
	return service.NewConfigSpec().
		Summary("Decodes or encodes KBin binary XML documents.").
		Description("This processor decodes KBin buffers into a structured tree, XML, JSON, YAML or CBOR, or encodes one of those renditions back into a KBin buffer. Decoded messages carry the document encoding and compression in the kbin_encoding and kbin_compression metadata.").
		Field(service.NewStringEnumField("operation", operationDecode, operationEncode).
			Description("Whether this processor decodes KBin into the chosen format or encodes the chosen format into KBin.").
			Default(operationDecode)).
		Field(service.NewStringEnumField("format", formatStructured, formatXML, formatJSON, formatYAML, formatCBOR).
			Description("The rendition produced by decode or consumed by encode.").
			Default(formatStructured)).
		Field(service.NewStringField("compression").
			Description("Node name storage for encoded output: compressed or uncompressed. Leave empty to keep the document's own mode.").
			Default("").
			Example("uncompressed")).
		Field(service.NewStringField("encoding").
			Description("Text encoding for encoded output. Leave empty to keep the document's own encoding.").
			Default("").
			Example("Shift_JIS")).
		Field(service.NewIntField("max_input_size").
			Description("Reject KBin input larger than this many bytes. Zero disables the limit.").
			Default(kbin.DefaultMaxInputSize)).
		Field(service.NewStringField("select").
			Description("A CEL predicate. When set, decode emits an array of the matching elements instead of the whole document.").
			Default("").
			Example(`type_name == "s32" && to_i(text) > 100`)).
		Version("0.1.0")
}

// newKBinProcessorFromConfig creates a new KBinProcessor from a parsed config.
func newKBinProcessorFromConfig(conf *service.ParsedConfig, mgr *service.Resources) (*KBinProcessor, error) {
	operation, err := conf.FieldString("operation")
	if err != nil {
		return nil, err
	}

	format, err := conf.FieldString("format")
	if err != nil {
		return nil, err
	}

	compression, err := conf.FieldString("compression")
	if err != nil {
		return nil, err
	}

	encoding, err := conf.FieldString("encoding")
	if err != nil {
		return nil, err
	}

	maxInputSize, err := conf.FieldInt("max_input_size")
	if err != nil {
		return nil, err
	}

	selectExpr, err := conf.FieldString("select")
	if err != nil {
		return nil, err
	}

	config := KBinConfig{
		Operation:    operation,
		Format:       format,
		Compression:  compression,
		Encoding:     encoding,
		MaxInputSize: maxInputSize,
		Select:       selectExpr,
	}

	if maxInputSize < 0 {
		return nil, fmt.Errorf("max_input_size must not be negative: %d", maxInputSize)
	}
	if selectExpr != "" && operation != operationDecode {
		return nil, fmt.Errorf("select is only supported for the %s operation", operationDecode)
	}

	opts := []kbin.Option{kbin.WithMaxInputSize(maxInputSize)}
	if compression != "" {
		c, err := kbinxml.ParseCompression(compression)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kbin.WithCompression(c))
	}
	if encoding != "" {
		e, err := kbinxml.ParseEncoding(encoding)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kbin.WithEncoding(e))
	}

	codec := kbin.NewCodec(opts...)
	if selectExpr != "" {
		// compile once up front so a bad predicate fails the config
		if _, err := codec.SelectDocument(context.Background(), tree.New(), selectExpr); err != nil {
			return nil, fmt.Errorf("invalid select expression: %w", err)
		}
	}

	logger := mgr.Logger()
	metrics := mgr.Metrics()

	return &KBinProcessor{
		config:    config,
		codec:     codec,
		logger:    logger,
		mDecoded:  metrics.NewCounter("kbin_decoded_messages"),
		mEncoded:  metrics.NewCounter("kbin_encoded_messages"),
		mErrors:   metrics.NewCounter("kbin_processing_errors"),
		mSelected: metrics.NewCounter("kbin_selected_elements"),
		mDuration: metrics.NewTimer("kbin_processing_duration"),
	}, nil
}

// Process applies KBin decoding or encoding to a message.
func (k *KBinProcessor) Process(ctx context.Context, msg *service.Message) (service.MessageBatch, error) {
	start := SystemTime.Now()
	defer func() {
		k.mDuration.Timing(SystemTime.Since(start).Nanoseconds())
	}()

	if k.config.Operation == operationEncode {
		return k.encode(ctx, msg)
	}
	return k.decode(ctx, msg)
}

// fail records err on msg and passes it on.
func (k *KBinProcessor) fail(msg *service.Message, err error) (service.MessageBatch, error) {
	k.logger.Errorf("%v", err)
	k.mErrors.Incr(1)
	msg.SetError(err)
	return service.MessageBatch{msg}, nil
}

// decode converts a KBin buffer into the configured rendition.
func (k *KBinProcessor) decode(ctx context.Context, msg *service.Message) (service.MessageBatch, error) {
	k.logger.Debug("Decoding KBin message")

	binData, err := msg.AsBytes()
	if err != nil {
		return k.fail(msg, fmt.Errorf("failed to get binary data from message: %w", err))
	}

	if len(binData) == 0 {
		k.logger.Warn("Empty binary data provided")
		k.mErrors.Incr(1)
		msg.SetError(fmt.Errorf("empty binary data provided"))
		return service.MessageBatch{msg}, nil
	}

	doc, err := k.codec.Decode(ctx, binData)
	if err != nil {
		return k.fail(msg, fmt.Errorf("failed to decode %d bytes: %w", len(binData), err))
	}

	newMsg := service.NewMessage(nil)
	if k.config.Select != "" {
		matches, err := k.codec.SelectDocument(ctx, doc, k.config.Select)
		if err != nil {
			return k.fail(msg, fmt.Errorf("failed to select elements: %w", err))
		}
		out := make([]any, 0, len(matches))
		for _, e := range matches {
			s, err := tree.StructuredElement(e)
			if err != nil {
				return k.fail(msg, fmt.Errorf("failed to convert element %s: %w", e.Path(), err))
			}
			out = append(out, s)
		}
		k.mSelected.Incr(int64(len(matches)))
		newMsg.SetStructured(out)
	} else if err := k.render(doc, newMsg); err != nil {
		return k.fail(msg, err)
	}

	k.logger.Debugf("Successfully decoded %d bytes of KBin data", len(binData))
	k.mDecoded.Incr(1)

	// Copy metadata from original message
	msg.MetaWalk(func(key, value string) error {
		newMsg.MetaSet(key, value)
		return nil
	})
	newMsg.MetaSet(metaEncoding, doc.DeclaredEncoding().String())
	newMsg.MetaSet(metaCompression, doc.DeclaredCompression().String())

	return service.MessageBatch{newMsg}, nil
}

// render writes doc to msg in the configured format.
func (k *KBinProcessor) render(doc *tree.Document, msg *service.Message) error {
	var (
		out []byte
		err error
	)
	switch k.config.Format {
	case formatStructured:
		s, err := doc.Structured()
		if err != nil {
			return fmt.Errorf("failed to build structured document: %w", err)
		}
		msg.SetStructured(s)
		return nil
	case formatXML:
		out, err = doc.XML()
	case formatJSON:
		out, err = json.Marshal(doc)
	case formatYAML:
		out, err = yaml.Marshal(doc)
	case formatCBOR:
		out, err = doc.MarshalCBOR()
	default:
		return fmt.Errorf("unknown format %q", k.config.Format)
	}
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", k.config.Format, err)
	}
	msg.SetBytes(out)
	return nil
}

// encode converts the configured rendition into a KBin buffer.
func (k *KBinProcessor) encode(ctx context.Context, msg *service.Message) (service.MessageBatch, error) {
	k.logger.Debug("Encoding message to KBin")

	doc, err := k.parse(msg)
	if err != nil {
		return k.fail(msg, err)
	}

	binData, err := k.codec.Encode(ctx, doc)
	if err != nil {
		return k.fail(msg, fmt.Errorf("failed to encode document: %w", err))
	}

	k.logger.Debugf("Successfully encoded document to %d bytes of KBin data", len(binData))
	k.mEncoded.Incr(1)

	newMsg := service.NewMessage(binData)

	// Copy metadata from original message
	msg.MetaWalk(func(key, value string) error {
		newMsg.MetaSet(key, value)
		return nil
	})

	return service.MessageBatch{newMsg}, nil
}

// parse reads a document from msg in the configured format.
func (k *KBinProcessor) parse(msg *service.Message) (*tree.Document, error) {
	if k.config.Format == formatStructured {
		structData, err := msg.AsStructured()
		if err != nil {
			return nil, fmt.Errorf("failed to get structured data from message: %w", err)
		}
		doc, err := tree.FromStructured(structData)
		if err != nil {
			return nil, fmt.Errorf("failed to read structured document: %w", err)
		}
		return doc, nil
	}

	raw, err := msg.AsBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to get data from message: %w", err)
	}

	doc := tree.New()
	switch k.config.Format {
	case formatXML:
		doc, err = tree.ParseXML(bytes.NewReader(raw))
	case formatJSON:
		err = json.Unmarshal(raw, doc)
	case formatYAML:
		err = yaml.Unmarshal(raw, doc)
	case formatCBOR:
		err = doc.UnmarshalCBOR(raw)
	default:
		return nil, fmt.Errorf("unknown format %q", k.config.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s document: %w", k.config.Format, err)
	}
	return doc, nil
}

// Close the processor resources
func (k *KBinProcessor) Close(ctx context.Context) error {
	k.logger.Debug("Closing KBin processor")
	return nil
}
