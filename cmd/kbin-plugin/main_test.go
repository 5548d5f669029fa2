package main

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redpanda-data/benthos/v4/public/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twinfer/kbinxml/pkg/kbin"
	"github.com/twinfer/kbinxml/pkg/kbinxml"
	"github.com/twinfer/kbinxml/pkg/tree"
	"github.com/twinfer/kbinxml/testutil"
)

// --- Test Helpers ---

func sampleKBin(t *testing.T) []byte {
	t.Helper()
	root := tree.NewElement("shop").SetAttr("region", "eu")
	item := tree.NewElement("item").SetAttr("id", "42")
	item.AppendChild(
		tree.NewValue("label", "string", "Potion"),
		tree.NewValue("price", "u32", "150"),
		tree.NewArray("stock", "u16", 2, "3 9"),
	)
	root.AppendChild(item, tree.NewValue("open", "bool", "1"))

	data, err := kbin.Encode(tree.NewWithRoot(root))
	require.NoError(t, err)
	return data
}

func newTestProcessor(t *testing.T, yamlConfig string) *KBinProcessor {
	t.Helper()
	pConf, err := kbinProcessorConfig().ParseYAML(yamlConfig, nil)
	require.NoError(t, err)

	processor, err := newKBinProcessorFromConfig(pConf, service.MockResources())
	require.NoError(t, err)
	return processor
}

func processOne(t *testing.T, p *KBinProcessor, msg *service.Message) *service.Message {
	t.Helper()
	batch, err := p.Process(context.Background(), msg)
	require.NoError(t, err) // Process method returns nil error, error is on the message
	require.Len(t, batch, 1)
	return batch[0]
}

type mockTimeSource struct {
	currentTime int64 // nanoseconds
	durations   []time.Duration
}

func (m *mockTimeSource) Now() time.Time {
	return time.Unix(0, atomic.LoadInt64(&m.currentTime))
}

func (m *mockTimeSource) Since(ts time.Time) time.Duration {
	if len(m.durations) > 0 {
		d := m.durations[0]
		m.durations = m.durations[1:]
		return d
	}
	return time.Millisecond * 100 // Default duration
}

// --- Decode ---

func TestKBinProcessor_DecodeStructured(t *testing.T) {
	p := newTestProcessor(t, `operation: decode`)

	in := service.NewMessage(sampleKBin(t))
	in.MetaSet("source", "unit-test")

	out := processOne(t, p, in)
	require.NoError(t, out.GetError())

	structured, err := out.AsStructured()
	require.NoError(t, err)
	doc, ok := structured.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "UTF-8", doc["encoding"])
	assert.Equal(t, "compressed", doc["compression"])

	root := doc["root"].(map[string]any)
	assert.Equal(t, "shop", root["name"])
	assert.Len(t, root["children"], 2)

	source, ok := out.MetaGet("source")
	assert.True(t, ok)
	assert.Equal(t, "unit-test", source)

	enc, _ := out.MetaGet(metaEncoding)
	assert.Equal(t, "UTF-8", enc)
	comp, _ := out.MetaGet(metaCompression)
	assert.Equal(t, "compressed", comp)
}

func TestKBinProcessor_DecodeXML(t *testing.T) {
	p := newTestProcessor(t, "operation: decode\nformat: xml")

	out := processOne(t, p, service.NewMessage(sampleKBin(t)))
	require.NoError(t, out.GetError())

	raw, err := out.AsBytes()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, string(raw), `<stock __type="u16" __count="2">3 9</stock>`)
}

func TestKBinProcessor_RoundTrip(t *testing.T) {
	original := sampleKBin(t)

	for _, format := range []string{formatStructured, formatXML, formatJSON, formatYAML, formatCBOR} {
		t.Run(format, func(t *testing.T) {
			decoder := newTestProcessor(t, fmt.Sprintf("operation: decode\nformat: %s", format))
			encoder := newTestProcessor(t, fmt.Sprintf("operation: encode\nformat: %s", format))

			decoded := processOne(t, decoder, service.NewMessage(original))
			require.NoError(t, decoded.GetError())

			encoded := processOne(t, encoder, decoded)
			require.NoError(t, encoded.GetError())

			raw, err := encoded.AsBytes()
			require.NoError(t, err)
			assert.Equal(t, original, raw)

			// metadata from the decode step survives the encode step
			enc, ok := encoded.MetaGet(metaEncoding)
			assert.True(t, ok)
			assert.Equal(t, "UTF-8", enc)
		})
	}
}

func TestKBinProcessor_DecodeSelect(t *testing.T) {
	// "Potion" is not numeric, so only the u32 leaves are converted
	p := newTestProcessor(t, `
operation: decode
select: 'type_name == "u32" && to_i(text) > 100'
`)

	out := processOne(t, p, service.NewMessage(sampleKBin(t)))
	require.NoError(t, out.GetError())

	structured, err := out.AsStructured()
	require.NoError(t, err)
	matches, ok := structured.([]any)
	require.True(t, ok)
	require.Len(t, matches, 1)

	price := matches[0].(map[string]any)
	assert.Equal(t, "price", price["name"])
	assert.Equal(t, "u32", price["type"])
	assert.Equal(t, "150", price["text"])
}

func TestKBinProcessor_DecodeSelectArray(t *testing.T) {
	p := newTestProcessor(t, `
operation: decode
select: 'is_array && sum(ints(text)) == 12'
`)

	out := processOne(t, p, service.NewMessage(sampleKBin(t)))
	require.NoError(t, out.GetError())

	structured, err := out.AsStructured()
	require.NoError(t, err)
	matches := structured.([]any)
	require.Len(t, matches, 1)

	want := map[string]any{"name": "stock", "type": "u16", "count": 2, "text": "3 9"}
	assert.Empty(t, testutil.DiffStructured(want, matches[0].(map[string]any)))
}

func TestKBinProcessor_DecodeSelectEvaluationError(t *testing.T) {
	p := newTestProcessor(t, `
operation: decode
select: 'type_name == "string" && to_i(text) > 0'
`)

	out := processOne(t, p, service.NewMessage(sampleKBin(t)))
	assert.ErrorContains(t, out.GetError(), "/shop/item/label")
}

func TestKBinProcessor_DecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		input   []byte
		wantErr error
	}{
		{"empty input", `operation: decode`, []byte{}, nil},
		{"not kbin", `operation: decode`, []byte("plain text data"), kbinxml.ErrMalformedHeader},
		{"too large", "operation: decode\nmax_input_size: 8", nil, kbinxml.ErrInputTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProcessor(t, tt.config)
			input := tt.input
			if input == nil {
				input = sampleKBin(t)
			}

			out := processOne(t, p, service.NewMessage(input))
			require.Error(t, out.GetError())
			if tt.wantErr != nil {
				assert.ErrorIs(t, out.GetError(), tt.wantErr)
			}
		})
	}
}

// --- Encode ---

func TestKBinProcessor_EncodeOverrides(t *testing.T) {
	p := newTestProcessor(t, `
operation: encode
format: xml
compression: uncompressed
encoding: Shift_JIS
`)

	in := service.NewMessage([]byte(`<root><v __type="s8">-1</v></root>`))
	in.MetaSet("id", "abc")

	out := processOne(t, p, in)
	require.NoError(t, out.GetError())

	raw, err := out.AsBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xA0, 0x45, 0x80, 0x7F}, raw[:4])

	id, _ := out.MetaGet("id")
	assert.Equal(t, "abc", id)

	doc, err := kbin.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "-1", doc.Root().Child("v").Text)
}

func TestKBinProcessor_EncodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		input   string
		wantErr error
	}{
		{"bad xml", "operation: encode\nformat: xml", `<root>`, nil},
		{"unknown type", "operation: encode\nformat: xml", `<root><v __type="u128">1</v></root>`, kbinxml.ErrUnknownTypeName},
		{"bad scalar", "operation: encode\nformat: xml", `<root><v __type="u8">300</v></root>`, kbinxml.ErrMalformedScalar},
		{"bad json", "operation: encode\nformat: json", `{"root":`, nil},
		{"json without root", "operation: encode\nformat: json", `{"encoding":"UTF-8"}`, tree.ErrNoRoot},
		{"structured not object", "operation: encode", `"just a string"`, nil},
		{"bad cbor", "operation: encode\nformat: cbor", "\xff", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProcessor(t, tt.config)

			out := processOne(t, p, service.NewMessage([]byte(tt.input)))
			require.Error(t, out.GetError())
			if tt.wantErr != nil {
				assert.ErrorIs(t, out.GetError(), tt.wantErr)
			}
		})
	}
}

// --- Config ---

func TestKBinProcessor_ConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		config string
	}{
		{"bad compression", "compression: zipped"},
		{"bad encoding", "encoding: KOI8-R"},
		{"negative size", "max_input_size: -1"},
		{"select on encode", "operation: encode\nselect: 'true'"},
		{"bad select", "select: 'name =='"},
		{"non bool select", "select: 'count + 1'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pConf, err := kbinProcessorConfig().ParseYAML(tt.config, nil)
			require.NoError(t, err)

			_, err = newKBinProcessorFromConfig(pConf, service.MockResources())
			assert.Error(t, err)
		})
	}
}

func TestKBinProcessor_ConfigDefaults(t *testing.T) {
	p := newTestProcessor(t, `{}`)
	assert.Equal(t, KBinConfig{
		Operation:    operationDecode,
		Format:       formatStructured,
		MaxInputSize: kbin.DefaultMaxInputSize,
	}, p.config)
	require.NoError(t, p.Close(context.Background()))
}

// --- Metrics ---

func TestKBinProcessor_Metrics(t *testing.T) {
	ctx := context.Background()
	mockTime := &mockTimeSource{}

	// Replace global SystemTime with mock for duration of these tests
	originalSystemTime := SystemTime
	SystemTime = mockTime
	defer func() { SystemTime = originalSystemTime }()

	t.Run("decode_Success", func(t *testing.T) {
		mockTime.durations = []time.Duration{time.Millisecond * 150}
		p := newTestProcessor(t, `operation: decode`)

		batch, err := p.Process(ctx, service.NewMessage(sampleKBin(t)))
		require.NoError(t, err)
		require.Len(t, batch, 1)
		assert.Empty(t, mockTime.durations, "processing duration should be recorded once")

		// Note: Benthos metrics are write-only, so we can't assert on values
	})

	t.Run("decode_Error", func(t *testing.T) {
		mockTime.durations = []time.Duration{time.Millisecond * 20}
		p := newTestProcessor(t, `operation: decode`)

		batch, err := p.Process(ctx, service.NewMessage([]byte{0x01}))
		require.NoError(t, err)
		require.Len(t, batch, 1)
		assert.NotNil(t, batch[0].GetError(), "Expected error on the output message for invalid input")
		assert.Empty(t, mockTime.durations)
	})
}
