package tree

import (
	"encoding/json"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twinfer/kbinxml/pkg/kbinxml"
	"gopkg.in/yaml.v3"
)

func codecSample() *Document {
	root := NewElement("root").SetAttr("id", "1")
	root.AppendChild(
		NewValue("name", "string", "hi"),
		NewArray("v", "u8", 2, "1 2"),
		NewArray("none", "u32", 0, ""),
	)
	doc := NewWithRoot(root)
	doc.Compression = kbinxml.Uncompressed
	return doc
}

// sameTree compares documents through their KBin encoding.
func sameTree(t *testing.T, want, got *Document) {
	t.Helper()
	wantBytes, err := want.Encode()
	require.NoError(t, err)
	gotBytes, err := got.Encode()
	require.NoError(t, err)
	assert.Equal(t, wantBytes, gotBytes)
	assert.Equal(t, want.Encoding, got.Encoding)
	assert.Equal(t, want.Compression, got.Compression)
}

func TestJSON(t *testing.T) {
	doc := codecSample()
	out, err := json.Marshal(doc)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"encoding": "UTF-8",
		"compression": "uncompressed",
		"root": {
			"name": "root",
			"attrs": [{"name": "id", "value": "1"}],
			"children": [
				{"name": "name", "type": "string", "text": "hi"},
				{"name": "v", "type": "u8", "count": 2, "text": "1 2"},
				{"name": "none", "type": "u32", "count": 0}
			]
		}
	}`, string(out))

	back := New()
	require.NoError(t, json.Unmarshal(out, back))
	sameTree(t, doc, back)
	assert.Same(t, back.Root(), back.Root().Child("v").Parent())
}

func TestJSONErrors(t *testing.T) {
	tests := map[string]string{
		"no root":         `{"encoding": "UTF-8"}`,
		"bad encoding":    `{"encoding": "KOI8-R", "root": {"name": "r"}}`,
		"bad compression": `{"compression": "zip", "root": {"name": "r"}}`,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, json.Unmarshal([]byte(input), New()))
		})
	}
}

func TestJSONDefaults(t *testing.T) {
	doc := New()
	require.NoError(t, json.Unmarshal([]byte(`{"root": {"name": "r"}}`), doc))
	assert.Equal(t, kbinxml.EncodingUTF8, doc.Encoding)
	assert.Equal(t, kbinxml.Compressed, doc.Compression)
	assert.Equal(t, "r", doc.Root().Name)
}

func TestYAML(t *testing.T) {
	doc := codecSample()
	out, err := yaml.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(out), "compression: uncompressed")
	assert.Contains(t, string(out), "count: 0")

	back := New()
	require.NoError(t, yaml.Unmarshal(out, back))
	sameTree(t, doc, back)
}

func TestCBOR(t *testing.T) {
	doc := codecSample()
	out, err := cbor.Marshal(doc)
	require.NoError(t, err)

	// deterministic encoding
	again, err := doc.MarshalCBOR()
	require.NoError(t, err)
	assert.Equal(t, out, again)

	back := New()
	require.NoError(t, cbor.Unmarshal(out, back))
	sameTree(t, doc, back)
}

func TestStructured(t *testing.T) {
	doc := codecSample()
	m, err := doc.Structured()
	require.NoError(t, err)
	assert.Equal(t, "UTF-8", m["encoding"])

	root, ok := m["root"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "root", root["name"])

	back, err := FromStructured(m)
	require.NoError(t, err)
	sameTree(t, doc, back)

	elem, err := StructuredElement(doc.Root().Child("v"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "v", "type": "u8", "count": float64(2), "text": "1 2"}, elem)

	_, err = FromStructured(map[string]any{"root": nil})
	assert.ErrorIs(t, err, ErrNoRoot)
}
