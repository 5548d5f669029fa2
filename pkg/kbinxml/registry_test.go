package kbinxml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryShapes(t *testing.T) {
	tests := []struct {
		typ    NodeType
		name   string
		size   int
		arity  int
		stride int
	}{
		{S8, "s8", 1, 1, 1},
		{U16, "u16", 2, 1, 2},
		{U32, "u32", 4, 1, 4},
		{Time, "time", 4, 1, 4},
		{IP4, "ip4", 4, 1, 4},
		{Double, "double", 8, 1, 8},
		{S16x3, "3s16", 2, 3, 6},
		{Floatx4, "4f", 4, 4, 16},
		{VU8, "vu8", 1, 16, 16},
		{VS16, "vs16", 2, 8, 16},
		{VB, "vb", 1, 16, 16},
		{Boolx2, "2b", 1, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := Lookup(tt.typ)
			require.True(t, ok)
			assert.Equal(t, tt.name, d.Name)
			assert.Equal(t, tt.size, d.Size)
			assert.Equal(t, tt.arity, d.Arity)
			assert.Equal(t, tt.stride, d.Stride())
			assert.Equal(t, tt.name, tt.typ.String())

			back, ok := LookupName(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.typ, back)
		})
	}
}

func TestRegistryExcludesVariableTypes(t *testing.T) {
	for _, typ := range []NodeType{NodeStart, String, Binary, AttributeNode, NodeEnd, FileEnd} {
		_, ok := Lookup(typ)
		assert.False(t, ok, typ.String())
	}
	_, ok := Lookup(NodeType(47))
	assert.False(t, ok)
}

func TestLookupNameAliases(t *testing.T) {
	aliases := map[string]NodeType{
		"str":    String,
		"string": String,
		"bin":    Binary,
		"binary": Binary,
		"f":      Float,
		"d":      Double,
		"b":      Bool,
	}
	for name, want := range aliases {
		got, ok := LookupName(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	_, ok := LookupName("u128")
	assert.False(t, ok)
}

func TestDescriptorParseAndDecode(t *testing.T) {
	tests := []struct {
		typ   NodeType
		text  string
		raw   []byte
		count int
		out   string
	}{
		{S8, "-1", []byte{0xFF}, 1, "-1"},
		{U16, "258", []byte{0x01, 0x02}, 1, "258"},
		{S32, "-2", []byte{0xFF, 0xFF, 0xFF, 0xFE}, 1, "-2"},
		{U64, "18446744073709551615", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, 1, "18446744073709551615"},
		{Float, "1.5", []byte{0x3F, 0xC0, 0x00, 0x00}, 1, "1.50000"},
		{Double, "-2", []byte{0xC0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, 1, "-2.00000"},
		{IP4, "192.168.0.1", []byte{0xC0, 0xA8, 0x00, 0x01}, 1, "192.168.0.1"},
		{Time, "1700000000", []byte{0x65, 0x53, 0xF1, 0x00}, 1, "1700000000"},
		{Bool, "1", []byte{0x01}, 1, "1"},
		{U8x2, "1  2", []byte{0x01, 0x02}, 1, "1 2"},
		{U32, "1 2 3", []byte{0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 3}, 3, "1 2 3"},
		{S16x2, "1 -1 2 -2", []byte{0x00, 0x01, 0xFF, 0xFF, 0x00, 0x02, 0xFF, 0xFE}, 2, "1 -1 2 -2"},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String()+"/"+tt.text, func(t *testing.T) {
			d, ok := Lookup(tt.typ)
			require.True(t, ok)

			raw, n, err := d.Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.raw, raw)
			assert.Equal(t, tt.count, n)

			text, err := d.Decode(NewReadCursor(raw), n)
			require.NoError(t, err)
			assert.Equal(t, tt.out, text)
		})
	}
}

func TestDescriptorParseErrors(t *testing.T) {
	tests := []struct {
		typ  NodeType
		text string
	}{
		{U8, "256"},
		{S8, "-129"},
		{U16, "abc"},
		{U8x2, "1 2 3"},
		{IP4, "10.0.0"},
		{IP4, "10.0.0.256"},
		{Float, "1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String()+"/"+tt.text, func(t *testing.T) {
			d, _ := Lookup(tt.typ)
			_, _, err := d.Parse(tt.text)
			assert.ErrorIs(t, err, ErrMalformedScalar)
		})
	}
}

func TestNodeTypeTags(t *testing.T) {
	typ, isArray := splitTag(0x47)
	assert.Equal(t, U32, typ)
	assert.True(t, isArray)

	assert.Equal(t, byte(0xFE), joinTag(NodeEnd, true))
	assert.Equal(t, byte(0xFF), joinTag(FileEnd, true))

	// end markers read back from their wire form
	typ, _ = splitTag(0xFF)
	assert.Equal(t, FileEnd, typ)
	typ, _ = splitTag(0xFE)
	assert.Equal(t, NodeEnd, typ)

	assert.Equal(t, "void", NodeStart.String())
	assert.Equal(t, "attr", AttributeNode.String())
	assert.Equal(t, "NodeType(47)", NodeType(47).String())
}
