package kbinxml

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeader(t *testing.T) {
	data := []byte{
		0xA0, 0x45, 0x80, 0x7F,
		0x00, 0x00, 0x00, 0x04, 0x01, 0x02, 0x03, 0x04,
		0x00, 0x00, 0x00, 0x00,
	}
	h, nodes, dataBlock, err := parseHeader(data)
	require.NoError(t, err)
	assert.Equal(t, Header{Compression: Uncompressed, Encoding: EncodingShiftJIS}, h)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, nodes)
	assert.Empty(t, dataBlock)
	assert.True(t, IsKBin(data))
}

func TestParseHeaderErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad signature", []byte{0xA1, 0x42, 0xA0, 0x5F, 0, 0, 0, 0, 0, 0, 0, 0}},
		{"bad check byte", []byte{0xA0, 0x42, 0xA0, 0x5E, 0, 0, 0, 0, 0, 0, 0, 0}},
		{"unknown compression", []byte{0xA0, 0x43, 0xA0, 0x5F, 0, 0, 0, 0, 0, 0, 0, 0}},
		{"unknown encoding", []byte{0xA0, 0x42, 0x10, 0xEF, 0, 0, 0, 0, 0, 0, 0, 0}},
		{"truncated node block", []byte{0xA0, 0x42, 0xA0, 0x5F, 0, 0, 0, 0x10, 0x01, 0x02}},
		{"missing data length", []byte{0xA0, 0x42, 0xA0, 0x5F, 0, 0, 0, 0x01, 0xFF}},
		{"truncated data block", []byte{0xA0, 0x42, 0xA0, 0x5F, 0, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := parseHeader(tt.data)
			assert.ErrorIs(t, err, ErrMalformedHeader)
		})
	}
	assert.False(t, IsKBin([]byte{0xA0, 0x42, 0xA0, 0x5E, 0, 0, 0, 0}))
}

func TestAssembleHeader(t *testing.T) {
	out, err := assemble(Header{Compression: Compressed, Encoding: EncodingUTF8}, []byte{0xFF, 0, 0, 0}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0xA0, 0x42, 0xA0, 0x5F,
		0x00, 0x00, 0x00, 0x04, 0xFF, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}, out)
}

func TestNodeStreamRoundTrip(t *testing.T) {
	entries := []Entry{
		{Type: NodeStart, Name: "root"},
		{Type: AttributeNode, Name: "id"},
		{Type: U32, IsArray: true, Name: "vals"},
		{Type: NodeEnd},
		{Type: NodeEnd},
		{Type: FileEnd},
	}

	for _, h := range []Header{
		{Compression: Compressed, Encoding: EncodingUTF8},
		{Compression: Uncompressed, Encoding: EncodingUTF8},
	} {
		t.Run(h.Compression.String(), func(t *testing.T) {
			w := newNodeWriter(h)
			for _, e := range entries {
				isArray := e.IsArray || e.Type == NodeEnd || e.Type == FileEnd
				require.NoError(t, w.WriteEntry(e.Type, isArray, e.Name))
			}
			block := w.Bytes()
			assert.Zero(t, len(block)%4)

			r := newNodeReader(block, h)
			for _, want := range entries {
				got, err := r.Next()
				require.NoError(t, err)
				if want.Type == NodeEnd || want.Type == FileEnd {
					want.IsArray = true
				}
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestNodeStreamCompressedBytes(t *testing.T) {
	w := newNodeWriter(Header{Compression: Compressed, Encoding: EncodingUTF8})
	require.NoError(t, w.WriteEntry(NodeStart, false, "root"))
	require.NoError(t, w.WriteEntry(U32, true, "vals"))
	assert.Equal(t, []byte{0x01, 0x04, 0xDF, 0x4D, 0x39, 0x47, 0x04, 0xEE, 0x6C, 0x78, 0x00, 0x00}, w.Bytes())
}

func TestNodeStreamNames(t *testing.T) {
	t.Run("invalid sixbit character", func(t *testing.T) {
		w := newNodeWriter(Header{Compression: Compressed, Encoding: EncodingUTF8})
		err := w.WriteEntry(NodeStart, false, "bad-name")
		assert.ErrorIs(t, err, ErrInvalidCharacter)
	})

	t.Run("uncompressed name too long", func(t *testing.T) {
		w := newNodeWriter(Header{Compression: Uncompressed, Encoding: EncodingUTF8})
		err := w.WriteEntry(NodeStart, false, strings.Repeat("a", 256))
		assert.ErrorIs(t, err, ErrNameTooLong)
	})

	t.Run("uncompressed names keep any character", func(t *testing.T) {
		h := Header{Compression: Uncompressed, Encoding: EncodingShiftJIS}
		w := newNodeWriter(h)
		require.NoError(t, w.WriteEntry(NodeStart, false, "名前-1"))
		e, err := newNodeReader(w.Bytes(), h).Next()
		require.NoError(t, err)
		assert.Equal(t, "名前-1", e.Name)
	})

	t.Run("truncated name", func(t *testing.T) {
		r := newNodeReader([]byte{0x01, 0x04, 0xDF}, Header{Compression: Compressed, Encoding: EncodingUTF8})
		_, err := r.Next()
		assert.ErrorIs(t, err, ErrUnexpectedEndOfInput)
	})

	t.Run("end of block", func(t *testing.T) {
		r := newNodeReader(nil, Header{Compression: Compressed, Encoding: EncodingUTF8})
		_, err := r.Next()
		assert.True(t, errors.Is(err, io.EOF))
	})
}
