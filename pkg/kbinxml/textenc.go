package kbinxml

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
)

// Encoding is the text encoding tag carried in the header.
type Encoding byte

const (
	EncodingASCII    Encoding = 0x20
	EncodingISO88591 Encoding = 0x40
	EncodingEUCJP    Encoding = 0x60
	EncodingShiftJIS Encoding = 0x80
	EncodingUTF8     Encoding = 0xA0
)

var encodingNames = map[Encoding]string{
	EncodingASCII:    "ASCII",
	EncodingISO88591: "ISO-8859-1",
	EncodingEUCJP:    "EUC-JP",
	EncodingShiftJIS: "Shift_JIS",
	EncodingUTF8:     "UTF-8",
}

// String returns the name used in XML declarations.
func (e Encoding) String() string {
	if name, ok := encodingNames[e]; ok {
		return name
	}
	return fmt.Sprintf("Encoding(0x%02X)", byte(e))
}

// Valid reports whether e is one of the supported encodings.
func (e Encoding) Valid() bool {
	_, ok := encodingNames[e]
	return ok
}

// ParseEncoding maps a charset name to an Encoding. Matching is case
// insensitive and accepts common aliases.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "ASCII", "US-ASCII":
		return EncodingASCII, nil
	case "ISO-8859-1", "ISO8859-1", "LATIN1":
		return EncodingISO88591, nil
	case "EUC-JP", "EUCJP":
		return EncodingEUCJP, nil
	case "SHIFT_JIS", "SHIFT-JIS", "SJIS", "CP932":
		return EncodingShiftJIS, nil
	case "UTF-8", "UTF8":
		return EncodingUTF8, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrTextEncoding, name)
}

// Charset returns the x/text encoding backing e. ASCII has no x/text
// counterpart and is handled by DecodeText/EncodeText directly.
func (e Encoding) Charset() encoding.Encoding {
	switch e {
	case EncodingISO88591:
		return charmap.ISO8859_1
	case EncodingEUCJP:
		return japanese.EUCJP
	case EncodingShiftJIS:
		return japanese.ShiftJIS
	case EncodingUTF8:
		return unicode.UTF8
	}
	return nil
}

// DecodeText converts raw bytes in encoding e to a Go string.
func (e Encoding) DecodeText(raw []byte) (string, error) {
	if e == EncodingASCII {
		for i, b := range raw {
			if b >= utf8.RuneSelf {
				return "", fmt.Errorf("%w: byte 0x%02X at offset %d is not ASCII", ErrTextEncoding, b, i)
			}
		}
		return string(raw), nil
	}

	cs := e.Charset()
	if cs == nil {
		return "", fmt.Errorf("%w: unsupported encoding %s", ErrTextEncoding, e)
	}
	out, err := cs.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("%w: decoding %s: %v", ErrTextEncoding, e, err)
	}
	return string(out), nil
}

// EncodeText converts s to raw bytes in encoding e.
func (e Encoding) EncodeText(s string) ([]byte, error) {
	if e == EncodingASCII {
		for i := 0; i < len(s); i++ {
			if s[i] >= utf8.RuneSelf {
				return nil, fmt.Errorf("%w: %q is not ASCII", ErrTextEncoding, s)
			}
		}
		return []byte(s), nil
	}

	cs := e.Charset()
	if cs == nil {
		return nil, fmt.Errorf("%w: unsupported encoding %s", ErrTextEncoding, e)
	}
	out, err := cs.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: encoding %q as %s: %v", ErrTextEncoding, s, e, err)
	}
	return out, nil
}
