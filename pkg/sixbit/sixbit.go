// Package sixbit implements the 6-bit name compression used by KBin node
// streams. Each character of a name is mapped to its index in a 64 symbol
// alphabet and the codes are packed most significant bit first behind a
// single length byte.
package sixbit

import (
	"errors"
	"fmt"
	"io"
)

const alphabet = "0123456789:ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz"

// MaxLength is the longest name the one byte length prefix can describe.
const MaxLength = 255

var (
	// ErrInvalidCharacter is returned when a name contains a character outside the alphabet.
	ErrInvalidCharacter = errors.New("invalid sixbit character")
	// ErrNameTooLong is returned when a name exceeds MaxLength characters.
	ErrNameTooLong = errors.New("name too long for sixbit packing")
	// ErrUnexpectedEndOfInput is returned when the packed input is truncated.
	ErrUnexpectedEndOfInput = errors.New("unexpected end of input")
)

var codes [256]int8

func init() {
	for i := range codes {
		codes[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		codes[alphabet[i]] = int8(i)
	}
}

// packedLen returns the number of payload bytes holding n characters.
func packedLen(n int) int {
	return (n*6 + 7) / 8
}

// Pack encodes name into its length-prefixed sixbit form.
func Pack(name string) ([]byte, error) {
	if len(name) > MaxLength {
		return nil, fmt.Errorf("%w: %d characters", ErrNameTooLong, len(name))
	}

	out := make([]byte, 1+packedLen(len(name)))
	out[0] = byte(len(name))

	bit := 0
	for i := 0; i < len(name); i++ {
		code := codes[name[i]]
		if code < 0 {
			return nil, fmt.Errorf("%w: %q at offset %d in %q", ErrInvalidCharacter, name[i], i, name)
		}
		for j := 5; j >= 0; j-- {
			if code>>j&1 == 1 {
				out[1+bit/8] |= 1 << (7 - bit%8)
			}
			bit++
		}
	}

	return out, nil
}

// Unpack decodes a length-prefixed sixbit name from the start of b.
// Bytes after the packed name are ignored.
func Unpack(b []byte) (string, error) {
	if len(b) < 1 {
		return "", ErrUnexpectedEndOfInput
	}
	n := int(b[0])
	if len(b)-1 < packedLen(n) {
		return "", fmt.Errorf("%w: need %d packed bytes, have %d", ErrUnexpectedEndOfInput, packedLen(n), len(b)-1)
	}
	return decode(n, b[1:1+packedLen(n)]), nil
}

// UnpackFrom reads a length-prefixed sixbit name from r, consuming exactly
// the bytes that make up the name.
func UnpackFrom(r io.Reader) (string, error) {
	var length [1]byte
	if _, err := io.ReadFull(r, length[:]); err != nil {
		return "", fmt.Errorf("%w: reading name length: %v", ErrUnexpectedEndOfInput, err)
	}

	n := int(length[0])
	packed := make([]byte, packedLen(n))
	if _, err := io.ReadFull(r, packed); err != nil {
		return "", fmt.Errorf("%w: reading %d packed bytes: %v", ErrUnexpectedEndOfInput, len(packed), err)
	}
	return decode(n, packed), nil
}

func decode(n int, packed []byte) string {
	out := make([]byte, n)
	bit := 0
	for i := range out {
		var code byte
		for j := 0; j < 6; j++ {
			code = code<<1 | packed[bit/8]>>(7-bit%8)&1
			bit++
		}
		out[i] = alphabet[code]
	}
	return string(out)
}

// Valid reports whether name can be packed.
func Valid(name string) bool {
	if len(name) > MaxLength {
		return false
	}
	for i := 0; i < len(name); i++ {
		if codes[name[i]] < 0 {
			return false
		}
	}
	return true
}
