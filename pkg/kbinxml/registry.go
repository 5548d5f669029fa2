package kbinxml

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type scalarKind uint8

const (
	kindSigned scalarKind = iota
	kindUnsigned
	kindFloat
	kindBool
	kindIP4
)

// TypeDescriptor describes how a fixed-size node type is laid out in the
// data block. A logical element is Arity primitives of Size bytes each.
type TypeDescriptor struct {
	Type  NodeType
	Name  string
	Size  int
	Arity int
	kind  scalarKind
}

// Stride is the number of bytes one logical element occupies.
func (d *TypeDescriptor) Stride() int {
	return d.Size * d.Arity
}

var descriptors = []TypeDescriptor{
	{S8, "s8", 1, 1, kindSigned},
	{U8, "u8", 1, 1, kindUnsigned},
	{S16, "s16", 2, 1, kindSigned},
	{U16, "u16", 2, 1, kindUnsigned},
	{S32, "s32", 4, 1, kindSigned},
	{U32, "u32", 4, 1, kindUnsigned},
	{S64, "s64", 8, 1, kindSigned},
	{U64, "u64", 8, 1, kindUnsigned},
	{IP4, "ip4", 4, 1, kindIP4},
	{Time, "time", 4, 1, kindUnsigned},
	{Float, "float", 4, 1, kindFloat},
	{Double, "double", 8, 1, kindFloat},

	{S8x2, "2s8", 1, 2, kindSigned},
	{U8x2, "2u8", 1, 2, kindUnsigned},
	{S16x2, "2s16", 2, 2, kindSigned},
	{U16x2, "2u16", 2, 2, kindUnsigned},
	{S32x2, "2s32", 4, 2, kindSigned},
	{U32x2, "2u32", 4, 2, kindUnsigned},
	{S64x2, "2s64", 8, 2, kindSigned},
	{U64x2, "2u64", 8, 2, kindUnsigned},
	{Floatx2, "2f", 4, 2, kindFloat},
	{Doublex2, "2d", 8, 2, kindFloat},

	{S8x3, "3s8", 1, 3, kindSigned},
	{U8x3, "3u8", 1, 3, kindUnsigned},
	{S16x3, "3s16", 2, 3, kindSigned},
	{U16x3, "3u16", 2, 3, kindUnsigned},
	{S32x3, "3s32", 4, 3, kindSigned},
	{U32x3, "3u32", 4, 3, kindUnsigned},
	{S64x3, "3s64", 8, 3, kindSigned},
	{U64x3, "3u64", 8, 3, kindUnsigned},
	{Floatx3, "3f", 4, 3, kindFloat},
	{Doublex3, "3d", 8, 3, kindFloat},

	{S8x4, "4s8", 1, 4, kindSigned},
	{U8x4, "4u8", 1, 4, kindUnsigned},
	{S16x4, "4s16", 2, 4, kindSigned},
	{U16x4, "4u16", 2, 4, kindUnsigned},
	{S32x4, "4s32", 4, 4, kindSigned},
	{U32x4, "4u32", 4, 4, kindUnsigned},
	{S64x4, "4s64", 8, 4, kindSigned},
	{U64x4, "4u64", 8, 4, kindUnsigned},
	{Floatx4, "4f", 4, 4, kindFloat},
	{Doublex4, "4d", 8, 4, kindFloat},

	{VS8, "vs8", 1, 16, kindSigned},
	{VU8, "vu8", 1, 16, kindUnsigned},
	{VS16, "vs16", 2, 8, kindSigned},
	{VU16, "vu16", 2, 8, kindUnsigned},

	{Bool, "bool", 1, 1, kindBool},
	{Boolx2, "2b", 1, 2, kindBool},
	{Boolx3, "3b", 1, 3, kindBool},
	{Boolx4, "4b", 1, 4, kindBool},
	{VB, "vb", 1, 16, kindBool},
}

var (
	byType [256]*TypeDescriptor
	byName = map[string]NodeType{
		"string": String,
		"str":    String,
		"binary": Binary,
		"bin":    Binary,
		"f":      Float,
		"d":      Double,
		"b":      Bool,
	}
)

func init() {
	for i := range descriptors {
		d := &descriptors[i]
		byType[d.Type] = d
		byName[d.Name] = d.Type
	}
}

// Lookup returns the descriptor for a fixed-size node type. String, Binary
// and the structural types have none.
func Lookup(t NodeType) (*TypeDescriptor, bool) {
	d := byType[t]
	return d, d != nil
}

// LookupName maps a __type name, canonical or alias, to its node type.
func LookupName(name string) (NodeType, bool) {
	t, ok := byName[name]
	return t, ok
}

// Decode reads count logical elements and renders them as space separated text.
func (d *TypeDescriptor) Decode(c *Cursor, count int) (string, error) {
	raw, err := c.Read(count * d.Stride())
	if err != nil {
		return "", fmt.Errorf("reading %d %s elements: %w", count, d.Name, err)
	}

	var sb strings.Builder
	for i := 0; i < count*d.Arity; i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(d.format(raw[i*d.Size : (i+1)*d.Size]))
	}
	return sb.String(), nil
}

// Parse converts space separated text into the big-endian payload. It
// returns the payload and the number of logical elements it holds.
func (d *TypeDescriptor) Parse(text string) ([]byte, int, error) {
	tokens := strings.Fields(text)
	if len(tokens)%d.Arity != 0 {
		return nil, 0, fmt.Errorf("%w: %d values for %s, want a multiple of %d", ErrMalformedScalar, len(tokens), d.Name, d.Arity)
	}

	raw := make([]byte, len(tokens)*d.Size)
	for i, tok := range tokens {
		if err := d.parse(tok, raw[i*d.Size:(i+1)*d.Size]); err != nil {
			return nil, 0, fmt.Errorf("%w: %s value %q: %v", ErrMalformedScalar, d.Name, tok, err)
		}
	}
	return raw, len(tokens) / d.Arity, nil
}

// Encode parses text and writes the payload through the cursor.
func (d *TypeDescriptor) Encode(c *Cursor, text string) error {
	raw, _, err := d.Parse(text)
	if err != nil {
		return err
	}
	c.Write(raw)
	return nil
}

func (d *TypeDescriptor) format(b []byte) string {
	switch d.kind {
	case kindSigned:
		switch d.Size {
		case 1:
			return strconv.FormatInt(int64(int8(b[0])), 10)
		case 2:
			return strconv.FormatInt(int64(int16(binary.BigEndian.Uint16(b))), 10)
		case 4:
			return strconv.FormatInt(int64(int32(binary.BigEndian.Uint32(b))), 10)
		default:
			return strconv.FormatInt(int64(binary.BigEndian.Uint64(b)), 10)
		}
	case kindUnsigned, kindBool:
		return strconv.FormatUint(readUint(b), 10)
	case kindFloat:
		if d.Size == 4 {
			return strconv.FormatFloat(float64(math.Float32frombits(binary.BigEndian.Uint32(b))), 'f', 5, 32)
		}
		return strconv.FormatFloat(math.Float64frombits(binary.BigEndian.Uint64(b)), 'f', 5, 64)
	case kindIP4:
		return fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3])
	}
	return ""
}

func (d *TypeDescriptor) parse(tok string, dst []byte) error {
	switch d.kind {
	case kindSigned:
		v, err := strconv.ParseInt(tok, 10, d.Size*8)
		if err != nil {
			return err
		}
		putUint(dst, uint64(v))
	case kindUnsigned, kindBool:
		v, err := strconv.ParseUint(tok, 10, d.Size*8)
		if err != nil {
			return err
		}
		putUint(dst, v)
	case kindFloat:
		v, err := strconv.ParseFloat(tok, d.Size*8)
		if err != nil {
			return err
		}
		if d.Size == 4 {
			binary.BigEndian.PutUint32(dst, math.Float32bits(float32(v)))
		} else {
			binary.BigEndian.PutUint64(dst, math.Float64bits(v))
		}
	case kindIP4:
		parts := strings.Split(tok, ".")
		if len(parts) != 4 {
			return fmt.Errorf("want 4 dotted octets, got %d", len(parts))
		}
		for i, p := range parts {
			v, err := strconv.ParseUint(p, 10, 8)
			if err != nil {
				return err
			}
			dst[i] = byte(v)
		}
	}
	return nil
}

func readUint(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.BigEndian.Uint16(b))
	case 4:
		return uint64(binary.BigEndian.Uint32(b))
	}
	return binary.BigEndian.Uint64(b)
}

func putUint(dst []byte, v uint64) {
	switch len(dst) {
	case 1:
		dst[0] = byte(v)
	case 2:
		binary.BigEndian.PutUint16(dst, uint16(v))
	case 4:
		binary.BigEndian.PutUint32(dst, uint32(v))
	default:
		binary.BigEndian.PutUint64(dst, v)
	}
}
