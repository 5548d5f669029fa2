package kbinxml

import "fmt"

// NodeType is the low 6 bits (plus the high bits of the end markers) of a
// node stream tag.
type NodeType byte

// ArrayFlag marks an array node in a node stream tag.
const ArrayFlag byte = 0x40

const (
	NodeStart NodeType = 1

	S8     NodeType = 2
	U8     NodeType = 3
	S16    NodeType = 4
	U16    NodeType = 5
	S32    NodeType = 6
	U32    NodeType = 7
	S64    NodeType = 8
	U64    NodeType = 9
	Binary NodeType = 10
	String NodeType = 11
	IP4    NodeType = 12
	Time   NodeType = 13
	Float  NodeType = 14
	Double NodeType = 15

	S8x2     NodeType = 16
	U8x2     NodeType = 17
	S16x2    NodeType = 18
	U16x2    NodeType = 19
	S32x2    NodeType = 20
	U32x2    NodeType = 21
	S64x2    NodeType = 22
	U64x2    NodeType = 23
	Floatx2  NodeType = 24
	Doublex2 NodeType = 25

	S8x3     NodeType = 26
	U8x3     NodeType = 27
	S16x3    NodeType = 28
	U16x3    NodeType = 29
	S32x3    NodeType = 30
	U32x3    NodeType = 31
	S64x3    NodeType = 32
	U64x3    NodeType = 33
	Floatx3  NodeType = 34
	Doublex3 NodeType = 35

	S8x4     NodeType = 36
	U8x4     NodeType = 37
	S16x4    NodeType = 38
	U16x4    NodeType = 39
	S32x4    NodeType = 40
	U32x4    NodeType = 41
	S64x4    NodeType = 42
	U64x4    NodeType = 43
	Floatx4  NodeType = 44
	Doublex4 NodeType = 45

	AttributeNode NodeType = 46

	VS8  NodeType = 48
	VU8  NodeType = 49
	VS16 NodeType = 50
	VU16 NodeType = 51

	Bool   NodeType = 52
	Boolx2 NodeType = 53
	Boolx3 NodeType = 54
	Boolx4 NodeType = 55
	VB     NodeType = 56

	NodeEnd NodeType = 190
	FileEnd NodeType = 191
)

// String returns the canonical type name written to the __type attribute.
func (t NodeType) String() string {
	switch t {
	case NodeStart:
		return "void"
	case Binary:
		return "binary"
	case String:
		return "string"
	case AttributeNode:
		return "attr"
	case NodeEnd:
		return "nodeEnd"
	case FileEnd:
		return "fileEnd"
	}
	if d, ok := Lookup(t); ok {
		return d.Name
	}
	return fmt.Sprintf("NodeType(%d)", byte(t))
}

// splitTag separates a raw tag byte into its node type and array flag.
func splitTag(tag byte) (NodeType, bool) {
	return NodeType(tag &^ ArrayFlag), tag&ArrayFlag != 0
}

// joinTag builds the raw tag byte for t.
func joinTag(t NodeType, isArray bool) byte {
	if isArray {
		return byte(t) | ArrayFlag
	}
	return byte(t)
}

// hasName reports whether entries of type t carry a name.
func (t NodeType) hasName() bool {
	return t != NodeEnd && t != FileEnd
}
