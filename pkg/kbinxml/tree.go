package kbinxml

// Attribute is a plain name/value pair on an element.
type Attribute struct {
	Name  string
	Value string
}

// TreeBuilder is populated by Decode. E is the builder's element handle.
type TreeBuilder[E any] interface {
	CreateElement(name string) E
	AppendChild(parent, child E)
	SetAttribute(elem E, name, value string)
	SetText(elem E, text string)
	SetTypeName(elem E, typeName string)
	SetElementCount(elem E, n int)
	// Finalize installs root as the document root. The header carries the
	// text encoding and compression the document was stored with.
	Finalize(root E, h Header)
}

// TreeReader is walked by Encode.
type TreeReader[E any] interface {
	Root() E
	Name(elem E) string
	// TypeName returns the declared type, or false for plain containers.
	TypeName(elem E) (string, bool)
	// ElementCount returns the declared array length, or false for scalars.
	ElementCount(elem E) (int, bool)
	Text(elem E) string
	Attributes(elem E) []Attribute
	Children(elem E) []E
	// DeclaredEncoding is the text encoding to store the document with.
	DeclaredEncoding() Encoding
	// DeclaredCompression selects how names are stored.
	DeclaredCompression() Compression
}
