// Package tree is an in-memory attributed tree that the kbinxml codec can
// decode into and encode from.
package tree

import (
	"errors"
	"strings"

	"github.com/twinfer/kbinxml/pkg/kbinxml"
)

// Element is a named node. TypeName is empty for plain containers.
type Element struct {
	Name     string
	TypeName string
	IsArray  bool
	Count    int
	Text     string
	Attrs    []kbinxml.Attribute
	Children []*Element

	parent *Element
}

// NewElement returns a detached container element.
func NewElement(name string) *Element {
	return &Element{Name: name}
}

// NewValue returns a detached typed element holding text.
func NewValue(name, typeName, text string) *Element {
	return &Element{Name: name, TypeName: typeName, Text: text}
}

// NewArray returns a detached typed array element holding count elements.
func NewArray(name, typeName string, count int, text string) *Element {
	return &Element{Name: name, TypeName: typeName, IsArray: true, Count: count, Text: text}
}

// Parent returns the enclosing element, or nil for a root.
func (e *Element) Parent() *Element {
	return e.parent
}

// AppendChild attaches children in order and returns e.
func (e *Element) AppendChild(children ...*Element) *Element {
	for _, c := range children {
		c.parent = e
		e.Children = append(e.Children, c)
	}
	return e
}

// SetAttr replaces the value of an existing attribute or appends a new one.
func (e *Element) SetAttr(name, value string) *Element {
	for i := range e.Attrs {
		if e.Attrs[i].Name == name {
			e.Attrs[i].Value = value
			return e
		}
	}
	e.Attrs = append(e.Attrs, kbinxml.Attribute{Name: name, Value: value})
	return e
}

// Attr looks up an attribute value.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Child returns the first child with the given name.
func (e *Element) Child(name string) *Element {
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Path returns the slash separated names from the root down to e.
func (e *Element) Path() string {
	var names []string
	for cur := e; cur != nil; cur = cur.parent {
		names = append(names, cur.Name)
	}
	var sb strings.Builder
	for i := len(names) - 1; i >= 0; i-- {
		sb.WriteByte('/')
		sb.WriteString(names[i])
	}
	return sb.String()
}

// Walk visits e and its descendants in document order. Returning false
// from fn skips the children of that element.
func (e *Element) Walk(fn func(elem *Element, depth int) bool) {
	e.walk(fn, 0)
}

func (e *Element) walk(fn func(*Element, int) bool, depth int) {
	if !fn(e, depth) {
		return
	}
	for _, c := range e.Children {
		c.walk(fn, depth+1)
	}
}

// Document is a rooted tree plus the storage settings it round-trips with.
type Document struct {
	Encoding    kbinxml.Encoding
	Compression kbinxml.Compression

	root *Element
}

// ErrNoRoot is returned when encoding a document without a root element.
var ErrNoRoot = errors.New("document has no root element")

// Errors from the XML rendition for trees it cannot carry losslessly.
var (
	ErrReservedAttribute = errors.New("attribute name is reserved in xml")
	ErrInvalidXMLChar    = errors.New("character not allowed in xml")
)

// New returns an empty UTF-8, compressed document.
func New() *Document {
	return &Document{Encoding: kbinxml.EncodingUTF8, Compression: kbinxml.Compressed}
}

// NewWithRoot returns a UTF-8, compressed document rooted at root.
func NewWithRoot(root *Element) *Document {
	d := New()
	d.SetRoot(root)
	return d
}

// SetRoot installs root, detaching it from any previous parent.
func (d *Document) SetRoot(root *Element) {
	if root != nil {
		root.parent = nil
	}
	d.root = root
}

// Decode parses a KBin buffer into a new document.
func Decode(data []byte, opts ...kbinxml.Option) (*Document, error) {
	doc := New()
	if _, err := kbinxml.Decode(data, NewBuilder(doc), opts...); err != nil {
		return nil, err
	}
	return doc, nil
}

// Encode serializes the document to a KBin buffer.
func (d *Document) Encode(opts ...kbinxml.Option) ([]byte, error) {
	if d.root == nil {
		return nil, ErrNoRoot
	}
	return kbinxml.Encode[*Element](d, opts...)
}

// Root returns the root element, or nil for an empty document.
func (d *Document) Root() *Element {
	return d.root
}

func (d *Document) Name(e *Element) string {
	return e.Name
}

func (d *Document) TypeName(e *Element) (string, bool) {
	return e.TypeName, e.TypeName != ""
}

func (d *Document) ElementCount(e *Element) (int, bool) {
	return e.Count, e.IsArray
}

func (d *Document) Text(e *Element) string {
	return e.Text
}

func (d *Document) Attributes(e *Element) []kbinxml.Attribute {
	return e.Attrs
}

func (d *Document) Children(e *Element) []*Element {
	return e.Children
}

func (d *Document) DeclaredEncoding() kbinxml.Encoding {
	return d.Encoding
}

func (d *Document) DeclaredCompression() kbinxml.Compression {
	return d.Compression
}
