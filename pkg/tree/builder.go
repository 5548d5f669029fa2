package tree

import "github.com/twinfer/kbinxml/pkg/kbinxml"

// Builder fills a Document from decoder events.
type Builder struct {
	doc *Document
}

// NewBuilder returns a builder that installs its result in doc.
func NewBuilder(doc *Document) *Builder {
	return &Builder{doc: doc}
}

func (b *Builder) CreateElement(name string) *Element {
	return NewElement(name)
}

func (b *Builder) AppendChild(parent, child *Element) {
	parent.AppendChild(child)
}

func (b *Builder) SetAttribute(e *Element, name, value string) {
	e.SetAttr(name, value)
}

func (b *Builder) SetText(e *Element, text string) {
	e.Text = text
}

func (b *Builder) SetTypeName(e *Element, typeName string) {
	e.TypeName = typeName
}

func (b *Builder) SetElementCount(e *Element, n int) {
	e.IsArray = true
	e.Count = n
}

func (b *Builder) Finalize(root *Element, h kbinxml.Header) {
	b.doc.SetRoot(root)
	b.doc.Encoding = h.Encoding
	b.doc.Compression = h.Compression
}
