package tree

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/twinfer/kbinxml/pkg/kbinxml"
	"gopkg.in/yaml.v3"
)

// documentDoc is the serializable form shared by the JSON, YAML and CBOR
// renditions. Slices keep attribute and child order.
type documentDoc struct {
	Encoding    string      `json:"encoding" yaml:"encoding"`
	Compression string      `json:"compression" yaml:"compression"`
	Root        *elementDoc `json:"root" yaml:"root"`
}

type elementDoc struct {
	Name     string       `json:"name" yaml:"name"`
	Type     string       `json:"type,omitempty" yaml:"type,omitempty"`
	Count    *int         `json:"count,omitempty" yaml:"count,omitempty"`
	Text     string       `json:"text,omitempty" yaml:"text,omitempty"`
	Attrs    []attrDoc    `json:"attrs,omitempty" yaml:"attrs,omitempty"`
	Children []elementDoc `json:"children,omitempty" yaml:"children,omitempty"`
}

type attrDoc struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// cborEnc uses Core Deterministic Encoding so equal trees give equal bytes.
var cborEnc cbor.EncMode

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("tree: CBOR encoder initialization failed: " + err.Error())
	}
}

func (d *Document) toDoc() documentDoc {
	out := documentDoc{Encoding: d.Encoding.String(), Compression: d.Compression.String()}
	if d.root != nil {
		root := toElementDoc(d.root)
		out.Root = &root
	}
	return out
}

func toElementDoc(e *Element) elementDoc {
	out := elementDoc{Name: e.Name, Type: e.TypeName, Text: e.Text}
	if e.IsArray {
		n := e.Count
		out.Count = &n
	}
	for _, a := range e.Attrs {
		out.Attrs = append(out.Attrs, attrDoc{Name: a.Name, Value: a.Value})
	}
	for _, c := range e.Children {
		out.Children = append(out.Children, toElementDoc(c))
	}
	return out
}

func (d *Document) fromDoc(in documentDoc) error {
	fresh := New()
	if in.Encoding != "" {
		e, err := kbinxml.ParseEncoding(in.Encoding)
		if err != nil {
			return err
		}
		fresh.Encoding = e
	}
	if in.Compression != "" {
		c, err := kbinxml.ParseCompression(in.Compression)
		if err != nil {
			return err
		}
		fresh.Compression = c
	}
	if in.Root == nil {
		return ErrNoRoot
	}
	fresh.SetRoot(fromElementDoc(*in.Root))
	*d = *fresh
	return nil
}

func fromElementDoc(in elementDoc) *Element {
	e := &Element{Name: in.Name, TypeName: in.Type, Text: in.Text}
	if in.Count != nil {
		e.IsArray, e.Count = true, *in.Count
	}
	for _, a := range in.Attrs {
		e.Attrs = append(e.Attrs, kbinxml.Attribute{Name: a.Name, Value: a.Value})
	}
	for _, c := range in.Children {
		e.AppendChild(fromElementDoc(c))
	}
	return e
}

func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.toDoc())
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var in documentDoc
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	return d.fromDoc(in)
}

func (d *Document) MarshalYAML() (any, error) {
	return d.toDoc(), nil
}

func (d *Document) UnmarshalYAML(value *yaml.Node) error {
	var in documentDoc
	if err := value.Decode(&in); err != nil {
		return err
	}
	return d.fromDoc(in)
}

func (d *Document) MarshalCBOR() ([]byte, error) {
	return cborEnc.Marshal(d.toDoc())
}

func (d *Document) UnmarshalCBOR(data []byte) error {
	var in documentDoc
	if err := cbor.Unmarshal(data, &in); err != nil {
		return err
	}
	return d.fromDoc(in)
}

// Structured returns the document as plain maps and slices, the shape
// message pipelines expect for structured payloads.
func (d *Document) Structured() (map[string]any, error) {
	raw, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FromStructured rebuilds a document from the shape returned by Structured.
func FromStructured(v any) (*Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling structured document: %w", err)
	}
	doc := New()
	if err := doc.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	return doc, nil
}

// StructuredElement returns a single element in the structured shape.
func StructuredElement(e *Element) (map[string]any, error) {
	raw, err := json.Marshal(toElementDoc(e))
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
