package tree

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/twinfer/kbinxml/pkg/kbinxml"
)

const xmlIndent = "  "

// XML renders the document as XML text in its declared encoding. Node
// types and array lengths travel in the __type and __count attributes.
func (d *Document) XML() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.WriteXML(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteXML writes the XML rendition of d to w.
func (d *Document) WriteXML(w io.Writer) error {
	if d.root == nil {
		return ErrNoRoot
	}

	var body bytes.Buffer
	enc := xml.NewEncoder(&body)
	if err := writeElement(enc, d.root, 0); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}

	raw, err := d.Encoding.EncodeText(body.String())
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "<?xml version=\"1.0\" encoding=\"%s\"?>\n", d.Encoding); err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}

// writeElement indents only below containers; children of typed elements
// are written inline so whitespace never leaks into their text.
func writeElement(enc *xml.Encoder, e *Element, depth int) error {
	start := xml.StartElement{Name: xml.Name{Local: e.Name}}
	if e.TypeName != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: kbinxml.TypeAttr}, Value: e.TypeName})
		if e.IsArray {
			start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: kbinxml.CountAttr}, Value: strconv.Itoa(e.Count)})
		}
	}
	for _, a := range e.Attrs {
		if a.Name == kbinxml.TypeAttr || a.Name == kbinxml.CountAttr {
			return fmt.Errorf("%w: %q on element %q", ErrReservedAttribute, a.Name, e.Name)
		}
		if err := checkXMLText(a.Value); err != nil {
			return fmt.Errorf("attribute %q of element %q: %w", a.Name, e.Name, err)
		}
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: a.Name}, Value: a.Value})
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}

	if e.Text != "" && e.TypeName != "" {
		if err := checkXMLText(e.Text); err != nil {
			return fmt.Errorf("element %q: %w", e.Name, err)
		}
		if err := enc.EncodeToken(xml.CharData(e.Text)); err != nil {
			return err
		}
	}

	indent := e.TypeName == ""
	for _, c := range e.Children {
		if indent {
			if err := enc.EncodeToken(xml.CharData("\n" + strings.Repeat(xmlIndent, depth+1))); err != nil {
				return err
			}
		}
		if err := writeElement(enc, c, depth+1); err != nil {
			return err
		}
	}
	if indent && len(e.Children) > 0 {
		if err := enc.EncodeToken(xml.CharData("\n" + strings.Repeat(xmlIndent, depth))); err != nil {
			return err
		}
	}

	return enc.EncodeToken(start.End())
}

// checkXMLText rejects text encoding/xml would replace with U+FFFD.
func checkXMLText(s string) error {
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				return fmt.Errorf("%w: invalid UTF-8 at byte %d", ErrInvalidXMLChar, i)
			}
		}
		if !isXMLChar(r) {
			return fmt.Errorf("%w: %U at byte %d", ErrInvalidXMLChar, r, i)
		}
	}
	return nil
}

// isXMLChar follows the Char production of XML 1.0.
func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= utf8.MaxRune
}

// ParseXML reads an XML rendition produced by WriteXML or by hand. The
// declared charset selects the document's KBin encoding; UTF-8 is assumed
// when there is no declaration.
func ParseXML(r io.Reader) (*Document, error) {
	doc := New()

	// encoding/xml flattens CharsetReader errors, so keep ours for errors.Is
	var charsetErr error
	dec := xml.NewDecoder(r)
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		e, err := kbinxml.ParseEncoding(charset)
		if err != nil {
			charsetErr = err
			return nil, err
		}
		cs := e.Charset()
		if cs == nil || e == kbinxml.EncodingUTF8 {
			return input, nil
		}
		return cs.NewDecoder().Reader(input), nil
	}

	var (
		stack []*Element
		texts []*strings.Builder
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if charsetErr != nil {
				return nil, fmt.Errorf("parsing xml: %w", charsetErr)
			}
			return nil, fmt.Errorf("parsing xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.ProcInst:
			if t.Target != "xml" {
				continue
			}
			if charset := procInstParam(string(t.Inst), "encoding"); charset != "" {
				e, err := kbinxml.ParseEncoding(charset)
				if err != nil {
					return nil, err
				}
				doc.Encoding = e
			}

		case xml.StartElement:
			e, err := elementFromStart(t)
			if err != nil {
				return nil, err
			}
			if len(stack) == 0 {
				if doc.root != nil {
					return nil, fmt.Errorf("xml has more than one root element: %q after %q", e.Name, doc.root.Name)
				}
				doc.SetRoot(e)
			} else {
				stack[len(stack)-1].AppendChild(e)
			}
			stack = append(stack, e)
			texts = append(texts, &strings.Builder{})

		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			// text is what precedes the first child of a typed element
			if top := stack[len(stack)-1]; top.TypeName != "" && len(top.Children) == 0 {
				texts[len(texts)-1].Write(t)
			}

		case xml.EndElement:
			top := stack[len(stack)-1]
			top.Text = texts[len(texts)-1].String()
			stack = stack[:len(stack)-1]
			texts = texts[:len(texts)-1]
		}
	}

	if doc.root == nil {
		return nil, fmt.Errorf("parsing xml: %w", ErrNoRoot)
	}
	return doc, nil
}

func xmlName(n xml.Name) string {
	if n.Space != "" {
		return n.Space + ":" + n.Local
	}
	return n.Local
}

func elementFromStart(t xml.StartElement) (*Element, error) {
	e := NewElement(xmlName(t.Name))
	for _, a := range t.Attr {
		switch {
		case a.Name.Space == "" && a.Name.Local == kbinxml.TypeAttr:
			e.TypeName = a.Value
		case a.Name.Space == "" && a.Name.Local == kbinxml.CountAttr:
			n, err := strconv.Atoi(strings.TrimSpace(a.Value))
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%w: element %q has %s=%q", kbinxml.ErrMalformedScalar, e.Name, kbinxml.CountAttr, a.Value)
			}
			e.IsArray, e.Count = true, n
		case a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns"):
			// namespace declarations are not KBin attributes
		default:
			e.Attrs = append(e.Attrs, kbinxml.Attribute{Name: xmlName(a.Name), Value: a.Value})
		}
	}
	return e, nil
}

// procInstParam extracts param="value" from the body of an xml declaration.
func procInstParam(inst, param string) string {
	idx := strings.Index(inst, param+"=")
	if idx < 0 {
		return ""
	}
	rest := inst[idx+len(param)+1:]
	if rest == "" {
		return ""
	}
	quote := rest[0]
	if quote != '"' && quote != '\'' {
		return ""
	}
	end := strings.IndexByte(rest[1:], quote)
	if end < 0 {
		return ""
	}
	return rest[1 : end+1]
}
