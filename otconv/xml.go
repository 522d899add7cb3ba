package otconv

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// The textual round-trip surface. Converters read from and write into a
// generic tag/attribute/child-element tree; parsing and serializing the
// tree to actual XML text is handled here with the standard library's
// encoding/xml tokenizer, the same way the TTX comparison fixtures do it.

// Attr is one attribute of an element.
type Attr struct {
	Name  string
	Value string
}

// Element is one node of the parsed content tree.
type Element struct {
	Name     string
	Attrs    []Attr
	Children []*Element
	Text     string
	// Comment carries an informational XML comment following this element
	// (computed counts, name-table annotations).
	Comment string
}

// NewElement creates an element with the given tag name and attributes.
func NewElement(name string, attrs ...Attr) *Element {
	return &Element{Name: name, Attrs: attrs}
}

// Attr returns the value of the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// IntAttr parses the named attribute as a decimal or 0x-prefixed integer.
func (e *Element) IntAttr(name string) (int, error) {
	s, ok := e.Attr(name)
	if !ok {
		return 0, errFormat(fmt.Sprintf("<%s> is missing attribute %q", e.Name, name))
	}
	return parseIntAttr(s)
}

// SetAttr appends an attribute.
func (e *Element) SetAttr(name, value string) *Element {
	e.Attrs = append(e.Attrs, Attr{Name: name, Value: value})
	return e
}

// AppendChild appends a child element and returns it.
func (e *Element) AppendChild(child *Element) *Element {
	e.Children = append(e.Children, child)
	return child
}

// AppendComment appends an informational comment in child position.
func (e *Element) AppendComment(text string) {
	e.Children = append(e.Children, &Element{Comment: text})
}

// isComment reports whether this node is a bare comment placeholder.
func (e *Element) isComment() bool {
	return e.Name == "" && e.Comment != ""
}

// --- Serialization ---------------------------------------------------------

// WriteXML serializes the element tree as indented XML text.
func (e *Element) WriteXML(w io.Writer) error {
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := e.encode(enc); err != nil {
		return err
	}
	return enc.Flush()
}

func (e *Element) encode(enc *xml.Encoder) error {
	if e.isComment() {
		return enc.EncodeToken(xml.Comment(" " + e.Comment + " "))
	}
	start := xml.StartElement{Name: xml.Name{Local: e.Name}}
	for _, a := range e.Attrs {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: a.Name}, Value: a.Value})
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if e.Text != "" {
		if err := enc.EncodeToken(xml.CharData(e.Text)); err != nil {
			return err
		}
	}
	for _, child := range e.Children {
		if err := child.encode(enc); err != nil {
			return err
		}
	}
	if err := enc.EncodeToken(xml.EndElement{Name: start.Name}); err != nil {
		return err
	}
	if e.Comment != "" {
		return enc.EncodeToken(xml.Comment(" " + e.Comment + " "))
	}
	return nil
}

// String renders the element tree as XML text, for logging and tests.
func (e *Element) String() string {
	var buf bytes.Buffer
	if err := e.WriteXML(&buf); err != nil {
		return "<!-- " + err.Error() + " -->"
	}
	return buf.String()
}

// ParseXML parses XML text into an element tree. Comments are dropped:
// they only carry informational annotations which decode reconstructs.
func ParseXML(data []byte) (*Element, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var root *Element
	var stack []*Element
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errFormat("malformed XML: " + err.Error())
		}
		switch t := tok.(type) {
		case xml.StartElement:
			e := NewElement(t.Name.Local)
			for _, a := range t.Attr {
				e.SetAttr(a.Name.Local, a.Value)
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, errFormat("multiple root elements")
				}
				root = e
			} else {
				stack[len(stack)-1].AppendChild(e)
			}
			stack = append(stack, e)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, errFormat("unbalanced XML end tag")
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				text := strings.TrimSpace(string(t))
				if text != "" {
					stack[len(stack)-1].Text += text
				}
			}
		}
	}
	if root == nil {
		return nil, errFormat("empty XML document")
	}
	return root, nil
}
