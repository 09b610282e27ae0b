package htmlrewrite

import (
	"bytes"
	"strings"

	xhtml "golang.org/x/net/html"
)

// ElementHandler is anything that can transform a streamed element.
// Element is called once per start tag, in document order.
type ElementHandler interface {
	Element(el *Element)
}

// HandlerFunc adapts a function to ElementHandler.
type HandlerFunc func(el *Element)

func (f HandlerFunc) Element(el *Element) { f(el) }

// Element is the start tag currently passing through the rewriter.
// It is only valid for the duration of the handler call.
type Element struct {
	tag         string
	attrs       []xhtml.Attribute
	selfClosing bool

	attrsChanged bool
	removed      bool
	inner        *string
}

// TagName returns the lower-cased tag name.
func (e *Element) TagName() string { return e.tag }

// GetAttribute returns the value of the named attribute.
func (e *Element) GetAttribute(name string) (string, bool) {
	name = strings.ToLower(name)
	for _, a := range e.attrs {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttribute sets or adds an attribute. Setting an attribute to the value it
// already has is not a change, so the tag is written out untouched.
func (e *Element) SetAttribute(name, value string) {
	name = strings.ToLower(name)
	for i, a := range e.attrs {
		if a.Key == name {
			if a.Val == value {
				return
			}
			e.attrs[i].Val = value
			e.attrsChanged = true
			return
		}
	}
	e.attrs = append(e.attrs, xhtml.Attribute{Key: name, Val: value})
	e.attrsChanged = true
}

// SetInnerContent replaces the element's children with text. It has no
// effect on void or self-closing elements.
func (e *Element) SetInnerContent(text string) {
	if e.selfClosing || isVoid(e.tag) {
		return
	}
	e.inner = &text
}

// Remove drops the element and everything inside it.
func (e *Element) Remove() { e.removed = true }

// Removed reports whether Remove was called.
func (e *Element) Removed() bool { return e.removed }

func (e *Element) hasChildren() bool {
	return !e.selfClosing && !isVoid(e.tag)
}

func (e *Element) render(raw []byte) []byte {
	var b bytes.Buffer
	b.Grow(len(raw) + 64)
	b.WriteByte('<')
	b.WriteString(e.tag)
	for _, a := range e.attrs {
		b.WriteByte(' ')
		b.WriteString(a.Key)
		if a.Val == "" {
			continue
		}
		b.WriteString(`="`)
		b.WriteString(xhtml.EscapeString(a.Val))
		b.WriteByte('"')
	}
	switch {
	case bytes.HasSuffix(raw, []byte(" />")):
		b.WriteString(" />")
	case e.selfClosing:
		b.WriteString("/>")
	default:
		b.WriteByte('>')
	}
	return b.Bytes()
}

var voidElements = map[string]struct{}{
	"area": {}, "base": {}, "br": {}, "col": {}, "embed": {}, "hr": {}, "img": {},
	"input": {}, "link": {}, "meta": {}, "param": {}, "source": {}, "track": {}, "wbr": {},
}

func isVoid(tag string) bool {
	_, ok := voidElements[tag]
	return ok
}
