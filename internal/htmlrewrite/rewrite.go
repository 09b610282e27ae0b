// Package htmlrewrite streams an HTML document through an ElementHandler,
// one token at a time. Markup the handler leaves alone is copied as its raw
// bytes, so untouched parts of the document come out byte-for-byte.
package htmlrewrite

import (
	"errors"
	"io"

	xhtml "golang.org/x/net/html"
)

// Rewrite copies src to dst, giving h a chance to change every start tag.
// Only the current token is held in memory.
func Rewrite(dst io.Writer, src io.Reader, h ElementHandler) error {
	z := xhtml.NewTokenizer(src)
	for {
		tt := z.Next()
		switch tt {
		case xhtml.ErrorToken:
			if raw := z.Raw(); len(raw) > 0 {
				if _, err := dst.Write(raw); err != nil {
					return err
				}
			}
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return err
			}
			return nil
		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			if err := rewriteTag(dst, z, tt, h); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
		default:
			if _, err := dst.Write(z.Raw()); err != nil {
				return err
			}
		}
	}
}

func rewriteTag(dst io.Writer, z *xhtml.Tokenizer, tt xhtml.TokenType, h ElementHandler) error {
	// TagName and TagAttr lower-case and unescape in the tokenizer's buffer,
	// so keep the untouched bytes first.
	raw := append([]byte(nil), z.Raw()...)
	el := readElement(z, tt)
	if h != nil {
		h.Element(el)
	}

	if el.removed {
		if !el.hasChildren() {
			return nil
		}
		_, err := skipToEnd(z, el.tag)
		return err
	}

	out := raw
	if el.attrsChanged {
		out = el.render(raw)
	}
	if _, err := dst.Write(out); err != nil {
		return err
	}

	if el.inner == nil || !el.hasChildren() {
		return nil
	}
	if _, err := io.WriteString(dst, xhtml.EscapeString(*el.inner)); err != nil {
		return err
	}
	end, err := skipToEnd(z, el.tag)
	if len(end) > 0 {
		if _, werr := dst.Write(end); werr != nil {
			return werr
		}
	}
	return err
}

func readElement(z *xhtml.Tokenizer, tt xhtml.TokenType) *Element {
	name, hasAttr := z.TagName()
	el := &Element{
		tag:         string(name),
		selfClosing: tt == xhtml.SelfClosingTagToken,
	}
	for hasAttr {
		var k, v []byte
		k, v, hasAttr = z.TagAttr()
		el.attrs = append(el.attrs, xhtml.Attribute{Key: string(k), Val: string(v)})
	}
	return el
}

// skipToEnd discards tokens up to and including the end tag closing an
// element named tag, and returns that end tag's raw bytes. It returns io.EOF
// when the document ends first.
func skipToEnd(z *xhtml.Tokenizer, tag string) ([]byte, error) {
	depth := 1
	for {
		switch z.Next() {
		case xhtml.ErrorToken:
			return nil, z.Err()
		case xhtml.StartTagToken:
			if name, _ := z.TagName(); string(name) == tag {
				depth++
			}
		case xhtml.EndTagToken:
			raw := append([]byte(nil), z.Raw()...)
			if name, _ := z.TagName(); string(name) == tag {
				depth--
				if depth == 0 {
					return raw, nil
				}
			}
		}
	}
}
