// Package metatags injects a metadata.Record into the head of an HTML page:
// the <title> text, the content of SEO and social <meta> tags, and the
// removal of robots noindex.
package metatags

import (
	"io"

	"github.com/r9s-ai/seo-router/internal/htmlrewrite"
	"github.com/r9s-ai/seo-router/internal/metadata"
)

// Rule sets Target on a <meta> whose Selector attribute equals Value.
type Rule struct {
	Selector string
	Value    string
	Target   string
	Field    metadata.Field
}

// DefaultRules covers plain, twitter, schema.org (itemprop) and Open Graph tags.
var DefaultRules = []Rule{
	{Selector: "name", Value: "title", Target: "content", Field: metadata.FieldTitle},
	{Selector: "name", Value: "description", Target: "content", Field: metadata.FieldDescription},
	{Selector: "name", Value: "image", Target: "content", Field: metadata.FieldImage},
	{Selector: "name", Value: "keywords", Target: "content", Field: metadata.FieldKeywords},
	{Selector: "name", Value: "twitter:title", Target: "content", Field: metadata.FieldTitle},
	{Selector: "name", Value: "twitter:description", Target: "content", Field: metadata.FieldDescription},
	{Selector: "itemprop", Value: "name", Target: "content", Field: metadata.FieldTitle},
	{Selector: "itemprop", Value: "description", Target: "content", Field: metadata.FieldDescription},
	{Selector: "itemprop", Value: "image", Target: "content", Field: metadata.FieldImage},
	{Selector: "property", Value: "og:title", Target: "content", Field: metadata.FieldTitle},
	{Selector: "property", Value: "og:description", Target: "content", Field: metadata.FieldDescription},
	{Selector: "property", Value: "og:image", Target: "content", Field: metadata.FieldImage},
}

// Rewriter is an htmlrewrite.ElementHandler applying Rules for one Record.
type Rewriter struct {
	Record metadata.Record
	Rules  []Rule
}

// NewRewriter returns a Rewriter applying rec.
func NewRewriter(rec metadata.Record) *Rewriter {
	return &Rewriter{Record: rec, Rules: DefaultRules}
}

// Element applies every rule matching el.
func (r *Rewriter) Element(el *htmlrewrite.Element) {
	switch el.TagName() {
	case "title":
		if v, ok := r.Record.Get(metadata.FieldTitle); ok {
			el.SetInnerContent(v)
		}
	case "meta":
		if isNoindex(el) {
			el.Remove()
			return
		}
		for _, rule := range r.Rules {
			if got, ok := el.GetAttribute(rule.Selector); !ok || got != rule.Value {
				continue
			}
			if v, ok := r.Record.Get(rule.Field); ok {
				el.SetAttribute(rule.Target, v)
			}
		}
	}
}

func isNoindex(el *htmlrewrite.Element) bool {
	name, _ := el.GetAttribute("name")
	content, _ := el.GetAttribute("content")
	return name == "robots" && content == "noindex"
}

// Apply streams src to dst with rec injected.
func Apply(dst io.Writer, src io.Reader, rec metadata.Record) error {
	return htmlrewrite.Rewrite(dst, src, NewRewriter(rec))
}
