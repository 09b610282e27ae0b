package htmlrewrite

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func rewriteString(t *testing.T, in string, h ElementHandler) string {
	t.Helper()
	var out bytes.Buffer
	if err := Rewrite(&out, strings.NewReader(in), h); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	return out.String()
}

func TestRewrite_NoopIsByteIdentical(t *testing.T) {
	in := "<!DOCTYPE html>\r\n<HTML lang=en><Head><TITLE>Old &amp; busted</TITLE>" +
		"<meta NAME='description' content=\"x\" >\n<!-- c --><script>if (a < b) {}</script>" +
		"<style>p>a{}</style></head><body class=x><p>t&eacute;xt<br/>tail"
	seen := 0
	got := rewriteString(t, in, HandlerFunc(func(el *Element) { seen++ }))
	if got != in {
		t.Fatalf("unexpected output:\n%q\nwant:\n%q", got, in)
	}
	if seen == 0 {
		t.Fatalf("handler was never called")
	}
}

func TestRewrite_NilHandler(t *testing.T) {
	in := "<p>a</p><meta name=x>"
	if got := rewriteString(t, in, nil); got != in {
		t.Fatalf("got %q", got)
	}
}

func TestRewrite_SetAttribute(t *testing.T) {
	in := `<head><meta name="description" content="old"><meta property="og:x" content="a" /><meta name="k"/></head>`
	got := rewriteString(t, in, HandlerFunc(func(el *Element) {
		if el.TagName() != "meta" {
			return
		}
		switch name, _ := el.GetAttribute("name"); name {
		case "description":
			el.SetAttribute("content", `new "quoted" & <b>`)
		case "k":
			el.SetAttribute("content", "added")
		}
		if p, _ := el.GetAttribute("property"); p == "og:x" {
			el.SetAttribute("content", "a")
		}
	}))
	want := `<head><meta name="description" content="new &#34;quoted&#34; &amp; &lt;b&gt;">` +
		`<meta property="og:x" content="a" /><meta name="k" content="added"/></head>`
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestRewrite_SetAttributeSameValueKeepsRaw(t *testing.T) {
	in := `<meta NAME=description content='same'   >`
	got := rewriteString(t, in, HandlerFunc(func(el *Element) {
		el.SetAttribute("content", "same")
	}))
	if got != in {
		t.Fatalf("got %q", got)
	}
}

func TestRewrite_SetInnerContent(t *testing.T) {
	in := `<html><head><title>Old <b>x</b></title></head><body><title>second</title></body></html>`
	got := rewriteString(t, in, HandlerFunc(func(el *Element) {
		if el.TagName() == "title" {
			el.SetInnerContent("New & <Improved>")
		}
	}))
	want := `<html><head><title>New &amp; &lt;Improved&gt;</title></head><body><title>New &amp; &lt;Improved&gt;</title></body></html>`
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestRewrite_SetInnerContentNested(t *testing.T) {
	in := `<div id=a><div>inner</div>rest</div><p>after</p>`
	got := rewriteString(t, in, HandlerFunc(func(el *Element) {
		if id, _ := el.GetAttribute("id"); id == "a" {
			el.SetInnerContent("x")
		}
	}))
	if want := `<div id=a>x</div><p>after</p>`; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestRewrite_SetInnerContentOnVoidIgnored(t *testing.T) {
	in := `<meta name=a><br/>`
	got := rewriteString(t, in, HandlerFunc(func(el *Element) {
		el.SetInnerContent("x")
	}))
	if got != in {
		t.Fatalf("got %q", got)
	}
}

func TestRewrite_Remove(t *testing.T) {
	in := `<head><meta name="robots" content="noindex"><meta name="a"><div class=drop><div>x</div></div><p>keep</p></head>`
	got := rewriteString(t, in, HandlerFunc(func(el *Element) {
		if v, _ := el.GetAttribute("name"); v == "robots" {
			el.Remove()
		}
		if v, _ := el.GetAttribute("class"); v == "drop" {
			el.Remove()
		}
	}))
	if want := `<head><meta name="a"><p>keep</p></head>`; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestRewrite_UnterminatedInnerContent(t *testing.T) {
	in := `<title>never closed`
	got := rewriteString(t, in, HandlerFunc(func(el *Element) {
		el.SetInnerContent("T")
	}))
	if got != "<title>T" {
		t.Fatalf("got %q", got)
	}
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestRewrite_ReadErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	err := Rewrite(io.Discard, io.MultiReader(strings.NewReader("<p>a"), failingReader{boom}), nil)
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestRewrite_WriteErrorPropagates(t *testing.T) {
	err := Rewrite(failingWriter{}, strings.NewReader("<p>a</p>"), nil)
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("err=%v", err)
	}
}
