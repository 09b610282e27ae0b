package proxy

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"
)

func TestCopyHeaders(t *testing.T) {
	src := http.Header{}
	src.Set("X-Robots-Tag", "noindex")
	src.Set("Content-Length", "10")
	src.Set("Connection", "keep-alive")
	src.Add("Set-Cookie", "a=1")
	src.Add("Set-Cookie", "b=2")

	dst := http.Header{}
	copyHeaders(dst, src, dropOnRewrite...)
	if dst.Get("X-Robots-Tag") != "" || dst.Get("Content-Length") != "" || dst.Get("Connection") != "" {
		t.Fatalf("unexpected headers: %#v", dst)
	}
	if got := dst.Values("Set-Cookie"); len(got) != 2 {
		t.Fatalf("set-cookie=%v", got)
	}

	dst = http.Header{}
	copyHeaders(dst, src)
	if dst.Get("Content-Length") != "10" || dst.Get("X-Robots-Tag") != "" {
		t.Fatalf("unexpected headers: %#v", dst)
	}
}

func TestIsHTML(t *testing.T) {
	for ct, want := range map[string]bool{
		"":                          true,
		"text/html":                 true,
		"Text/HTML; charset=utf-8":  true,
		"application/xhtml+xml":     true,
		"application/json":          false,
		"text/plain; charset=utf-8": false,
	} {
		h := http.Header{}
		if ct != "" {
			h.Set("Content-Type", ct)
		}
		if got := isHTML(h); got != want {
			t.Fatalf("isHTML(%q)=%v want %v", ct, got, want)
		}
	}
}

func TestDecodeBody(t *testing.T) {
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, _ = io.WriteString(zw, "<title>x</title>")
	_ = zw.Close()

	resp := &http.Response{Header: http.Header{"Content-Encoding": {"gzip"}}, Body: io.NopCloser(&gz)}
	r, closeFn, ok, err := decodeBody(resp)
	if err != nil || !ok || closeFn == nil {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	b, _ := io.ReadAll(r)
	if string(b) != "<title>x</title>" || resp.Header.Get("Content-Encoding") != "" {
		t.Fatalf("body=%q header=%v", b, resp.Header)
	}

	resp = &http.Response{Header: http.Header{"Content-Encoding": {"br"}}, Body: io.NopCloser(strings.NewReader("x"))}
	if _, _, ok, err := decodeBody(resp); ok || err != nil {
		t.Fatalf("br must stream unchanged: ok=%v err=%v", ok, err)
	}

	resp = &http.Response{Header: http.Header{"Content-Encoding": {"gzip"}}, Body: io.NopCloser(strings.NewReader("not gzip"))}
	if _, _, _, err := decodeBody(resp); err == nil {
		t.Fatalf("expected gzip header error")
	}
}

func TestFlushWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	fw := newFlushWriter(rec)
	_, _ = fw.Write([]byte("small"))
	if rec.Body.Len() != 0 || rec.Flushed {
		t.Fatalf("small writes must stay buffered")
	}
	_, _ = fw.Write(bytes.Repeat([]byte("x"), rewriteBufferSize+1))
	if !rec.Flushed || rec.Body.Len() == 0 {
		t.Fatalf("large write must reach the client")
	}
	if err := fw.Flush(); err != nil {
		t.Fatal(err)
	}
	if rec.Body.Len() != rewriteBufferSize+6 {
		t.Fatalf("len=%d", rec.Body.Len())
	}
}

func TestIsClientDisconnectErr(t *testing.T) {
	for _, err := range []error{
		context.Canceled,
		fmt.Errorf("wrapped: %w", context.Canceled),
		syscall.EPIPE,
		&net.OpError{Op: "write", Err: syscall.ECONNRESET},
		errors.New("write tcp: broken pipe"),
	} {
		if !isClientDisconnectErr(err) {
			t.Fatalf("expected disconnect: %v", err)
		}
	}
	for _, err := range []error{nil, errors.New("connection refused"), context.DeadlineExceeded} {
		if isClientDisconnectErr(err) {
			t.Fatalf("unexpected disconnect: %v", err)
		}
	}
}
