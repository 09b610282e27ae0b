package proxy

import (
	"bufio"
	"compress/gzip"
	"io"
	"net/http"
	"strings"
)

const (
	contentEncodingGzip     = "gzip"
	contentEncodingIdentity = "identity"

	headerRobotsTag = "X-Robots-Tag"

	rewriteBufferSize = 32 << 10
)

var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// dropOnRewrite lists headers that no longer describe a rewritten body.
var dropOnRewrite = append(append([]string{}, hopHeaders...), "Content-Length")

// copyHeaders copies origin headers to dst, dropping X-Robots-Tag and any
// names in drop.
func copyHeaders(dst, src http.Header, drop ...string) {
	for k, vs := range src {
		if strings.EqualFold(k, headerRobotsTag) || containsFold(drop, k) {
			continue
		}
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func isHTML(h http.Header) bool {
	ct := strings.ToLower(strings.TrimSpace(h.Get("Content-Type")))
	return ct == "" || strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// decodeBody returns a reader over the decoded origin body. ok is false when
// the body uses an encoding the rewriter cannot read; the caller then streams
// it untouched.
func decodeBody(resp *http.Response) (r io.Reader, closeFn func() error, ok bool, err error) {
	ce := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch ce {
	case "", contentEncodingIdentity:
		return resp.Body, nil, true, nil
	case contentEncodingGzip:
		gr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, nil, false, err
		}
		resp.Header.Del("Content-Encoding")
		return gr, gr.Close, true, nil
	default:
		return resp.Body, nil, false, nil
	}
}

// flushWriter buffers small token writes and pushes them to the client
// whenever the buffer fills.
type flushWriter struct {
	bw *bufio.Writer
	f  http.Flusher
}

func newFlushWriter(w http.ResponseWriter) *flushWriter {
	fw := &flushWriter{bw: bufio.NewWriterSize(w, rewriteBufferSize)}
	if f, ok := w.(http.Flusher); ok {
		fw.f = f
	}
	return fw
}

func (w *flushWriter) Write(p []byte) (int, error) {
	before := w.bw.Buffered()
	n, err := w.bw.Write(p)
	if err == nil && w.f != nil && w.bw.Buffered() < before+n {
		// bufio wrote through to the client during this call.
		w.f.Flush()
	}
	return n, err
}

func (w *flushWriter) Flush() error {
	if err := w.bw.Flush(); err != nil {
		return err
	}
	if w.f != nil {
		w.f.Flush()
	}
	return nil
}
