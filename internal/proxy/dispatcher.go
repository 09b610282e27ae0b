// Package proxy classifies incoming requests and serves them from the origin,
// injecting route metadata into HTML pages and page-data JSON on the way.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/r9s-ai/seo-router/internal/metadata"
	"github.com/r9s-ai/seo-router/internal/metatags"
	"github.com/r9s-ai/seo-router/internal/metrics"
	"github.com/r9s-ai/seo-router/internal/pagedata"
	"github.com/r9s-ai/seo-router/internal/requestid"
	"github.com/r9s-ai/seo-router/internal/routes"
)

// Kind is the classification of a request.
type Kind string

const (
	KindDynamicPage         Kind = "dynamic_page"
	KindPageData            Kind = "page_data"
	KindPageDataPassThrough Kind = "page_data_passthrough"
	KindPassThrough         Kind = "passthrough"
)

// Gin context keys read by the access logger.
const (
	CtxKind           = "seo.kind"
	CtxPattern        = "seo.pattern"
	CtxUpstreamStatus = "seo.upstream_status"
)

const maxPageDataBytes = 32 << 20

// Snapshot is the reloadable routing state. It is replaced as a whole.
type Snapshot struct {
	Origin *url.URL
	Routes *routes.Registry
}

// Decision is the outcome of Classify.
type Decision struct {
	Kind    Kind
	Pattern *routes.Pattern
	// MetaPath is the path used to derive the metadata identifier: the request
	// path for dynamic pages, the Referer path for page data.
	MetaPath string
}

// Classify decides how a request is served. path is the escaped request
// path, the same form refererPath derives from a Referer. It does no I/O.
func Classify(reg *routes.Registry, path, referer string) Decision {
	if p, ok := reg.Match(path); ok {
		return Decision{Kind: KindDynamicPage, Pattern: p, MetaPath: path}
	}
	if !pagedata.IsPageDataPath(path) {
		return Decision{Kind: KindPassThrough}
	}
	refPath, ok := refererPath(referer)
	if !ok {
		return Decision{Kind: KindPageDataPassThrough}
	}
	p, ok := reg.Match(refPath)
	if !ok {
		return Decision{Kind: KindPageDataPassThrough}
	}
	return Decision{Kind: KindPageData, Pattern: p, MetaPath: routes.NormalizePath(refPath)}
}

func refererPath(referer string) (string, bool) {
	referer = strings.TrimSpace(referer)
	if referer == "" {
		return "", false
	}
	u, err := url.Parse(referer)
	if err != nil {
		return "", false
	}
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	return p, true
}

// Dispatcher is the single catch-all handler of the public listener.
type Dispatcher struct {
	// HTTP is used for origin GETs; its Transport also backs pass-through.
	HTTP          *http.Client
	Resolver      *metadata.Resolver
	OriginTimeout time.Duration
	Logger        *zap.Logger
	Metrics       *metrics.Metrics

	snapshot atomic.Pointer[Snapshot]
}

// Store replaces the routing snapshot used by subsequent requests.
func (d *Dispatcher) Store(s *Snapshot) {
	d.snapshot.Store(s)
}

// Snapshot returns the current routing snapshot.
func (d *Dispatcher) Snapshot() *Snapshot {
	return d.snapshot.Load()
}

// Handle classifies the request and serves it as a dynamic page, page data
// or pass-through.
func (d *Dispatcher) Handle(gc *gin.Context) {
	snap := d.Snapshot()
	if snap == nil || snap.Origin == nil {
		abortBadGateway(gc, codeOriginUnavailable, "origin is not configured")
		return
	}

	path := gc.Request.URL.EscapedPath()
	dec := Classify(snap.Routes, path, gc.GetHeader("Referer"))
	gc.Set(CtxKind, string(dec.Kind))
	if dec.Pattern != nil {
		gc.Set(CtxPattern, dec.Pattern.Source)
	}
	d.Metrics.ObserveRequest(string(dec.Kind))

	logger := d.logger().With(
		zap.String("request_id", gc.GetString(requestid.HeaderKey)),
		zap.String("path", path),
	)

	switch dec.Kind {
	case KindDynamicPage:
		logger.Debug("dynamic page detected", zap.String("pattern", dec.Pattern.Source))
		d.serveDynamicPage(gc, snap.Origin, dec, logger)
	case KindPageData:
		logger.Debug("page data detected",
			zap.String("pattern", dec.Pattern.Source),
			zap.String("referer_path", dec.MetaPath),
		)
		d.servePageData(gc, snap.Origin, dec, logger)
	default:
		d.servePassThrough(gc, snap.Origin, logger)
	}
}

func (d *Dispatcher) serveDynamicPage(gc *gin.Context, origin *url.URL, dec Decision, logger *zap.Logger) {
	ctx, cancel := d.originContext(gc.Request.Context())
	defer cancel()

	resp, err := d.getOrigin(ctx, origin, gc.Request.URL)
	if err != nil {
		d.originFailed(gc, err, logger)
		return
	}
	defer resp.Body.Close()
	gc.Set(CtxUpstreamStatus, resp.StatusCode)

	if resp.StatusCode >= http.StatusBadRequest || !isHTML(resp.Header) {
		d.relay(gc, resp, logger)
		return
	}

	body, closeBody, ok, err := decodeBody(resp)
	if err != nil {
		d.Metrics.ObserveUpstreamError("origin_decode")
		logger.Warn("decode origin body failed", zap.Error(err))
		abortBadGateway(gc, codeOriginUnavailable, "origin returned an unreadable body")
		return
	}
	if !ok {
		logger.Debug("origin body encoding not rewritable, streaming unchanged",
			zap.String("content_encoding", resp.Header.Get("Content-Encoding")),
		)
		d.relay(gc, resp, logger)
		return
	}
	if closeBody != nil {
		defer func() { _ = closeBody() }()
	}

	rec, err := d.Resolver.Resolve(ctx, dec.MetaPath, dec.Pattern.EndpointTemplate)
	if err != nil {
		d.metadataFailed(gc, err, logger)
		return
	}

	copyHeaders(gc.Writer.Header(), resp.Header, dropOnRewrite...)
	gc.Status(resp.StatusCode)

	fw := newFlushWriter(gc.Writer)
	err = metatags.Apply(fw, body, rec)
	if ferr := fw.Flush(); err == nil {
		err = ferr
	}
	d.streamDone(err, logger)
}

func (d *Dispatcher) servePageData(gc *gin.Context, origin *url.URL, dec Decision, logger *zap.Logger) {
	ctx, cancel := d.originContext(gc.Request.Context())
	defer cancel()

	resp, err := d.getOrigin(ctx, origin, gc.Request.URL)
	if err != nil {
		d.originFailed(gc, err, logger)
		return
	}
	defer resp.Body.Close()
	gc.Set(CtxUpstreamStatus, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.relay(gc, resp, logger)
		return
	}

	body, closeBody, ok, err := decodeBody(resp)
	if err != nil || !ok {
		d.Metrics.ObserveUpstreamError("origin_decode")
		logger.Warn("page data body is not readable",
			zap.String("content_encoding", resp.Header.Get("Content-Encoding")),
			zap.Error(err),
		)
		abortBadGateway(gc, codeInvalidPageData, "origin returned an unreadable page data body")
		return
	}
	if closeBody != nil {
		defer func() { _ = closeBody() }()
	}
	raw, err := io.ReadAll(io.LimitReader(body, maxPageDataBytes+1))
	if err != nil {
		d.originFailed(gc, fmt.Errorf("read page data: %w", err), logger)
		return
	}
	if len(raw) > maxPageDataBytes {
		d.Metrics.ObserveUpstreamError("page_data_too_large")
		abortBadGateway(gc, codeInvalidPageData, "page data body exceeds limit")
		return
	}

	rec, err := d.Resolver.Resolve(ctx, dec.MetaPath, dec.Pattern.EndpointTemplate)
	if err != nil {
		d.metadataFailed(gc, err, logger)
		return
	}

	out, err := pagedata.MergeJSON(raw, rec)
	if err != nil {
		d.Metrics.ObserveUpstreamError("page_data_merge")
		logger.Warn("merge page data failed", zap.Error(err))
		abortBadGateway(gc, codeInvalidPageData, "origin page data is not a JSON object")
		return
	}
	gc.Data(http.StatusOK, "application/json", out)
}

// relay writes the origin response unchanged except for X-Robots-Tag.
func (d *Dispatcher) relay(gc *gin.Context, resp *http.Response, logger *zap.Logger) {
	copyHeaders(gc.Writer.Header(), resp.Header, hopHeaders...)
	gc.Status(resp.StatusCode)
	fw := newFlushWriter(gc.Writer)
	_, err := io.Copy(fw, resp.Body)
	if ferr := fw.Flush(); err == nil {
		err = ferr
	}
	d.streamDone(err, logger)
}

func (d *Dispatcher) getOrigin(ctx context.Context, origin *url.URL, in *url.URL) (*http.Response, error) {
	target := originURL(origin, in)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build origin request %q: %w", target, err)
	}
	resp, err := d.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("get origin %q: %w", target, err)
	}
	return resp, nil
}

// originURL joins the origin base with the incoming path and query.
func originURL(origin *url.URL, in *url.URL) string {
	u := *origin
	u.Path = singleJoiningSlash(origin.Path, in.Path)
	if in.RawPath != "" {
		u.RawPath = singleJoiningSlash(origin.EscapedPath(), in.RawPath)
	} else {
		u.RawPath = ""
	}
	u.RawQuery = in.RawQuery
	u.Fragment = ""
	return u.String()
}

func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}

func (d *Dispatcher) originContext(parent context.Context) (context.Context, context.CancelFunc) {
	if d.OriginTimeout > 0 {
		return context.WithTimeout(parent, d.OriginTimeout)
	}
	return context.WithCancel(parent)
}

func (d *Dispatcher) originFailed(gc *gin.Context, err error, logger *zap.Logger) {
	if isClientDisconnectErr(err) {
		logger.Debug("client went away before origin responded", zap.Error(err))
		gc.Abort()
		return
	}
	d.Metrics.ObserveUpstreamError("origin")
	logger.Warn("origin request failed", zap.Error(err))
	abortBadGateway(gc, codeOriginUnavailable, "origin request failed")
}

func (d *Dispatcher) metadataFailed(gc *gin.Context, err error, logger *zap.Logger) {
	if isClientDisconnectErr(err) {
		logger.Debug("client went away during metadata fetch", zap.Error(err))
		gc.Abort()
		return
	}
	d.Metrics.ObserveUpstreamError("metadata")
	msg := "metadata request failed"
	switch {
	case errors.Is(err, metadata.ErrDecode):
		msg = "metadata endpoint returned invalid JSON"
	case errors.Is(err, metadata.ErrTooLarge):
		msg = "metadata response exceeds limit"
	}
	abortBadGateway(gc, codeMetadataUnavailable, msg)
}

func (d *Dispatcher) streamDone(err error, logger *zap.Logger) {
	if err == nil {
		return
	}
	if isClientDisconnectErr(err) {
		logger.Debug("client disconnected during stream", zap.Error(err))
		return
	}
	d.Metrics.ObserveUpstreamError("stream")
	logger.Warn("stream to client interrupted", zap.Error(err))
}

func (d *Dispatcher) client() *http.Client {
	if d.HTTP != nil {
		return d.HTTP
	}
	return http.DefaultClient
}

func (d *Dispatcher) logger() *zap.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return zap.NewNop()
}
