package proxy

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// servePassThrough forwards the request as-is. Only the Host and the
// X-Robots-Tag response header are touched.
func (d *Dispatcher) servePassThrough(gc *gin.Context, origin *url.URL, logger *zap.Logger) {
	rp := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			target := originURL(origin, req.URL)
			u, err := url.Parse(target)
			if err == nil {
				req.URL = u
			}
			req.Host = origin.Host
			if _, ok := req.Header["User-Agent"]; !ok {
				// keep the default client from adding its own
				req.Header.Set("User-Agent", "")
			}
		},
		Transport:     d.client().Transport,
		FlushInterval: -1,
		ModifyResponse: func(resp *http.Response) error {
			resp.Header.Del(headerRobotsTag)
			gc.Set(CtxUpstreamStatus, resp.StatusCode)
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			if isClientDisconnectErr(err) {
				logger.Debug("client went away during pass-through", zap.Error(err))
				gc.Abort()
				return
			}
			d.Metrics.ObserveUpstreamError("origin")
			logger.Warn("pass-through request failed", zap.Error(err))
			abortBadGateway(gc, codeOriginUnavailable, "origin request failed")
		},
	}

	defer func() {
		if r := recover(); r != nil {
			if r == http.ErrAbortHandler {
				// Body cut mid-stream. net/http drops the connection so the
				// client cannot mistake it for a complete response.
				logger.Debug("pass-through stream aborted")
			}
			panic(r)
		}
	}()
	rp.ServeHTTP(gc.Writer, gc.Request)
}
