package server

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/r9s-ai/seo-router/internal/logx"
	"github.com/r9s-ai/seo-router/internal/proxy"
	"github.com/r9s-ai/seo-router/internal/requestid"
)

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := requestid.FromHeader(c.GetHeader(requestid.HeaderKey))
		c.Header(requestid.HeaderKey, id)
		c.Set(requestid.HeaderKey, id)
		c.Next()
	}
}

func requestLoggerWithColor(l *log.Logger, color bool) gin.HandlerFunc {
	if l == nil {
		l = log.New(os.Stdout, "", log.LstdFlags)
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)

		fields := map[string]any{
			"latency_ms": latency.Milliseconds(),
		}
		if v := c.GetString(requestid.HeaderKey); v != "" {
			fields["request_id"] = v
		}
		if v, ok := c.Get(proxy.CtxKind); ok {
			fields["kind"] = v
		}
		if v, ok := c.Get(proxy.CtxPattern); ok {
			fields["pattern"] = v
		}
		if v, ok := c.Get(proxy.CtxUpstreamStatus); ok {
			fields["upstream_status"] = v
		}

		l.Println(logx.FormatRequestLine(time.Now(), status, latency, c.ClientIP(), c.Request.Method, c.Request.URL.Path, fields, color))
	}
}

// recovery is gin.Recovery with zap output. http.ErrAbortHandler is
// re-raised so net/http tears the connection down.
func recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if r == http.ErrAbortHandler {
				panic(r)
			}
			logger.Error("panic recovered",
				zap.Any("panic", r),
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetString(requestid.HeaderKey)),
				zap.Stack("stack"),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{
					"message": "internal error",
					"type":    "server_error",
					"code":    "internal_error",
				},
			})
		}()
		c.Next()
	}
}
