package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/r9s-ai/seo-router/internal/auth"
	"github.com/r9s-ai/seo-router/internal/version"
)

// NewRouter builds the public engine. Every path goes to the dispatcher so
// no origin route can be shadowed.
func NewRouter(s *Server, accessLogger *log.Logger, accessColor bool) *gin.Engine {
	r := gin.New()
	r.Use(requestIDMiddleware())
	if s.Config().AccessLogEnabled() {
		r.Use(requestLoggerWithColor(accessLogger, accessColor))
	}
	r.Use(recovery(s.logger))
	r.Any("/*path", s.disp.Handle)
	return r
}

// NewAdminRouter builds the admin engine served on server.admin_listen.
func NewAdminRouter(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(recovery(s.logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	admin := r.Group("/admin")
	admin.Use(auth.Middleware(s.Config().Server.AdminToken))
	admin.GET("/routes", func(c *gin.Context) {
		snap := s.disp.Snapshot()
		type route struct {
			Index            int    `json:"index"`
			Pattern          string `json:"pattern"`
			MetadataEndpoint string `json:"metadata_endpoint"`
		}
		pats := snap.Routes.Patterns()
		out := make([]route, 0, len(pats))
		for _, p := range pats {
			out = append(out, route{Index: p.Index, Pattern: p.Source, MetadataEndpoint: p.EndpointTemplate})
		}
		c.JSON(http.StatusOK, gin.H{
			"origin": snap.Origin.String(),
			"routes": out,
		})
	})
	admin.POST("/reload", func(c *gin.Context) {
		if err := s.Reload(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{
					"message": err.Error(),
					"type":    "config_error",
					"code":    "reload_failed",
				},
			})
			return
		}
		snap := s.disp.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"ok":       true,
			"origin":   snap.Origin.String(),
			"patterns": snap.Routes.Len(),
			"warnings": s.Config().Warnings,
		})
	})
	admin.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":        version.Get(),
			"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		})
	})
	return r
}
