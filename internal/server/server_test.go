package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/r9s-ai/seo-router/internal/config"
	"github.com/r9s-ai/seo-router/internal/metrics"
	"github.com/r9s-ai/seo-router/internal/requestid"
)

func writeConfig(t *testing.T, path, origin string, patterns ...string) {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "origin:\n  domain_source: %q\npatterns:\n", origin)
	if len(patterns) == 0 {
		b.Reset()
		fmt.Fprintf(&b, "origin:\n  domain_source: %q\n", origin)
	}
	for _, p := range patterns {
		fmt.Fprintf(&b, "  - pattern: %q\n    metadata_endpoint: \"https://meta.test/x/{id}\"\n", p)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
}

func newTestServer(t *testing.T, patterns ...string) (*Server, string, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "origin "+r.URL.Path)
	}))
	t.Cleanup(origin.Close)

	path := filepath.Join(t.TempDir(), "seo-router.yaml")
	writeConfig(t, path, origin.URL, patterns...)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	s, err := New(path, cfg, zap.NewNop(), metrics.New())
	require.NoError(t, err)
	return s, path, origin
}

func TestPublicRouter_RequestIDAndAccessLog(t *testing.T) {
	s, _, _ := newTestServer(t, "/provider/[^/]+")

	var buf bytes.Buffer
	r := NewRouter(s, log.New(&buf, "", 0), false)

	req := httptest.NewRequest(http.MethodGet, "/about", nil)
	req.Header.Set(requestid.HeaderKey, "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "origin /about", rec.Body.String())
	require.Equal(t, "req-1", rec.Header().Get(requestid.HeaderKey))

	line := buf.String()
	require.True(t, strings.HasPrefix(line, "[SEO] "), line)
	require.Contains(t, line, `GET "/about"`)
	require.Contains(t, line, "kind=passthrough")
	require.Contains(t, line, "request_id=req-1")
	require.Contains(t, line, "upstream_status=200")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Len(t, rec.Header().Get(requestid.HeaderKey), 36)
}

func TestPublicRouter_NoAccessLogWhenDisabled(t *testing.T) {
	s, _, _ := newTestServer(t)
	off := false
	s.Config().Logging.AccessLog = &off

	var buf bytes.Buffer
	r := NewRouter(s, log.New(&buf, "", 0), false)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, buf.String())
}

func TestAdminRouter_RoutesAndReload(t *testing.T) {
	s, path, origin := newTestServer(t, "/provider/[^/]+")
	r := NewAdminRouter(s)

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}
	reload := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/reload", nil))
		return rec
	}

	rec := get("/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"ok":true}`, rec.Body.String())

	var routesOut struct {
		Origin string `json:"origin"`
		Routes []struct {
			Index   int    `json:"index"`
			Pattern string `json:"pattern"`
		} `json:"routes"`
	}
	rec = get("/admin/routes")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &routesOut))
	require.Equal(t, origin.URL, routesOut.Origin)
	require.Len(t, routesOut.Routes, 1)
	require.Equal(t, "/provider/[^/]+", routesOut.Routes[0].Pattern)

	writeConfig(t, path, origin.URL, "/provider/[^/]+", "/experience/[^/]+")
	rec = reload()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 2, s.Dispatcher().Snapshot().Routes.Len())

	// a broken file keeps the running snapshot
	require.NoError(t, os.WriteFile(path, []byte("origin: {domain_source: \"https://a.test\"}\npatterns:\n  - pattern: \"/x/[\"\n    metadata_endpoint: \"https://m.test/{id}\"\n"), 0o600))
	rec = reload()
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "reload_failed")
	require.Equal(t, 2, s.Dispatcher().Snapshot().Routes.Len())
	require.Equal(t, origin.URL, s.Dispatcher().Snapshot().Origin.String())

	rec = get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `seo_router_config_reloads_total{result="ok"} 1`)
	require.Contains(t, rec.Body.String(), `seo_router_config_reloads_total{result="error"} 1`)

	rec = get("/admin/version")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"uptime_seconds"`)
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(recovery(zap.NewNop()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })
	r.GET("/abort", func(c *gin.Context) { panic(http.ErrAbortHandler) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal_error")

	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/abort", nil))
	})
}

func TestWatchConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seo-router.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var calls atomic.Int32
	require.NoError(t, watchConfig(ctx, path, func() error {
		calls.Add(1)
		return nil
	}, zap.NewNop()))

	// unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("b: 2\n"), 0o600))
	require.NoError(t, os.WriteFile(path, []byte("a: 2\n"), 0o600))

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 20*time.Millisecond)
}

func TestPIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "seo-router.pid")
	cfg := &config.Config{}
	cfg.Server.PidFile = path

	c, err := writePIDFile(cfg)
	require.NoError(t, err)
	require.NotNil(t, c)

	pid, err := ReadPIDFile(path)
	require.NoError(t, err)
	require.Equal(t, os.Getpid(), pid)

	require.NoError(t, c.Close())
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))

	c, err = writePIDFile(&config.Config{})
	require.NoError(t, err)
	require.Nil(t, c)
}

func TestAdminRouter_Token(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.Config().Server.AdminToken = "s3cret"
	r := NewAdminRouter(s)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/routes", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/routes", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
