package server

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/r9s-ai/seo-router/internal/config"
	"github.com/r9s-ai/seo-router/internal/metadata"
	"github.com/r9s-ai/seo-router/internal/metrics"
	"github.com/r9s-ai/seo-router/internal/proxy"
)

// Server owns the dispatcher and the reloadable parts of the configuration.
type Server struct {
	cfgPath string
	logger  *zap.Logger
	metrics *metrics.Metrics
	disp    *proxy.Dispatcher

	reloadMu  sync.Mutex
	cfg       atomic.Pointer[config.Config]
	startedAt time.Time
}

// New builds a Server from an already loaded config. cfgPath is re-read on
// every Reload.
func New(cfgPath string, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := &http.Client{
		Transport: http.DefaultTransport.(*http.Transport).Clone(),
	}
	s := &Server{
		cfgPath: cfgPath,
		logger:  logger,
		metrics: m,
		disp: &proxy.Dispatcher{
			HTTP: httpClient,
			Resolver: &metadata.Resolver{
				HTTP:    httpClient,
				Timeout: time.Duration(cfg.Metadata.TimeoutMs) * time.Millisecond,
				Logger:  logger.Named("metadata"),
				Metrics: m,
			},
			OriginTimeout: time.Duration(cfg.Origin.TimeoutMs) * time.Millisecond,
			Logger:        logger.Named("proxy"),
			Metrics:       m,
		},
		startedAt: time.Now(),
	}
	snap, err := snapshotFrom(cfg)
	if err != nil {
		return nil, err
	}
	s.disp.Store(snap)
	s.cfg.Store(cfg)
	return s, nil
}

func snapshotFrom(cfg *config.Config) (*proxy.Snapshot, error) {
	origin, err := cfg.OriginURL()
	if err != nil {
		return nil, err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	return &proxy.Snapshot{Origin: origin, Routes: reg}, nil
}

// Dispatcher returns the public request handler.
func (s *Server) Dispatcher() *proxy.Dispatcher { return s.disp }

// Config returns the most recently loaded config.
func (s *Server) Config() *config.Config { return s.cfg.Load() }

// Metrics returns the collectors served on /metrics.
func (s *Server) Metrics() *metrics.Metrics { return s.metrics }

// Reload re-reads the config file and swaps in the new patterns and origin.
// On any error the running snapshot is kept. Listener addresses and timeouts
// only change on restart.
func (s *Server) Reload() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	err := s.reload()
	s.metrics.ObserveReload(err == nil)
	if err != nil {
		s.logger.Error("reload failed", zap.String("config", s.cfgPath), zap.Error(err))
		return err
	}
	return nil
}

func (s *Server) reload() error {
	cfg, err := config.Load(s.cfgPath)
	if err != nil {
		return fmt.Errorf("reload config %q: %w", s.cfgPath, err)
	}
	snap, err := snapshotFrom(cfg)
	if err != nil {
		return fmt.Errorf("reload config %q: %w", s.cfgPath, err)
	}
	prev := s.cfg.Load()
	s.disp.Store(snap)
	s.cfg.Store(cfg)

	for _, w := range cfg.Warnings {
		s.logger.Warn("config warning", zap.String("warning", w))
	}
	if prev != nil && (prev.Server.Listen != cfg.Server.Listen || prev.Server.AdminListen != cfg.Server.AdminListen) {
		s.logger.Warn("listener address changes take effect after restart")
	}
	s.logger.Info("reload ok",
		zap.String("origin", snap.Origin.String()),
		zap.Int("patterns", snap.Routes.Len()),
	)
	return nil
}
