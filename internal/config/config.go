package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/r9s-ai/seo-router/internal/metadata"
	"github.com/r9s-ai/seo-router/internal/routes"
)

// Config is the seo-router YAML configuration.
type Config struct {
	Server struct {
		Listen            string `yaml:"listen"`
		AdminListen       string `yaml:"admin_listen"`
		ReadTimeoutMs     int    `yaml:"read_timeout_ms"`
		WriteTimeoutMs    int    `yaml:"write_timeout_ms"`
		ShutdownTimeoutMs int    `yaml:"shutdown_timeout_ms"`
		PidFile           string `yaml:"pid_file"`
		// AdminToken guards /admin/* on the admin listener when set.
		AdminToken        string `yaml:"admin_token"`
	} `yaml:"server"`

	Origin struct {
		// DomainSource is the base URL of the hosted app, e.g. https://app.example.com.
		DomainSource string `yaml:"domain_source"`
		TimeoutMs    int    `yaml:"timeout_ms"`
	} `yaml:"origin"`

	Metadata struct {
		TimeoutMs int `yaml:"timeout_ms"`
	} `yaml:"metadata"`

	Patterns []routes.Spec `yaml:"patterns"`

	Logging struct {
		Level         string `yaml:"level"`
		Format        string `yaml:"format"`
		AccessLog     *bool  `yaml:"access_log"`
		AccessLogPath string `yaml:"access_log_path"`
	} `yaml:"logging"`

	Reload struct {
		Watch bool `yaml:"watch"`
	} `yaml:"reload"`

	// Warnings collected during validation; not fatal.
	Warnings []string `yaml:"-"`
}

// Load reads path, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config path comes from trusted flag.
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes and validates a YAML config document.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// AccessLogEnabled reports whether request lines are logged. Default true.
func (c *Config) AccessLogEnabled() bool {
	return c.Logging.AccessLog == nil || *c.Logging.AccessLog
}

// Registry compiles the configured patterns.
func (c *Config) Registry() (*routes.Registry, error) {
	return routes.New(c.Patterns)
}

// OriginURL parses origin.domain_source.
func (c *Config) OriginURL() (*url.URL, error) {
	return parseOrigin(c.Origin.DomainSource)
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Server.Listen) == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.ReadTimeoutMs <= 0 {
		cfg.Server.ReadTimeoutMs = 60000
	}
	// write timeout stays 0 (unlimited) unless set: dynamic pages are streamed.
	if cfg.Server.WriteTimeoutMs < 0 {
		cfg.Server.WriteTimeoutMs = 0
	}
	if cfg.Server.ShutdownTimeoutMs <= 0 {
		cfg.Server.ShutdownTimeoutMs = 10000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("SEO_ROUTER_LISTEN")); v != "" {
		cfg.Server.Listen = v
	}
	if v, ok := os.LookupEnv("SEO_ROUTER_ADMIN_LISTEN"); ok {
		cfg.Server.AdminListen = strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(os.Getenv("SEO_ROUTER_ADMIN_TOKEN")); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := strings.TrimSpace(os.Getenv("SEO_ROUTER_PID_FILE")); v != "" {
		cfg.Server.PidFile = v
	}
	if v := strings.TrimSpace(os.Getenv("SEO_ROUTER_DOMAIN_SOURCE")); v != "" {
		cfg.Origin.DomainSource = v
	}
	if v := strings.TrimSpace(os.Getenv("SEO_ROUTER_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("SEO_ROUTER_LOG_FORMAT")); v != "" {
		cfg.Logging.Format = v
	}
	if v := strings.TrimSpace(os.Getenv("SEO_ROUTER_ACCESS_LOG_PATH")); v != "" {
		cfg.Logging.AccessLogPath = v
	}
	if v, ok := envBool("SEO_ROUTER_ACCESS_LOG"); ok {
		cfg.Logging.AccessLog = &v
	}
	if v, ok := envBool("SEO_ROUTER_RELOAD_WATCH"); ok {
		cfg.Reload.Watch = v
	}
	envMs("SEO_ROUTER_READ_TIMEOUT_MS", &cfg.Server.ReadTimeoutMs)
	envMs("SEO_ROUTER_WRITE_TIMEOUT_MS", &cfg.Server.WriteTimeoutMs)
	envMs("SEO_ROUTER_ORIGIN_TIMEOUT_MS", &cfg.Origin.TimeoutMs)
	envMs("SEO_ROUTER_METADATA_TIMEOUT_MS", &cfg.Metadata.TimeoutMs)
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Origin.DomainSource) == "" {
		return errors.New("origin.domain_source is required (or set SEO_ROUTER_DOMAIN_SOURCE)")
	}
	if _, err := parseOrigin(cfg.Origin.DomainSource); err != nil {
		return err
	}
	if cfg.Origin.TimeoutMs < 0 || cfg.Metadata.TimeoutMs < 0 {
		return errors.New("timeouts must be non-negative")
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", cfg.Logging.Format)
	}
	if _, err := routes.New(cfg.Patterns); err != nil {
		return err
	}
	if len(cfg.Patterns) == 0 {
		cfg.Warnings = append(cfg.Warnings, "no patterns configured: every request is passed through")
	}
	for i, p := range cfg.Patterns {
		switch n := metadata.CountPlaceholders(p.MetadataEndpoint); {
		case n == 0:
			return fmt.Errorf("patterns[%d]: metadata_endpoint %q has no {placeholder}", i, p.MetadataEndpoint)
		case n > 1:
			cfg.Warnings = append(cfg.Warnings,
				fmt.Sprintf("patterns[%d]: metadata_endpoint has %d placeholders, only the first is substituted", i, n))
		}
	}
	return nil
}

func parseOrigin(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(raw), "/"))
	if err != nil {
		return nil, fmt.Errorf("origin.domain_source: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("origin.domain_source must be an absolute http(s) URL, got %q", raw)
	}
	return u, nil
}

func envBool(name string) (bool, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return false, false
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true, true
	case "0", "false", "no", "n", "off":
		return false, true
	default:
		return false, false
	}
}

func envMs(name string, dst *int) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		*dst = n
	}
}
