package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JakeFAU/snapshot-service/internal/snapshot"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  request_timeout_seconds: 60
auth:
  enabled: true
  api_key: secret
throttle:
  enabled: true
  limit: 10
  window_seconds: 60
  trust_proxy: true
browser:
  exec_path: /usr/bin/chromium
  lang: de-DE
  max_parallel: 3
  flags: ["--disable-web-security", "proxy-server=http://proxy:3128"]
render:
  scroll_times: 4
  min_scroll_times: 2
  scroll_delay_ms: 250
  ready_state: NetworkIdle0
  page_timeout_ms: 45000
  network_idle_ms: 750
batch:
  group_size: 5
  group_delay_ms: 200
  max_pages: 20
storage:
  backend: local
  local_dir: /tmp/pdfs
  prefix: archive
cache:
  backend: redis
  redis_addr: localhost:6379
  ttl_seconds: 120
discover:
  max_depth: 3
  blocked_hosts: ["ads.example.com"]
pubsub:
  project_id: proj
  topic_name: renders
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if got := cfg.RequestTimeout(); got != time.Minute {
		t.Fatalf("expected request timeout 1m, got %v", got)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if !cfg.Throttle.TrustProxy {
		t.Fatalf("expected trust_proxy to be loaded")
	}
	if cfg.Logging.Development {
		t.Fatalf("expected development logging to be disabled")
	}

	svc := cfg.SnapshotConfig()
	if svc.URLDefaults.ReadyState != snapshot.ReadyStateNetworkIdle0 {
		t.Fatalf("expected ready state networkidle0, got %q", svc.URLDefaults.ReadyState)
	}
	if svc.URLDefaults.ScrollTimes != 4 || svc.URLDefaults.MinScrollTimes != 2 {
		t.Fatalf("unexpected scroll defaults: %+v", svc.URLDefaults)
	}
	if svc.URLDefaults.ScrollDelay != 250*time.Millisecond {
		t.Fatalf("expected scroll delay 250ms, got %v", svc.URLDefaults.ScrollDelay)
	}
	if svc.ContentDefaults.PageTimeout != 45*time.Second || svc.ContentDefaults.ScrollTimes != 0 {
		t.Fatalf("unexpected content defaults: %+v", svc.ContentDefaults)
	}
	if svc.GroupSize != 5 || svc.GroupDelay != 200*time.Millisecond || svc.MaxPages != 20 {
		t.Fatalf("unexpected batch settings: %+v", svc)
	}
	if svc.CacheTTL != 2*time.Minute || svc.BlobPrefix != "archive" || svc.Topic != "renders" {
		t.Fatalf("unexpected archive settings: %+v", svc)
	}

	br := cfg.BrowserConfig()
	if br.ExecPath != "/usr/bin/chromium" || br.MaxParallel != 3 || len(br.Flags) != 2 {
		t.Fatalf("unexpected browser config: %+v", br)
	}
	if br.LaunchTimeout != 30*time.Second {
		t.Fatalf("expected default launch timeout, got %v", br.LaunchTimeout)
	}

	dc := cfg.DiscoverConfig()
	if dc.MaxDepth != 3 || len(dc.BlockedHosts) != 1 || !dc.RespectRobots {
		t.Fatalf("unexpected discover config: %+v", dc)
	}

	limits := cfg.ThrottleLimits()
	if limits.Limit != 10 || limits.Window != time.Minute {
		t.Fatalf("unexpected throttle limits: %+v", limits)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Throttle.Limit != 180 || cfg.Throttle.WindowSeconds != 3600 {
		t.Fatalf("unexpected throttle defaults: %+v", cfg.Throttle)
	}
	if cfg.Storage.Backend != StorageNone || cfg.Cache.Backend != CacheNone {
		t.Fatalf("expected archive backends disabled by default")
	}
	svc := cfg.SnapshotConfig()
	def := snapshot.DefaultConfig()
	if svc.URLDefaults != def.URLDefaults {
		t.Fatalf("url defaults drifted: got %+v want %+v", svc.URLDefaults, def.URLDefaults)
	}
	if svc.GroupDelay != time.Second {
		t.Fatalf("expected group delay 1s, got %v", svc.GroupDelay)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SNAPSHOT_SERVER_PORT", "7070")
	t.Setenv("SNAPSHOT_RENDER_READY_STATE", "load")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("expected env port 7070, got %d", cfg.Server.Port)
	}
	if cfg.Render.ReadyState != "load" {
		t.Fatalf("expected env ready state, got %q", cfg.Render.ReadyState)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:   ServerConfig{Port: 8080, RequestTimeoutSeconds: 30},
		Throttle: ThrottleConfig{Enabled: true, Limit: 1, WindowSeconds: 1},
		Render:   RenderConfig{ReadyState: "load", PageTimeoutMs: 1000},
		Batch:    BatchConfig{GroupSize: 1, MaxPages: 1},
		Storage:  StorageConfig{Backend: StorageNone},
		Cache:    CacheConfig{Backend: CacheNone},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "invalid request timeout", mutate: func(c *Config) { c.Server.RequestTimeoutSeconds = 0 }, want: "server.request_timeout_seconds"},
		{name: "auth missing api key", mutate: func(c *Config) { c.Auth.Enabled = true }, want: "auth.api_key"},
		{name: "throttle limit", mutate: func(c *Config) { c.Throttle.Limit = 0 }, want: "throttle.limit"},
		{name: "throttle window", mutate: func(c *Config) { c.Throttle.WindowSeconds = -1 }, want: "throttle.window_seconds"},
		{name: "unknown ready state", mutate: func(c *Config) { c.Render.ReadyState = "idle" }, want: "render.ready_state"},
		{name: "page timeout above max", mutate: func(c *Config) { c.Render.PageTimeoutMs = 180000 }, want: "render defaults"},
		{name: "page timeout below min", mutate: func(c *Config) { c.Render.PageTimeoutMs = 500 }, want: "render defaults"},
		{name: "scroll times above max", mutate: func(c *Config) { c.Render.ScrollTimes = 150 }, want: "render defaults"},
		{name: "negative min scroll times", mutate: func(c *Config) { c.Render.MinScrollTimes = -1 }, want: "render defaults"},
		{name: "group size", mutate: func(c *Config) { c.Batch.GroupSize = 0 }, want: "batch.group_size"},
		{name: "local without dir", mutate: func(c *Config) { c.Storage.Backend = StorageLocal }, want: "storage.local_dir"},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Storage.Backend = StorageGCS }, want: "storage.gcs_bucket"},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Backend = "s3" }, want: "storage.backend"},
		{name: "redis without addr", mutate: func(c *Config) { c.Cache.Backend = CacheRedis }, want: "cache.redis_addr"},
		{name: "topic without project", mutate: func(c *Config) { c.PubSub.TopicName = "t" }, want: "pubsub.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadRejectsPageTimeoutOutsideRenderBounds(t *testing.T) {
	t.Setenv("SNAPSHOT_RENDER_PAGE_TIMEOUT_MS", "180000")

	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "pageTimeout") {
		t.Fatalf("expected pageTimeout bounds error, got %v", err)
	}
}

func TestThrottleDisabledSkipsLimits(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Server:  ServerConfig{Port: 1, RequestTimeoutSeconds: 1},
		Render:  RenderConfig{ReadyState: "domcontentloaded", PageTimeoutMs: 1000},
		Batch:   BatchConfig{GroupSize: 1, MaxPages: 1},
		Storage: StorageConfig{Backend: StorageMemory},
		Cache:   CacheConfig{Backend: CacheNone},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}
