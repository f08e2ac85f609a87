// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/snapshot-service/internal/batch"
	"github.com/JakeFAU/snapshot-service/internal/browser"
	"github.com/JakeFAU/snapshot-service/internal/discover"
	"github.com/JakeFAU/snapshot-service/internal/policy/ratelimit"
	"github.com/JakeFAU/snapshot-service/internal/snapshot"
)

// Storage backends.
const (
	StorageNone   = "none"
	StorageMemory = "memory"
	StorageLocal  = "local"
	StorageGCS    = "gcs"
)

// Cache backends.
const (
	CacheNone  = "none"
	CacheRedis = "redis"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Throttle  ThrottleConfig  `mapstructure:"throttle"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Render    RenderConfig    `mapstructure:"render"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Discover  DiscoverConfig  `mapstructure:"discover"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ThrottleConfig bounds how many requests one client may make per window.
type ThrottleConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Limit         int    `mapstructure:"limit"`
	WindowSeconds int    `mapstructure:"window_seconds"`
	TrustProxy    bool   `mapstructure:"trust_proxy"`
	Message       string `mapstructure:"message"`
}

// BrowserConfig configures the shared Chrome process.
type BrowserConfig struct {
	ExecPath             string   `mapstructure:"exec_path"`
	Lang                 string   `mapstructure:"lang"`
	UserAgent            string   `mapstructure:"user_agent"`
	MaxParallel          int      `mapstructure:"max_parallel"`
	LaunchTimeoutSeconds int      `mapstructure:"launch_timeout_seconds"`
	Flags                []string `mapstructure:"flags"`
}

// RenderConfig holds the wait defaults applied to URL renders.
type RenderConfig struct {
	ScrollTimes    int    `mapstructure:"scroll_times"`
	MinScrollTimes int    `mapstructure:"min_scroll_times"`
	ScrollDelayMs  int    `mapstructure:"scroll_delay_ms"`
	ReadyState     string `mapstructure:"ready_state"`
	PageTimeoutMs  int    `mapstructure:"page_timeout_ms"`
	ScrollOffset   int    `mapstructure:"scroll_offset"`
	NetworkIdleMs  int    `mapstructure:"network_idle_ms"`
}

// BatchConfig bounds multi-page renders.
type BatchConfig struct {
	GroupSize    int `mapstructure:"group_size"`
	GroupDelayMs int `mapstructure:"group_delay_ms"`
	MaxPages     int `mapstructure:"max_pages"`
}

// StorageConfig selects where rendered PDFs are archived.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int    `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// CacheConfig selects the rendered-PDF cache.
type CacheConfig struct {
	Backend       string `mapstructure:"backend"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	TTLSeconds    int    `mapstructure:"ttl_seconds"`
}

// DiscoverConfig governs link discovery for bundle requests.
type DiscoverConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	UserAgent      string   `mapstructure:"user_agent"`
	MaxDepth       int      `mapstructure:"max_depth"`
	Parallelism    int      `mapstructure:"parallelism"`
	DelayMs        int      `mapstructure:"delay_ms"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
	RespectRobots  bool     `mapstructure:"respect_robots"`
	BlockedHosts   []string `mapstructure:"blocked_hosts"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// TelemetryConfig controls the OpenTelemetry tracer provider.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SNAPSHOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := snapshot.DefaultConfig()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 300)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("throttle.enabled", true)
	v.SetDefault("throttle.limit", ratelimit.DefaultLimit)
	v.SetDefault("throttle.window_seconds", int(ratelimit.DefaultWindow/time.Second))
	v.SetDefault("throttle.trust_proxy", false)
	v.SetDefault("throttle.message", "Too many requests, please try again later.")
	v.SetDefault("browser.lang", "en-US")
	v.SetDefault("browser.max_parallel", 0)
	v.SetDefault("browser.launch_timeout_seconds", 30)
	v.SetDefault("render.scroll_times", def.URLDefaults.ScrollTimes)
	v.SetDefault("render.min_scroll_times", def.URLDefaults.MinScrollTimes)
	v.SetDefault("render.scroll_delay_ms", def.URLDefaults.ScrollDelay.Milliseconds())
	v.SetDefault("render.ready_state", string(def.URLDefaults.ReadyState))
	v.SetDefault("render.page_timeout_ms", def.URLDefaults.PageTimeout.Milliseconds())
	v.SetDefault("render.scroll_offset", 0)
	v.SetDefault("render.network_idle_ms", def.URLDefaults.NetworkIdle.Milliseconds())
	v.SetDefault("batch.group_size", batch.DefaultGroupSize)
	v.SetDefault("batch.group_delay_ms", batch.DefaultDelay.Milliseconds())
	v.SetDefault("batch.max_pages", def.MaxPages)
	v.SetDefault("storage.backend", StorageNone)
	v.SetDefault("storage.prefix", def.BlobPrefix)
	v.SetDefault("db.table", "snapshots")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("cache.backend", CacheNone)
	v.SetDefault("cache.ttl_seconds", int(def.CacheTTL/time.Second))
	v.SetDefault("discover.enabled", true)
	v.SetDefault("discover.user_agent", "snapshot-bot/0.1")
	v.SetDefault("discover.max_depth", 2)
	v.SetDefault("discover.parallelism", 4)
	v.SetDefault("discover.delay_ms", 0)
	v.SetDefault("discover.timeout_seconds", 15)
	v.SetDefault("discover.respect_robots", true)
	v.SetDefault("logging.development", true)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "snapshot-service")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Throttle.Enabled {
		if c.Throttle.Limit <= 0 {
			return fmt.Errorf("throttle.limit must be > 0")
		}
		if c.Throttle.WindowSeconds <= 0 {
			return fmt.Errorf("throttle.window_seconds must be > 0")
		}
	}
	if c.Browser.MaxParallel < 0 {
		return fmt.Errorf("browser.max_parallel must be >= 0")
	}
	if !snapshot.ReadyState(strings.ToLower(c.Render.ReadyState)).Valid() {
		return fmt.Errorf("render.ready_state %q is not one of load, domcontentloaded, networkidle0, networkidle2",
			c.Render.ReadyState)
	}
	if c.Render.PageTimeoutMs <= 0 {
		return fmt.Errorf("render.page_timeout_ms must be > 0")
	}
	svc := c.SnapshotConfig()
	if _, err := (snapshot.SnapshotOptions{}).Resolve(svc.URLDefaults); err != nil {
		return fmt.Errorf("render defaults: %w", err)
	}
	if _, err := (snapshot.SnapshotOptions{}).Resolve(svc.ContentDefaults); err != nil {
		return fmt.Errorf("render defaults: %w", err)
	}
	if c.Batch.GroupSize <= 0 {
		return fmt.Errorf("batch.group_size must be > 0")
	}
	if c.Batch.MaxPages <= 0 {
		return fmt.Errorf("batch.max_pages must be > 0")
	}
	switch c.Storage.Backend {
	case StorageNone, StorageMemory:
	case StorageLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set for the local backend")
		}
	case StorageGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of none, memory, local, gcs", c.Storage.Backend)
	}
	switch c.Cache.Backend {
	case CacheNone:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr must be set for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend %q is not one of none, redis", c.Cache.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is")
	}
	return nil
}

// RequestTimeout is the per-request deadline applied by the HTTP server.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// SnapshotConfig converts the render, batch, cache and storage sections into
// service settings. Content renders keep their built-in scroll defaults and
// only inherit the timeouts.
func (c Config) SnapshotConfig() snapshot.Config {
	cfg := snapshot.DefaultConfig()
	cfg.URLDefaults.ScrollTimes = c.Render.ScrollTimes
	cfg.URLDefaults.MinScrollTimes = c.Render.MinScrollTimes
	cfg.URLDefaults.ScrollDelay = time.Duration(c.Render.ScrollDelayMs) * time.Millisecond
	cfg.URLDefaults.ReadyState = snapshot.ReadyState(strings.ToLower(c.Render.ReadyState))
	cfg.URLDefaults.PageTimeout = time.Duration(c.Render.PageTimeoutMs) * time.Millisecond
	cfg.URLDefaults.ScrollOffset = c.Render.ScrollOffset
	cfg.URLDefaults.NetworkIdle = time.Duration(c.Render.NetworkIdleMs) * time.Millisecond
	cfg.ContentDefaults.PageTimeout = cfg.URLDefaults.PageTimeout
	cfg.ContentDefaults.NetworkIdle = cfg.URLDefaults.NetworkIdle

	cfg.GroupSize = c.Batch.GroupSize
	cfg.GroupDelay = time.Duration(c.Batch.GroupDelayMs) * time.Millisecond
	cfg.MaxPages = c.Batch.MaxPages
	cfg.CacheTTL = time.Duration(c.Cache.TTLSeconds) * time.Second
	if c.Storage.Prefix != "" {
		cfg.BlobPrefix = c.Storage.Prefix
	}
	cfg.Topic = c.PubSub.TopicName
	return cfg
}

// BrowserConfig converts the browser section into renderer settings.
func (c Config) BrowserConfig() browser.Config {
	return browser.Config{
		ExecPath:      c.Browser.ExecPath,
		Lang:          c.Browser.Lang,
		UserAgent:     c.Browser.UserAgent,
		MaxParallel:   c.Browser.MaxParallel,
		LaunchTimeout: time.Duration(c.Browser.LaunchTimeoutSeconds) * time.Second,
		Flags:         c.Browser.Flags,
	}
}

// DiscoverConfig converts the discover section into collector settings.
func (c Config) DiscoverConfig() discover.Config {
	return discover.Config{
		UserAgent:     c.Discover.UserAgent,
		Timeout:       time.Duration(c.Discover.TimeoutSeconds) * time.Second,
		MaxDepth:      c.Discover.MaxDepth,
		Parallelism:   c.Discover.Parallelism,
		Delay:         time.Duration(c.Discover.DelayMs) * time.Millisecond,
		RespectRobots: c.Discover.RespectRobots,
		BlockedHosts:  c.Discover.BlockedHosts,
	}
}

// ThrottleLimits converts the throttle section into limiter settings.
func (c Config) ThrottleLimits() ratelimit.Config {
	return ratelimit.Config{
		Limit:  c.Throttle.Limit,
		Window: time.Duration(c.Throttle.WindowSeconds) * time.Second,
	}
}
