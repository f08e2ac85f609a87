// Package ratelimit implements per-client request quotas used to throttle API
// callers.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Defaults match a quota of 180 requests per hour.
const (
	DefaultLimit  = 180
	DefaultWindow = time.Hour
)

// Config holds limiter configuration.
type Config struct {
	// Limit is the number of requests a client may make per Window.
	Limit  int
	Window time.Duration
}

// entry is one client's quota for the window starting at start. The limiter
// never refills, so it hands out exactly Limit tokens per window.
type entry struct {
	limiter *rate.Limiter
	start   time.Time
}

// Limiter counts requests per key inside fixed windows. A key gets Limit
// requests from the moment of its first request until Window has elapsed;
// the quota then resets in full.
type Limiter struct {
	mu        sync.Mutex
	entries   map[string]*entry
	limit     int
	window    time.Duration
	now       func() time.Time
	lastSweep time.Time
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Limiter{
		entries: make(map[string]*entry),
		limit:   cfg.Limit,
		window:  cfg.Window,
		now:     time.Now,
	}
}

// Allow consumes one request from key's quota. When the quota is spent it
// returns false and the time left until the window resets.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(now)
	e, ok := l.entries[key]
	if !ok || now.Sub(e.start) >= l.window {
		e = &entry{limiter: rate.NewLimiter(0, l.limit), start: now}
		l.entries[key] = e
	}
	if e.limiter.AllowN(now, 1) {
		return true, 0
	}
	return false, e.start.Add(l.window).Sub(now)
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// sweepLocked forgets keys whose window has ended.
func (l *Limiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for key, e := range l.entries {
		if now.Sub(e.start) >= l.window {
			delete(l.entries, key)
		}
	}
}
