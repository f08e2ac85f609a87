package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(cfg Config) (*Limiter, *time.Time) {
	l := New(cfg)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func allowed(l *Limiter, key string) bool {
	ok, _ := l.Allow(key)
	return ok
}

func TestLimiter_AllowsQuotaThenBlocks(t *testing.T) {
	l, _ := newTestLimiter(Config{Limit: 3, Window: time.Minute})

	for i := 0; i < 3; i++ {
		assert.True(t, allowed(l, "1.2.3.4"), "request %d", i+1)
	}
	ok, retry := l.Allow("1.2.3.4")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retry)
}

func TestLimiter_NeverExceedsLimitWithinWindow(t *testing.T) {
	l, now := newTestLimiter(Config{Limit: 180, Window: time.Hour})
	start := *now

	count := 0
	for s := 0; s < 3600; s++ {
		*now = start.Add(time.Duration(s) * time.Second)
		if allowed(l, "1.2.3.4") {
			count++
		}
	}
	assert.Equal(t, 180, count)
}

func TestLimiter_ResetsAfterWindow(t *testing.T) {
	l, now := newTestLimiter(Config{Limit: 3, Window: time.Minute})
	start := *now

	for i := 0; i < 3; i++ {
		l.Allow("a")
	}
	*now = start.Add(40 * time.Second)
	ok, retry := l.Allow("a")
	assert.False(t, ok, "no refill inside the window")
	assert.Equal(t, 20*time.Second, retry)

	*now = start.Add(time.Minute)
	for i := 0; i < 3; i++ {
		assert.True(t, allowed(l, "a"), "request %d after reset", i+1)
	}
	assert.False(t, allowed(l, "a"))
}

func TestLimiter_DifferentKeys(t *testing.T) {
	l, _ := newTestLimiter(Config{Limit: 1, Window: time.Hour})

	assert.True(t, allowed(l, "a"))
	assert.False(t, allowed(l, "a"))
	assert.True(t, allowed(l, "b"), "key b should not be blocked by a")
}

func TestLimiter_Defaults(t *testing.T) {
	l := New(Config{})
	assert.Equal(t, DefaultLimit, l.limit)
	assert.Equal(t, DefaultWindow, l.window)
}

func TestLimiter_SweepsExpiredKeys(t *testing.T) {
	l, now := newTestLimiter(Config{Limit: 2, Window: time.Minute})

	l.Allow("a")
	l.Allow("b")
	assert.Equal(t, 2, l.Len())

	*now = now.Add(2 * time.Minute)
	l.Allow("c")
	assert.Equal(t, 1, l.Len())
}
