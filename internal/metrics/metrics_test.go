package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestObserveRender(t *testing.T) {
	before := testutil.ToFloat64(rendersTotal.WithLabelValues("url", StatusSucceeded))
	beforeBytes := testutil.ToFloat64(pdfBytesTotal.WithLabelValues("url"))

	ObserveRender("url", StatusSucceeded, 2*time.Second, 1024)

	if got := testutil.ToFloat64(rendersTotal.WithLabelValues("url", StatusSucceeded)); got != before+1 {
		t.Errorf("rendersTotal = %f, want %f", got, before+1)
	}
	if got := testutil.ToFloat64(pdfBytesTotal.WithLabelValues("url")); got != beforeBytes+1024 {
		t.Errorf("pdfBytesTotal = %f, want %f", got, beforeBytes+1024)
	}
}

func TestFailedRenderDoesNotCountBytes(t *testing.T) {
	before := testutil.ToFloat64(pdfBytesTotal.WithLabelValues("content"))
	ObserveRender("content", StatusFailed, time.Second, 0)
	if got := testutil.ToFloat64(pdfBytesTotal.WithLabelValues("content")); got != before {
		t.Errorf("pdfBytesTotal changed on failure: %f -> %f", before, got)
	}
}

func TestActiveRendersGauge(t *testing.T) {
	before := testutil.ToFloat64(activeRenders)
	IncActiveRenders()
	IncActiveRenders()
	DecActiveRenders()
	if got := testutil.ToFloat64(activeRenders); got != before+1 {
		t.Errorf("activeRenders = %f, want %f", got, before+1)
	}
	DecActiveRenders()
}

func TestCacheAndThrottleCounters(t *testing.T) {
	hits := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues(CacheHit))
	throttled := testutil.ToFloat64(throttledTotal)

	ObserveCacheLookup(CacheHit)
	ObserveThrottled()

	if got := testutil.ToFloat64(cacheLookupsTotal.WithLabelValues(CacheHit)); got != hits+1 {
		t.Errorf("cache hits = %f, want %f", got, hits+1)
	}
	if got := testutil.ToFloat64(throttledTotal); got != throttled+1 {
		t.Errorf("throttled = %f, want %f", got, throttled+1)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
