// Package discover collects page URLs for bundle renders by crawling from a
// seed page with Colly.
package discover

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/snapshot-service/internal/snapshot"
)

// Config controls the collector.
type Config struct {
	UserAgent     string
	Timeout       time.Duration
	MaxDepth      int
	Parallelism   int
	Delay         time.Duration
	RespectRobots bool
	BlockedHosts  []string
}

// Discoverer implements snapshot.LinkDiscoverer.
type Discoverer struct {
	cfg       Config
	logger    *zap.Logger
	blocklist *hostBlocklist
	transport http.RoundTripper
}

// New builds a Discoverer.
func New(cfg Config, logger *zap.Logger) *Discoverer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 2
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{
		cfg:       cfg,
		logger:    logger,
		blocklist: newHostBlocklist(cfg.BlockedHosts),
		transport: newHTTPTransport(),
	}
}

// discovery holds the state of one Discover call.
type discovery struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	found    []string
	max      int
	seedHost string
	sameHost bool
	seedErr  error
}

// accept records link and reports whether it should be crawled further.
func (s *discovery) accept(link string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.found) >= s.max {
		return false
	}
	if _, dup := s.seen[link]; dup {
		return false
	}
	s.seen[link] = struct{}{}
	s.found = append(s.found, link)
	return true
}

func (s *discovery) full() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.found) >= s.max
}

// Discover returns the seed followed by up to MaxPages-1 distinct links
// reachable from it, in discovery order.
func (d *Discoverer) Discover(ctx context.Context, req snapshot.DiscoverRequest) ([]string, error) {
	seed, err := snapshot.NormalizeURL(req.Seed)
	if err != nil {
		return nil, err
	}
	seedURL, err := url.Parse(seed)
	if err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if d.blocklist.IsBlocked(seedURL.Hostname()) {
		return nil, fmt.Errorf("%w: host %s is blocked", snapshot.ErrInvalidURL, seedURL.Hostname())
	}
	state := &discovery{
		seen:     make(map[string]struct{}),
		max:      max(req.MaxPages, 1),
		seedHost: strings.ToLower(seedURL.Hostname()),
		sameHost: req.SameHost,
	}
	state.accept(seed)

	collector := d.buildCollector(ctx, seed, state)
	done := make(chan error, 1)
	go func() {
		err := collector.Visit(seed)
		collector.Wait()
		done <- err
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("discovery canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("visit seed: %w", err)
		}
	}
	if state.seedErr != nil {
		return nil, fmt.Errorf("fetch seed: %w", state.seedErr)
	}
	return state.found, nil
}

func (d *Discoverer) buildCollector(ctx context.Context, seed string, state *discovery) *colly.Collector {
	collector := colly.NewCollector(
		colly.MaxDepth(d.cfg.MaxDepth),
		colly.Async(true),
	)
	if d.cfg.UserAgent != "" {
		collector.UserAgent = d.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !d.cfg.RespectRobots
	collector.SetRequestTimeout(d.cfg.Timeout)
	collector.WithTransport(d.transport)
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: d.cfg.Parallelism,
		Delay:       d.cfg.Delay,
	}); err != nil {
		d.logger.Warn("collector limit rejected", zap.Error(err))
	}

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil || (r.URL.String() != seed && state.full()) {
			r.Abort()
		}
	})
	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link, ok := d.candidate(e.Request.AbsoluteURL(e.Attr("href")), state)
		if !ok || !state.accept(link) {
			return
		}
		if err := e.Request.Visit(link); err != nil {
			d.logger.Debug("skip link", zap.String("url", link), zap.Error(err))
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		target := r.Request.URL.String()
		if target == seed {
			state.mu.Lock()
			state.seedErr = err
			state.mu.Unlock()
		}
		d.logger.Warn("discovery request failed",
			zap.String("url", target),
			zap.Int("status_code", r.StatusCode),
			zap.Error(err),
		)
	})
	return collector
}

func (d *Discoverer) candidate(raw string, state *discovery) (string, bool) {
	if raw == "" {
		return "", false
	}
	link, err := snapshot.NormalizeURL(raw)
	if err != nil {
		return "", false
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if state.sameHost && host != state.seedHost {
		return "", false
	}
	if d.blocklist.IsBlocked(host) {
		return "", false
	}
	return link, true
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
