// Package browser renders snapshot requests with headless Chrome via chromedp.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/snapshot-service/internal/snapshot"
)

const (
	defaultLaunchTimeout = 30 * time.Second
	maxAttempts          = 2
)

// errPageTimeout marks a render that ran out of its page timeout. The
// timeout bounds the whole page, so such a render is not retried.
var errPageTimeout = errors.New("page timeout")

// Config controls the browser and tab pool.
type Config struct {
	ExecPath      string
	Lang          string
	UserAgent     string
	MaxParallel   int
	LaunchTimeout time.Duration
	// Flags are extra Chrome switches, "name" or "name=value", with or
	// without the leading dashes.
	Flags        []string
	PollInterval time.Duration
}

// Renderer implements snapshot.Renderer. One Chrome process is shared by all
// renders; each render gets its own tab.
type Renderer struct {
	cfg     Config
	logger  *zap.Logger
	limiter chan struct{}
	attempt func(context.Context, snapshot.RenderRequest) (snapshot.RenderResult, error)

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// New creates a Renderer. Chrome is started lazily on the first render.
func New(cfg Config, logger *zap.Logger) (*Renderer, error) {
	if cfg.MaxParallel < 0 {
		return nil, errors.New("max parallel must be >= 0")
	}
	cfg.MaxParallel = ResolveParallel(cfg.MaxParallel)
	if cfg.LaunchTimeout <= 0 {
		cfg.LaunchTimeout = defaultLaunchTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Renderer{
		cfg:     cfg,
		logger:  logger,
		limiter: make(chan struct{}, cfg.MaxParallel),
	}
	r.attempt = r.renderOnce
	return r, nil
}

// Close shuts Chrome down.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdownLocked()
}

// Ready reports whether Chrome is running, starting it if needed.
func (r *Renderer) Ready(ctx context.Context) error {
	if _, err := r.ensureBrowser(); err != nil {
		return err
	}
	return ctx.Err()
}

// Render loads the request, waits for it to settle and prints it. A failed
// attempt is retried once unless ctx is done or the page timed out.
func (r *Renderer) Render(ctx context.Context, req snapshot.RenderRequest) (snapshot.RenderResult, error) {
	start := time.Now()
	if err := r.acquire(ctx); err != nil {
		return snapshot.RenderResult{}, err
	}
	defer r.release()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, err := r.attempt(ctx, req)
		if err == nil {
			res.Stats.Attempts = attempt
			res.Duration = time.Since(start)
			return res, nil
		}
		lastErr = err
		if ctx.Err() != nil || errors.Is(err, errPageTimeout) {
			break
		}
		if attempt < maxAttempts {
			r.logger.Warn("render attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.String("kind", string(req.Kind)),
				zap.String("url", req.URL),
				zap.Error(err),
			)
		}
	}
	return snapshot.RenderResult{}, lastErr
}

func (r *Renderer) renderOnce(ctx context.Context, req snapshot.RenderRequest) (snapshot.RenderResult, error) {
	browserCtx, err := r.ensureBrowser()
	if err != nil {
		return snapshot.RenderResult{}, err
	}
	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer tabCancel()
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	if req.Wait.PageTimeout > 0 {
		var cancel context.CancelFunc
		tabCtx, cancel = context.WithTimeout(tabCtx, req.Wait.PageTimeout)
		defer cancel()
	}

	logger := r.logger.With(zap.String("kind", string(req.Kind)), zap.String("url", req.URL))
	tracker := newNetworkTracker(logger, req.Wait.Debug)
	chromedp.ListenTarget(tabCtx, tracker.handle)
	w := newWaiter(&chromeDriver{tracker: tracker}, r.cfg.PollInterval, logger)

	var (
		pdf      []byte
		finalURL string
		stats    snapshot.SettleStats
	)
	err = chromedp.Run(tabCtx,
		network.Enable(),
		emulateAction(req.Wait.Viewport, r.cfg.UserAgent, r.cfg.Lang),
		loadAction(req),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			stats, err = w.settle(ctx, req.Wait)
			return err
		}),
		chromedp.Location(&finalURL),
		printAction(req.Layout, &pdf),
	)
	if err != nil {
		if tabCtx.Err() != nil && ctx.Err() == nil {
			return snapshot.RenderResult{}, fmt.Errorf("%w after %s: %w", errPageTimeout, req.Wait.PageTimeout, err)
		}
		return snapshot.RenderResult{}, fmt.Errorf("chromedp run: %w", err)
	}
	return snapshot.RenderResult{PDF: pdf, FinalURL: finalURL, Stats: stats}, nil
}

func (r *Renderer) ensureBrowser() (context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browserCtx != nil && r.browserCtx.Err() == nil {
		return r.browserCtx, nil
	}
	r.shutdownLocked()

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), r.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(r.logger.Sugar().Errorf))

	// The first Run on browserCtx starts Chrome; it must not carry a deadline
	// or the browser dies with it.
	launched := make(chan error, 1)
	go func() { launched <- chromedp.Run(browserCtx) }()
	timer := time.NewTimer(r.cfg.LaunchTimeout)
	defer timer.Stop()
	select {
	case err := <-launched:
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
	case <-timer.C:
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch chrome: timed out after %s", r.cfg.LaunchTimeout)
	}

	r.allocCancel = allocCancel
	r.browserCtx = browserCtx
	r.browserCancel = browserCancel
	r.logger.Info("chrome started",
		zap.String("exec_path", r.cfg.ExecPath),
		zap.Int("max_parallel", r.cfg.MaxParallel),
	)
	return browserCtx, nil
}

func (r *Renderer) shutdownLocked() {
	if r.browserCancel != nil {
		r.browserCancel()
	}
	if r.allocCancel != nil {
		r.allocCancel()
	}
	r.browserCtx, r.browserCancel, r.allocCancel = nil, nil, nil
}

func (r *Renderer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if r.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.cfg.ExecPath))
	}
	if r.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.cfg.UserAgent))
	}
	for _, f := range launchFlags(r.cfg) {
		opts = append(opts, chromedp.Flag(f.name, f.value))
	}
	return opts
}

type flag struct {
	name  string
	value any
}

func launchFlags(cfg Config) []flag {
	flags := []flag{
		{"headless", "new"},
		{"no-sandbox", true},
		{"disable-setuid-sandbox", true},
		{"disable-dev-shm-usage", true},
		{"disable-gpu", true},
		{"hide-scrollbars", true},
		{"font-render-hinting", "none"},
		{"enable-automation", false},
	}
	if cfg.Lang != "" {
		flags = append(flags, flag{"lang", cfg.Lang})
	}
	for _, raw := range cfg.Flags {
		if f, ok := parseFlag(raw); ok {
			flags = append(flags, f)
		}
	}
	return flags
}

func parseFlag(raw string) (flag, bool) {
	s := strings.TrimLeft(strings.TrimSpace(raw), "-")
	if s == "" {
		return flag{}, false
	}
	name, value, found := strings.Cut(s, "=")
	if !found {
		return flag{name: name, value: true}, true
	}
	return flag{name: name, value: value}, true
}

func (r *Renderer) acquire(ctx context.Context) error {
	select {
	case r.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}
}

func (r *Renderer) release() {
	select {
	case <-r.limiter:
	default:
	}
}
