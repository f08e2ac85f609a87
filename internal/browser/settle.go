package browser

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/snapshot-service/internal/snapshot"
)

const defaultPollInterval = 100 * time.Millisecond

// pageDriver is the slice of a browser tab the wait heuristic needs.
type pageDriver interface {
	ReadyState(ctx context.Context) (string, error)
	ScrollBy(ctx context.Context, offset int) error
	ScrollHeight(ctx context.Context) (int64, error)
	ScrollToTop(ctx context.Context) error
	Pending() int
}

// waiter drives a page until it looks finished: first the requested ready
// state, then a scroll loop that stops once the document height and network
// have been quiet for MinScrollTimes consecutive polls.
type waiter struct {
	driver pageDriver
	poll   time.Duration
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	logger *zap.Logger
}

func newWaiter(driver pageDriver, poll time.Duration, logger *zap.Logger) *waiter {
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &waiter{
		driver: driver,
		poll:   poll,
		now:    time.Now,
		sleep:  sleepCtx,
		logger: logger,
	}
}

func (w *waiter) settle(ctx context.Context, plan snapshot.WaitPlan) (snapshot.SettleStats, error) {
	var stats snapshot.SettleStats
	if err := w.waitReady(ctx, plan); err != nil {
		return stats, fmt.Errorf("wait for %s: %w", plan.ReadyState, err)
	}

	last, err := w.driver.ScrollHeight(ctx)
	if err != nil {
		return stats, fmt.Errorf("read scroll height: %w", err)
	}
	stats.FinalHeight = last
	if plan.ScrollTimes == 0 {
		stats.Settled = true
		return stats, nil
	}

	stable := 0
	for i := 0; i < plan.ScrollTimes; i++ {
		if err := w.driver.ScrollBy(ctx, plan.ScrollOffset); err != nil {
			return stats, fmt.Errorf("scroll: %w", err)
		}
		stats.ScrollIterations++
		if err := w.sleep(ctx, plan.ScrollDelay); err != nil {
			return stats, err
		}
		height, err := w.driver.ScrollHeight(ctx)
		if err != nil {
			return stats, fmt.Errorf("read scroll height: %w", err)
		}
		pending := w.driver.Pending()
		if height == last && pending == 0 {
			stable++
		} else {
			stable = 0
		}
		if plan.Debug {
			w.logger.Info("scroll step",
				zap.Int("step", i+1),
				zap.Int64("height", height),
				zap.Int("pending_requests", pending),
				zap.Int("stable", stable),
			)
		}
		last = height
		if stable >= plan.MinScrollTimes {
			stats.Settled = true
			break
		}
	}
	stats.FinalHeight = last

	if err := w.driver.ScrollToTop(ctx); err != nil {
		return stats, fmt.Errorf("scroll to top: %w", err)
	}
	return stats, nil
}

func (w *waiter) waitReady(ctx context.Context, plan snapshot.WaitPlan) error {
	if limit := plan.ReadyState.MaxInflight(); limit >= 0 {
		return w.waitNetworkIdle(ctx, limit, plan.NetworkIdle)
	}
	for {
		state, err := w.driver.ReadyState(ctx)
		if err != nil {
			return err
		}
		if readyStateReached(plan.ReadyState, state) {
			return nil
		}
		if err := w.sleep(ctx, w.poll); err != nil {
			return err
		}
	}
}

// waitNetworkIdle returns once at most maxInflight requests have been
// pending for the whole window.
func (w *waiter) waitNetworkIdle(ctx context.Context, maxInflight int, window time.Duration) error {
	var idleSince time.Time
	for {
		if w.driver.Pending() <= maxInflight {
			now := w.now()
			if idleSince.IsZero() {
				idleSince = now
			}
			if now.Sub(idleSince) >= window {
				return nil
			}
		} else {
			idleSince = time.Time{}
		}
		if err := w.sleep(ctx, w.poll); err != nil {
			return err
		}
	}
}

func readyStateReached(want snapshot.ReadyState, documentState string) bool {
	switch want {
	case snapshot.ReadyStateDOMContentLoaded:
		return documentState == "interactive" || documentState == "complete"
	default:
		return documentState == "complete"
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
