// Package batch runs indexed jobs in fixed-size concurrent groups with a
// pause between groups.
package batch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Defaults applied when Config leaves a field unset.
const (
	DefaultGroupSize = 10
	DefaultDelay     = time.Second
)

// Config controls grouping.
type Config struct {
	// Size is the number of jobs run concurrently per group.
	Size int
	// Delay is the pause between consecutive groups. Zero means no pause.
	Delay time.Duration
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultGroupSize
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// Run calls fn for every index in [0, n). Indices of one group run
// concurrently; the next group starts only after the previous one finished
// and cfg.Delay elapsed. The first error cancels the remaining work and is
// returned.
func Run(ctx context.Context, n int, cfg Config, fn func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return nil
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	for gi, group := range Chunk(indices, cfg.Size) {
		if gi > 0 && cfg.Delay > 0 {
			timer := time.NewTimer(cfg.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, i := range group {
			g.Go(func() error {
				return fn(gctx, i)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}
