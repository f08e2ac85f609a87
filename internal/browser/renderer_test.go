package browser

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/snapshot-service/internal/snapshot"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{MaxParallel: -1}, nil)
	require.Error(t, err)

	r, err := New(Config{MaxParallel: 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, cap(r.limiter))
	assert.Equal(t, defaultLaunchTimeout, r.cfg.LaunchTimeout)
	assert.Equal(t, defaultPollInterval, r.cfg.PollInterval)
	r.Close()
}

func TestResolveParallel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5, ResolveParallel(5))
	auto := ResolveParallel(0)
	assert.GreaterOrEqual(t, auto, MinParallel)
	assert.LessOrEqual(t, auto, MaxParallel)
	want := min(max(runtime.GOMAXPROCS(0)/2, MinParallel), MaxParallel)
	assert.Equal(t, want, auto)
}

func TestAcquireRespectsLimitAndContext(t *testing.T) {
	t.Parallel()

	r, err := New(Config{MaxParallel: 1}, nil)
	require.NoError(t, err)
	require.NoError(t, r.acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, r.acquire(ctx), context.DeadlineExceeded)

	r.release()
	require.NoError(t, r.acquire(context.Background()))
	r.release()
	r.release() // extra release is a no-op
}

func TestParseFlag(t *testing.T) {
	t.Parallel()

	f, ok := parseFlag("--proxy-server=http://proxy:3128")
	require.True(t, ok)
	assert.Equal(t, "proxy-server", f.name)
	assert.Equal(t, "http://proxy:3128", f.value)

	f, ok = parseFlag("mute-audio")
	require.True(t, ok)
	assert.Equal(t, "mute-audio", f.name)
	assert.Equal(t, true, f.value)

	_, ok = parseFlag("  --  ")
	assert.False(t, ok)
}

func TestLaunchFlags(t *testing.T) {
	t.Parallel()

	flags := launchFlags(Config{Lang: "zh", Flags: []string{"--single-process", ""}})
	byName := map[string]any{}
	for _, f := range flags {
		byName[f.name] = f.value
	}
	assert.Equal(t, true, byName["no-sandbox"])
	assert.Equal(t, true, byName["disable-setuid-sandbox"])
	assert.Equal(t, "none", byName["font-render-hinting"])
	assert.Equal(t, "zh", byName["lang"])
	assert.Equal(t, true, byName["single-process"])
	_, hasEmpty := byName[""]
	assert.False(t, hasEmpty)

	flags = launchFlags(Config{})
	for _, f := range flags {
		assert.NotEqual(t, "lang", f.name)
	}
}

func TestPrintParams(t *testing.T) {
	t.Parallel()

	layout, err := snapshot.PDFOptions{
		Format:              "letter",
		Landscape:           true,
		Margin:              snapshot.Margin{Top: "1in"},
		DisplayHeaderFooter: true,
		FooterTemplate:      "<span class=pageNumber></span>",
		PageRanges:          "1-2",
	}.Resolve()
	require.NoError(t, err)

	p := printParams(layout)
	assert.InDelta(t, 8.5, p.PaperWidth, 1e-9)
	assert.InDelta(t, 11.0, p.PaperHeight, 1e-9)
	assert.True(t, p.Landscape)
	assert.True(t, p.PrintBackground)
	assert.InDelta(t, 1.0, p.MarginTop, 1e-9)
	assert.InDelta(t, minMargin, p.MarginLeft, 1e-12, "zero margins are sent explicitly")
	assert.True(t, p.DisplayHeaderFooter)
	assert.Equal(t, "<span class=pageNumber></span>", p.FooterTemplate)
	assert.Equal(t, "1-2", p.PageRanges)
}

func newScriptedRenderer(t *testing.T, results ...error) (*Renderer, *int) {
	t.Helper()
	r, err := New(Config{MaxParallel: 1}, nil)
	require.NoError(t, err)
	calls := 0
	r.attempt = func(ctx context.Context, _ snapshot.RenderRequest) (snapshot.RenderResult, error) {
		i := calls
		calls++
		if i < len(results) && results[i] != nil {
			return snapshot.RenderResult{}, results[i]
		}
		return snapshot.RenderResult{PDF: []byte("%PDF")}, ctx.Err()
	}
	t.Cleanup(r.Close)
	return r, &calls
}

func TestRenderRetriesTransientFailureOnce(t *testing.T) {
	t.Parallel()

	r, calls := newScriptedRenderer(t, errors.New("target crashed"))
	res, err := r.Render(context.Background(), snapshot.RenderRequest{Kind: snapshot.KindURL})
	require.NoError(t, err)
	assert.Equal(t, 2, *calls)
	assert.Equal(t, 2, res.Stats.Attempts)
	assert.Equal(t, []byte("%PDF"), res.PDF)
}

func TestRenderReturnsSecondFailure(t *testing.T) {
	t.Parallel()

	first := errors.New("target crashed")
	second := errors.New("print failed")
	r, calls := newScriptedRenderer(t, first, second)
	_, err := r.Render(context.Background(), snapshot.RenderRequest{Kind: snapshot.KindURL})
	require.ErrorIs(t, err, second)
	assert.Equal(t, maxAttempts, *calls)
}

func TestRenderDoesNotRetryPageTimeout(t *testing.T) {
	t.Parallel()

	timeout := fmt.Errorf("%w after %s: %w", errPageTimeout, time.Second, context.DeadlineExceeded)
	r, calls := newScriptedRenderer(t, timeout)
	_, err := r.Render(context.Background(), snapshot.RenderRequest{Kind: snapshot.KindURL})
	require.ErrorIs(t, err, errPageTimeout)
	assert.Equal(t, 1, *calls)
}

func TestRenderDoesNotRetryCanceledContext(t *testing.T) {
	t.Parallel()

	r, err := New(Config{MaxParallel: 1}, nil)
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	r.attempt = func(ctx context.Context, _ snapshot.RenderRequest) (snapshot.RenderResult, error) {
		calls++
		cancel()
		return snapshot.RenderResult{}, fmt.Errorf("chromedp run: %w", ctx.Err())
	}
	_, err = r.Render(ctx, snapshot.RenderRequest{Kind: snapshot.KindURL})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
