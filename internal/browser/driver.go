package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
)

// Expressions always yield a value so Evaluate never sees undefined.
const (
	jsReadyState   = `document.readyState`
	jsScrollHeight = `Math.max(document.body ? document.body.scrollHeight : 0, document.documentElement ? document.documentElement.scrollHeight : 0)`
	jsScrollToTop  = `(window.scrollTo(0, 0), 0)`
	jsScrollBy     = `(() => { const step = %d || window.innerHeight; window.scrollBy(0, step); return window.scrollY; })()`
)

// chromeDriver implements pageDriver on top of a chromedp tab. The ctx passed
// to each method must be a chromedp executor context.
type chromeDriver struct {
	tracker *networkTracker
}

func (d *chromeDriver) ReadyState(ctx context.Context) (string, error) {
	var state string
	if err := chromedp.Evaluate(jsReadyState, &state).Do(ctx); err != nil {
		return "", fmt.Errorf("read ready state: %w", err)
	}
	return state, nil
}

func (d *chromeDriver) ScrollBy(ctx context.Context, offset int) error {
	var y float64
	return chromedp.Evaluate(fmt.Sprintf(jsScrollBy, offset), &y).Do(ctx)
}

func (d *chromeDriver) ScrollHeight(ctx context.Context) (int64, error) {
	var h float64
	if err := chromedp.Evaluate(jsScrollHeight, &h).Do(ctx); err != nil {
		return 0, err
	}
	return int64(h), nil
}

func (d *chromeDriver) ScrollToTop(ctx context.Context) error {
	var zero float64
	return chromedp.Evaluate(jsScrollToTop, &zero).Do(ctx)
}

func (d *chromeDriver) Pending() int {
	return d.tracker.Pending()
}
