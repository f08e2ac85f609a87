package browser

import (
	"sync"

	"github.com/chromedp/cdproto/network"
	"go.uber.org/zap"
)

// networkTracker counts requests that have been sent but have not finished
// or failed yet.
type networkTracker struct {
	mu       sync.Mutex
	inflight map[network.RequestID]string
	debug    bool
	logger   *zap.Logger
}

func newNetworkTracker(logger *zap.Logger, debug bool) *networkTracker {
	return &networkTracker{
		inflight: make(map[network.RequestID]string),
		debug:    debug,
		logger:   logger,
	}
}

func (t *networkTracker) handle(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		url := ""
		if e.Request != nil {
			url = e.Request.URL
		}
		t.mu.Lock()
		t.inflight[e.RequestID] = url
		t.mu.Unlock()
		if t.debug {
			t.logger.Info("request sent", zap.String("url", url), zap.String("type", e.Type.String()))
		}
	case *network.EventLoadingFinished:
		t.done(e.RequestID, "")
	case *network.EventLoadingFailed:
		t.done(e.RequestID, e.ErrorText)
	}
}

func (t *networkTracker) done(id network.RequestID, failure string) {
	t.mu.Lock()
	url, ok := t.inflight[id]
	delete(t.inflight, id)
	t.mu.Unlock()
	if !ok || !t.debug {
		return
	}
	if failure != "" {
		t.logger.Info("request failed", zap.String("url", url), zap.String("error", failure))
		return
	}
	t.logger.Info("request finished", zap.String("url", url))
}

// Pending returns the number of in-flight requests.
func (t *networkTracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}
