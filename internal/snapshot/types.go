package snapshot

import "time"

// Kind identifies what a render started from.
type Kind string

// Render kinds.
const (
	KindContent Kind = "content"
	KindURL     Kind = "url"
)

// ReadyState names the page lifecycle point that must be reached before the
// scroll loop starts.
type ReadyState string

// Ready states accepted in SnapshotOptions.
const (
	ReadyStateLoad             ReadyState = "load"
	ReadyStateDOMContentLoaded ReadyState = "domcontentloaded"
	ReadyStateNetworkIdle0     ReadyState = "networkidle0"
	ReadyStateNetworkIdle2     ReadyState = "networkidle2"
)

// Valid reports whether r is a known ready state.
func (r ReadyState) Valid() bool {
	switch r {
	case ReadyStateLoad, ReadyStateDOMContentLoaded, ReadyStateNetworkIdle0, ReadyStateNetworkIdle2:
		return true
	}
	return false
}

// MaxInflight returns how many requests may still be outstanding when the
// state counts as reached. Negative means network activity is not checked.
func (r ReadyState) MaxInflight() int {
	switch r {
	case ReadyStateNetworkIdle0:
		return 0
	case ReadyStateNetworkIdle2:
		return 2
	default:
		return -1
	}
}

// Page is a single render job.
type Page struct {
	Kind     Kind
	URL      string
	Content  string
	BaseURL  string
	FileName string
	PDF      PDFOptions
	Snapshot SnapshotOptions
}

// Source returns the URL for url pages and the raw content otherwise.
func (p Page) Source() string {
	if p.Kind == KindURL {
		return p.URL
	}
	return p.Content
}

// Viewport describes the emulated screen.
type Viewport struct {
	Width             int64
	Height            int64
	DeviceScaleFactor float64
	Mobile            bool
	UserAgent         string
}

// WaitPlan is the resolved form of SnapshotOptions handed to the Renderer.
type WaitPlan struct {
	Viewport       Viewport
	ReadyState     ReadyState
	ScrollTimes    int
	MinScrollTimes int
	ScrollDelay    time.Duration
	ScrollOffset   int
	PageTimeout    time.Duration
	NetworkIdle    time.Duration
	Debug          bool
}

// RenderRequest is what the Renderer needs to produce one PDF.
type RenderRequest struct {
	Kind    Kind
	URL     string
	Content string
	Layout  PrintLayout
	Wait    WaitPlan
}

// SettleStats reports what the wait heuristic observed.
type SettleStats struct {
	ScrollIterations int
	FinalHeight      int64
	Settled          bool
	Attempts         int
}

// RenderResult is returned by a Renderer.
type RenderResult struct {
	PDF      []byte
	FinalURL string
	Stats    SettleStats
	Duration time.Duration
}

// Record is persisted for every archived PDF.
type Record struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Source     string    `json:"source"`
	FileName   string    `json:"file_name"`
	Bytes      int       `json:"bytes"`
	SHA256     string    `json:"sha256"`
	BlobURI    string    `json:"blob_uri"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// DiscoverRequest asks for links reachable from a seed page.
type DiscoverRequest struct {
	Seed     string
	MaxPages int
	SameHost bool
}

// BundleRequest describes a multi-page ZIP render.
type BundleRequest struct {
	Pages    []Page
	Discover *DiscoverRequest
	PDF      PDFOptions
	Snapshot SnapshotOptions
}
