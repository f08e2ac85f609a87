package snapshot

import (
	"context"
	"io"
	"time"
)

// Renderer produces a PDF from a resolved request.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (RenderResult, error)
}

// ContentPreparer rewrites HTML content before it is loaded.
type ContentPreparer interface {
	Prepare(content, baseURL string) (string, error)
}

// LinkDiscoverer collects page URLs reachable from a seed page.
type LinkDiscoverer interface {
	Discover(ctx context.Context, req DiscoverRequest) ([]string, error)
}

// Cache stores rendered PDFs by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// BlobStore writes archived PDFs and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// RecordStore persists archive metadata.
type RecordStore interface {
	SaveRecord(ctx context.Context, record Record) error
}

// Publisher pushes render notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs.
type IDGenerator interface {
	NewID() (string, error)
}
