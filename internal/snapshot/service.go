package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/snapshot-service/internal/batch"
	"github.com/JakeFAU/snapshot-service/internal/bundle"
	"github.com/JakeFAU/snapshot-service/internal/metrics"
)

// ContentTypePDF is the MIME type used when archiving PDFs.
const ContentTypePDF = "application/pdf"

const (
	defaultDiscoverPages = 10
	archiveTimeout       = 30 * time.Second
)

// Config tunes the Service.
type Config struct {
	URLDefaults     Defaults
	ContentDefaults Defaults
	GroupSize       int
	GroupDelay      time.Duration
	MaxPages        int
	CacheTTL        time.Duration
	BlobPrefix      string
	Topic           string
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		URLDefaults: Defaults{
			Resolution:     DefaultResolution,
			ScrollTimes:    10,
			MinScrollTimes: 3,
			ScrollDelay:    500 * time.Millisecond,
			ReadyState:     ReadyStateNetworkIdle2,
			PageTimeout:    30 * time.Second,
			NetworkIdle:    500 * time.Millisecond,
		},
		ContentDefaults: Defaults{
			Resolution:     DefaultResolution,
			ScrollTimes:    0,
			MinScrollTimes: 1,
			ReadyState:     ReadyStateLoad,
			PageTimeout:    30 * time.Second,
			NetworkIdle:    500 * time.Millisecond,
		},
		GroupSize:  batch.DefaultGroupSize,
		GroupDelay: batch.DefaultDelay,
		MaxPages:   50,
		CacheTTL:   10 * time.Minute,
		BlobPrefix: "snapshots",
	}
}

// Dependencies are the collaborators of a Service. Only Renderer, Hasher,
// Clock and IDGen are required.
type Dependencies struct {
	Renderer   Renderer
	Preparer   ContentPreparer
	Discoverer LinkDiscoverer
	Cache      Cache
	BlobStore  BlobStore
	Records    RecordStore
	Publisher  Publisher
	Hasher     Hasher
	Clock      Clock
	IDGen      IDGenerator
}

// Service turns pages into PDFs and bundles.
type Service struct {
	deps   Dependencies
	cfg    Config
	logger *zap.Logger
	tracer trace.Tracer
}

// NewService wires a Service.
func NewService(deps Dependencies, cfg Config, logger *zap.Logger) (*Service, error) {
	switch {
	case deps.Renderer == nil:
		return nil, errors.New("snapshot: renderer is required")
	case deps.Hasher == nil:
		return nil, errors.New("snapshot: hasher is required")
	case deps.Clock == nil:
		return nil, errors.New("snapshot: clock is required")
	case deps.IDGen == nil:
		return nil, errors.New("snapshot: id generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.GroupSize <= 0 {
		cfg.GroupSize = batch.DefaultGroupSize
	}
	return &Service{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("github.com/JakeFAU/snapshot-service/internal/snapshot"),
	}, nil
}

// ToPDF renders raw HTML. When baseURL is set, relative links in content
// resolve against it.
func (s *Service) ToPDF(ctx context.Context, content, baseURL string, pdf PDFOptions, opts SnapshotOptions) ([]byte, error) {
	return s.RenderPage(ctx, Page{
		Kind:     KindContent,
		Content:  content,
		BaseURL:  baseURL,
		PDF:      pdf,
		Snapshot: opts,
	})
}

// URLToPDF loads rawURL in the browser and renders it.
func (s *Service) URLToPDF(ctx context.Context, rawURL string, pdf PDFOptions, opts SnapshotOptions) ([]byte, error) {
	return s.RenderPage(ctx, Page{
		Kind:     KindURL,
		URL:      rawURL,
		PDF:      pdf,
		Snapshot: opts,
	})
}

// RenderPage validates p, renders it and archives the result. Validation
// failures wrap one of the option sentinels; everything else wraps
// ErrRenderFailed.
func (s *Service) RenderPage(ctx context.Context, p Page) ([]byte, error) {
	req, err := s.buildRequest(p)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, p, req)
}

// Bundle renders every page of req and returns a ZIP archive with one PDF
// per page, in request order.
func (s *Service) Bundle(ctx context.Context, req BundleRequest) ([]byte, error) {
	pages := make([]Page, 0, len(req.Pages))
	pages = append(pages, req.Pages...)
	if req.Discover != nil {
		found, err := s.discover(ctx, *req.Discover)
		if err != nil {
			return nil, err
		}
		for _, u := range found {
			pages = append(pages, Page{Kind: KindURL, URL: u})
		}
	}
	if len(pages) == 0 {
		return nil, ErrNoPages
	}
	if s.cfg.MaxPages > 0 && len(pages) > s.cfg.MaxPages {
		return nil, fmt.Errorf("%w: %d pages requested, limit is %d", ErrTooManyPages, len(pages), s.cfg.MaxPages)
	}

	reqs := make([]RenderRequest, len(pages))
	for i := range pages {
		if pages[i].Kind == "" {
			pages[i].Kind = KindURL
		}
		if pages[i].PDF == (PDFOptions{}) {
			pages[i].PDF = req.PDF
		}
		if pages[i].Snapshot == (SnapshotOptions{}) {
			pages[i].Snapshot = req.Snapshot
		}
		r, err := s.buildRequest(pages[i])
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		reqs[i] = r
	}

	s.logger.Info("bundle started",
		zap.Int("pages", len(pages)),
		zap.Int("group_size", s.cfg.GroupSize),
		zap.Duration("group_delay", s.cfg.GroupDelay),
	)
	results := make([][]byte, len(pages))
	err := batch.Run(ctx, len(pages), batch.Config{Size: s.cfg.GroupSize, Delay: s.cfg.GroupDelay},
		func(ctx context.Context, i int) error {
			pdf, err := s.execute(ctx, pages[i], reqs[i])
			if err != nil {
				return fmt.Errorf("page %d: %w", i+1, err)
			}
			results[i] = pdf
			return nil
		})
	if err != nil {
		if !errors.Is(err, ErrRenderFailed) {
			err = fmt.Errorf("%w: %w", ErrRenderFailed, err)
		}
		return nil, err
	}

	namer := bundle.NewNamer()
	entries := make([]bundle.Entry, len(pages))
	for i, p := range pages {
		entries[i] = bundle.Entry{
			Name: namer.Name(p.FileName, fallbackName(i, p)),
			Data: results[i],
		}
	}
	var buf bytes.Buffer
	if err := bundle.Write(&buf, entries); err != nil {
		return nil, fmt.Errorf("%w: write zip: %w", ErrRenderFailed, err)
	}
	s.logger.Info("bundle finished", zap.Int("pages", len(pages)), zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

func (s *Service) discover(ctx context.Context, req DiscoverRequest) ([]string, error) {
	if s.deps.Discoverer == nil {
		return nil, ErrDiscoveryDisabled
	}
	seed, err := NormalizeURL(req.Seed)
	if err != nil {
		return nil, err
	}
	req.Seed = seed
	if req.MaxPages <= 0 {
		req.MaxPages = defaultDiscoverPages
	}
	if s.cfg.MaxPages > 0 && req.MaxPages > s.cfg.MaxPages {
		return nil, fmt.Errorf("%w: discovery of %d pages exceeds limit %d", ErrTooManyPages, req.MaxPages, s.cfg.MaxPages)
	}
	found, err := s.deps.Discoverer.Discover(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: discover links: %w", ErrRenderFailed, err)
	}
	s.logger.Info("links discovered", zap.String("seed", seed), zap.Int("count", len(found)))
	return found, nil
}

func (s *Service) buildRequest(p Page) (RenderRequest, error) {
	req := RenderRequest{Kind: p.Kind}
	var defaults Defaults
	switch p.Kind {
	case KindContent:
		if strings.TrimSpace(p.Content) == "" {
			return RenderRequest{}, ErrEmptyContent
		}
		req.Content = p.Content
		if p.BaseURL != "" {
			base, err := NormalizeURL(p.BaseURL)
			if err != nil {
				return RenderRequest{}, fmt.Errorf("baseUrl: %w", err)
			}
			if s.deps.Preparer != nil {
				prepared, err := s.deps.Preparer.Prepare(p.Content, base)
				if err != nil {
					return RenderRequest{}, fmt.Errorf("%w: prepare content: %w", ErrRenderFailed, err)
				}
				req.Content = prepared
			}
		}
		defaults = s.cfg.ContentDefaults
	case KindURL:
		u, err := NormalizeURL(p.URL)
		if err != nil {
			return RenderRequest{}, err
		}
		req.URL = u
		defaults = s.cfg.URLDefaults
	default:
		return RenderRequest{}, fmt.Errorf("%w: unknown page kind %q", ErrInvalidURL, p.Kind)
	}

	layout, err := p.PDF.Resolve()
	if err != nil {
		return RenderRequest{}, err
	}
	wait, err := p.Snapshot.Resolve(defaults)
	if err != nil {
		return RenderRequest{}, err
	}
	req.Layout = layout
	req.Wait = wait
	return req, nil
}

func (s *Service) execute(ctx context.Context, p Page, req RenderRequest) ([]byte, error) {
	kind := string(req.Kind)
	key := s.cacheKey(req)
	if pdf, ok := s.lookup(ctx, key); ok {
		return pdf, nil
	}

	ctx, span := s.tracer.Start(ctx, "snapshot.render", trace.WithAttributes(
		attribute.String("snapshot.kind", kind),
		attribute.String("snapshot.ready_state", string(req.Wait.ReadyState)),
		attribute.Int("snapshot.scroll_times", req.Wait.ScrollTimes),
	))
	defer span.End()
	if req.Kind == KindURL {
		span.SetAttributes(
			attribute.String("snapshot.url", req.URL),
			attribute.String("snapshot.site", metrics.SanitizeSite(req.URL)),
		)
	}

	metrics.IncActiveRenders()
	defer metrics.DecActiveRenders()

	start := s.deps.Clock.Now()
	res, err := s.deps.Renderer.Render(ctx, req)
	if err == nil && len(res.PDF) == 0 {
		err = errors.New("renderer returned an empty document")
	}
	if err != nil {
		metrics.ObserveRender(kind, metrics.StatusFailed, s.deps.Clock.Now().Sub(start), 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
		s.logger.Error("render failed",
			zap.String("kind", kind),
			zap.String("url", req.URL),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}
	if res.Duration == 0 {
		res.Duration = s.deps.Clock.Now().Sub(start)
	}
	metrics.ObserveRender(kind, metrics.StatusSucceeded, res.Duration, len(res.PDF))
	metrics.ObserveScrollIterations(res.Stats.ScrollIterations)
	span.SetAttributes(
		attribute.Int("snapshot.pdf_bytes", len(res.PDF)),
		attribute.Int("snapshot.scroll_iterations", res.Stats.ScrollIterations),
		attribute.Bool("snapshot.settled", res.Stats.Settled),
	)
	s.logger.Info("render finished",
		zap.String("kind", kind),
		zap.String("url", req.URL),
		zap.Int("bytes", len(res.PDF)),
		zap.Int("scroll_iterations", res.Stats.ScrollIterations),
		zap.Int64("final_height", res.Stats.FinalHeight),
		zap.Bool("settled", res.Stats.Settled),
		zap.Int("attempts", res.Stats.Attempts),
		zap.Duration("duration", res.Duration),
	)

	s.store(ctx, key, res.PDF)
	s.archive(ctx, p, req, res)
	return res.PDF, nil
}

// cacheKey returns "" when caching is off or the request cannot be keyed.
func (s *Service) cacheKey(req RenderRequest) string {
	if s.deps.Cache == nil || s.cfg.CacheTTL <= 0 {
		return ""
	}
	req.Wait.Debug = false
	raw, err := json.Marshal(req)
	if err != nil {
		return ""
	}
	digest, err := s.deps.Hasher.Hash(raw)
	if err != nil {
		return ""
	}
	return "pdf:" + digest
}

func (s *Service) lookup(ctx context.Context, key string) ([]byte, bool) {
	if key == "" {
		return nil, false
	}
	pdf, ok, err := s.deps.Cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.ObserveCacheLookup(metrics.CacheError)
		s.logger.Warn("cache lookup failed", zap.String("key", key), zap.Error(err))
		return nil, false
	case !ok || len(pdf) == 0:
		metrics.ObserveCacheLookup(metrics.CacheMiss)
		return nil, false
	default:
		metrics.ObserveCacheLookup(metrics.CacheHit)
		s.logger.Debug("cache hit", zap.String("key", key))
		return pdf, true
	}
}

func (s *Service) store(ctx context.Context, key string, pdf []byte) {
	if key == "" {
		return
	}
	if err := s.deps.Cache.Set(ctx, key, pdf, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("cache store failed", zap.String("key", key), zap.Error(err))
	}
}

// archive persists the PDF, its record and a notification. Failures are
// logged and never reach the caller.
func (s *Service) archive(ctx context.Context, p Page, req RenderRequest, res RenderResult) {
	if s.deps.BlobStore == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()

	id, err := s.deps.IDGen.NewID()
	if err != nil {
		s.logger.Warn("archive id generation failed", zap.Error(err))
		return
	}
	digest, err := s.deps.Hasher.Hash(res.PDF)
	if err != nil {
		s.logger.Warn("archive hash failed", zap.Error(err))
		return
	}
	now := s.deps.Clock.Now().UTC()
	uri, err := s.deps.BlobStore.PutObject(ctx, s.blobPath(id, now), ContentTypePDF, bytes.NewReader(res.PDF))
	if err != nil {
		s.logger.Warn("archive upload failed", zap.String("id", id), zap.Error(err))
		return
	}

	record := Record{
		ID:         id,
		Kind:       req.Kind,
		Source:     s.recordSource(req),
		FileName:   p.FileName,
		Bytes:      len(res.PDF),
		SHA256:     digest,
		BlobURI:    uri,
		DurationMs: res.Duration.Milliseconds(),
		CreatedAt:  now,
	}
	if s.deps.Records != nil {
		if err := s.deps.Records.SaveRecord(ctx, record); err != nil {
			s.logger.Warn("archive record failed", zap.String("id", id), zap.Error(err))
		}
	}
	if s.deps.Publisher != nil && s.cfg.Topic != "" {
		msgID, err := s.deps.Publisher.Publish(ctx, s.cfg.Topic, record)
		if err != nil {
			s.logger.Warn("archive publish failed", zap.String("id", id), zap.Error(err))
			return
		}
		s.logger.Debug("archive published", zap.String("id", id), zap.String("message_id", msgID))
	}
}

func (s *Service) blobPath(id string, now time.Time) string {
	return path.Join(s.cfg.BlobPrefix, now.Format("2006/01/02"), id+".pdf")
}

// recordSource keeps raw HTML out of records; content renders are identified
// by their digest.
func (s *Service) recordSource(req RenderRequest) string {
	if req.Kind == KindURL {
		return req.URL
	}
	digest, err := s.deps.Hasher.Hash([]byte(req.Content))
	if err != nil {
		return "content"
	}
	return "sha256:" + digest
}

func fallbackName(i int, p Page) string {
	host := "content"
	if p.Kind == KindURL {
		host = hostOf(p.URL)
	}
	return fmt.Sprintf("%03d-%s.pdf", i+1, host)
}
