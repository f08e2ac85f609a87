// Package server builds the application's dependencies and runs the HTTP
// server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/snapshot-service/internal/api"
	"github.com/JakeFAU/snapshot-service/internal/browser"
	rediscache "github.com/JakeFAU/snapshot-service/internal/cache/redis"
	"github.com/JakeFAU/snapshot-service/internal/clock/system"
	"github.com/JakeFAU/snapshot-service/internal/config"
	"github.com/JakeFAU/snapshot-service/internal/discover"
	"github.com/JakeFAU/snapshot-service/internal/hash/sha256"
	"github.com/JakeFAU/snapshot-service/internal/htmlprep"
	"github.com/JakeFAU/snapshot-service/internal/id/uuid"
	memorypublisher "github.com/JakeFAU/snapshot-service/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/snapshot-service/internal/publisher/pubsub"
	"github.com/JakeFAU/snapshot-service/internal/snapshot"
	gcsstorage "github.com/JakeFAU/snapshot-service/internal/storage/gcs"
	localstorage "github.com/JakeFAU/snapshot-service/internal/storage/local"
	memorystorage "github.com/JakeFAU/snapshot-service/internal/storage/memory"
	pgstore "github.com/JakeFAU/snapshot-service/internal/storage/postgres"
	"github.com/JakeFAU/snapshot-service/internal/telemetry"
)

// Version is stamped at build time.
var Version = "dev"

const shutdownTimeout = 15 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg            config.Config
	logger         *zap.Logger
	service        *snapshot.Service
	renderer       *browser.Renderer
	apiServer      *api.Server
	storageClient  *storage.Client
	pubsubClient   *pubsub.Client
	publisher      *gcppublisher.Publisher
	records        *pgstore.RecordStore
	cache          *rediscache.Cache
	tracerShutdown telemetry.Shutdown
	checks         []api.ReadinessCheck
}

// Build creates the application's dependencies. Chrome is not started until
// the first render or readiness probe.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Bool("throttle", cfg.Throttle.Enabled),
		zap.String("version", Version),
	)

	ok := false
	defer func() {
		if !ok {
			app.closeInfrastructure(context.Background())
		}
	}()

	var err error
	app.tracerShutdown, err = telemetry.InitTracerProvider(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     Version,
	})
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}

	app.renderer, err = browser.New(cfg.BrowserConfig(), logger.Named("browser"))
	if err != nil {
		return nil, fmt.Errorf("renderer init failed: %w", err)
	}
	app.checks = append(app.checks, api.ReadinessCheck{Name: "browser", Check: app.renderer.Ready})

	deps := snapshot.Dependencies{
		Renderer: app.renderer,
		Preparer: htmlprep.New(),
		Hasher:   sha256.New(),
		Clock:    system.New(),
		IDGen:    uuid.New(),
	}
	if deps.BlobStore, err = setupStorage(ctx, app); err != nil {
		return nil, err
	}
	if deps.Records, err = setupDatabase(ctx, app); err != nil {
		return nil, err
	}
	if deps.Publisher, err = setupPublisher(ctx, app); err != nil {
		return nil, err
	}
	if deps.Cache, err = setupCache(ctx, app); err != nil {
		return nil, err
	}
	if cfg.Discover.Enabled {
		deps.Discoverer = discover.New(cfg.DiscoverConfig(), logger.Named("discover"))
	}

	app.service, err = snapshot.NewService(deps, cfg.SnapshotConfig(), logger.Named("snapshot"))
	if err != nil {
		return nil, fmt.Errorf("snapshot service init failed: %w", err)
	}
	app.apiServer = api.NewServer(app.service, cfg, logger.Named("api"), app.checks...)

	ok = true
	return app, nil
}

// Service exposes the snapshot service for in-process callers such as the
// render command.
func (a *App) Service() *snapshot.Service {
	return a.service
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run serves HTTP until ctx is canceled or SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
		close(serveErr)
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	err := <-serveErr
	a.Close(shutdownCtx)
	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Close releases every resource held by the App.
func (a *App) Close(ctx context.Context) {
	a.closeInfrastructure(ctx)
	a.logger.Info("shutdown complete")
	_ = a.logger.Sync()
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.renderer != nil {
		a.renderer.Close()
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storageClient != nil {
		if err := a.storageClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.records != nil {
		a.records.Close()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("redis close failed", zap.Error(err))
		}
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
}

func setupStorage(ctx context.Context, app *App) (snapshot.BlobStore, error) {
	switch app.cfg.Storage.Backend {
	case config.StorageGCS:
		app.logger.Info("using GCS storage backend", zap.String("bucket", app.cfg.Storage.GCSBucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storageClient = client
		store, err := gcsstorage.New(client, gcsstorage.Config{Bucket: app.cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		return store, nil
	case config.StorageLocal:
		app.logger.Info("using local storage backend", zap.String("path", app.cfg.Storage.LocalDir))
		store, err := localstorage.New(localstorage.Config{BaseDir: app.cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		return store, nil
	case config.StorageMemory:
		app.logger.Info("using in-memory storage backend")
		return memorystorage.NewBlobStore(), nil
	default:
		app.logger.Info("archiving disabled")
		return nil, nil
	}
}

func setupDatabase(ctx context.Context, app *App) (snapshot.RecordStore, error) {
	if app.cfg.DB.DSN == "" {
		if app.cfg.Storage.Backend == config.StorageMemory {
			return memorystorage.NewRecordStore(), nil
		}
		app.logger.Warn("no DSN specified for database, archive records disabled")
		return nil, nil
	}
	store, err := pgstore.New(ctx, pgstore.Config{
		DSN:      app.cfg.DB.DSN,
		Table:    app.cfg.DB.Table,
		MaxConns: int32(app.cfg.DB.MaxConns),
	})
	if err != nil {
		return nil, fmt.Errorf("record store init failed: %w", err)
	}
	app.records = store
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("record store schema failed: %w", err)
	}
	app.checks = append(app.checks, api.ReadinessCheck{Name: "postgres", Check: store.Ping})
	app.logger.Info("record store initialized", zap.String("table", app.cfg.DB.Table))
	return store, nil
}

func setupPublisher(ctx context.Context, app *App) (snapshot.Publisher, error) {
	if app.cfg.PubSub.TopicName == "" || app.cfg.PubSub.ProjectID == "" {
		if app.cfg.Storage.Backend == config.StorageMemory {
			app.logger.Info("no Pub/Sub topic configured, using in-memory publisher")
			return memorypublisher.New(), nil
		}
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubClient = client
	app.publisher = gcppublisher.New(client)
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return app.publisher, nil
}

func setupCache(ctx context.Context, app *App) (snapshot.Cache, error) {
	if app.cfg.Cache.Backend != config.CacheRedis {
		return nil, nil
	}
	c, err := rediscache.New(ctx, rediscache.Config{
		Addr:     app.cfg.Cache.RedisAddr,
		Password: app.cfg.Cache.RedisPassword,
		DB:       app.cfg.Cache.RedisDB,
		Prefix:   "snapshot:",
	})
	if err != nil {
		return nil, fmt.Errorf("redis cache init failed: %w", err)
	}
	app.cache = c
	app.checks = append(app.checks, api.ReadinessCheck{Name: "redis", Check: c.Ping})
	app.logger.Info("redis cache initialized", zap.String("addr", app.cfg.Cache.RedisAddr))
	return c, nil
}
