// Package app assembles SkyPulse components from a Config. The API server, the
// asynq worker, and the CLI all build their object graph here.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/skypulse/internal/api"
	"github.com/dharsanguruparan/skypulse/internal/config"
	"github.com/dharsanguruparan/skypulse/internal/database"
	"github.com/dharsanguruparan/skypulse/internal/enrichment"
	"github.com/dharsanguruparan/skypulse/internal/kv"
	"github.com/dharsanguruparan/skypulse/internal/logger"
	"github.com/dharsanguruparan/skypulse/internal/orchestrator"
	"github.com/dharsanguruparan/skypulse/internal/processing"
	"github.com/dharsanguruparan/skypulse/internal/queue"
	"github.com/dharsanguruparan/skypulse/internal/repository"
	"github.com/dharsanguruparan/skypulse/internal/s3storage"
	"github.com/dharsanguruparan/skypulse/internal/session"
	"github.com/dharsanguruparan/skypulse/internal/signing"
	"github.com/dharsanguruparan/skypulse/internal/summary"
	"github.com/dharsanguruparan/skypulse/internal/telemetry"
	"github.com/dharsanguruparan/skypulse/internal/worker"
)

const connectTimeout = 30 * time.Second

// App holds the wired components. Registry is nil when runs are launched
// through asynq; Exports is nil when no object store is configured.
type App struct {
	Config       *config.Config
	Log          *logger.Logger
	Store        kv.Store
	Repo         *repository.Repository
	Orchestrator *orchestrator.Orchestrator
	Registry     *processing.Registry
	Sessions     *session.Client
	Signer       *signing.Signer
	Exports      *s3storage.Storage

	closers []func() error
}

// New opens the configured store and builds every component on top of it.
// Close releases what New acquired.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log, Signer: signing.NewSigner(cfg.SigningSecret)}

	store, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	tp, shutdownTracing, err := telemetry.Init(ctx, log, telemetry.Config{
		ServiceName: "skypulse",
		Exporter:    cfg.TraceExporter,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.closers = append(a.closers, func() error {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdownTracing(flushCtx)
	})

	a.Repo = repository.New(store)
	enricher := enrichment.NewMock(cfg.EnrichMinDelay, cfg.EnrichMaxDelay, time.Now().UnixNano())
	summarizer, err := summary.New(ctx, summary.Options{
		APIKey:   cfg.GeminiAPIKey,
		Model:    cfg.GeminiModel,
		Endpoint: cfg.GeminiEndpoint,
		RPS:      cfg.SummaryRPS,
	}, log)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("init summarizer: %w", err)
	}
	a.Orchestrator = orchestrator.New(a.Repo, enricher, summarizer, log,
		orchestrator.WithWorkers(cfg.Workers),
		orchestrator.WithTracer(tp.Tracer("skypulse/orchestrator")),
	)

	var launcher session.Launcher
	switch cfg.Launcher {
	case config.LauncherAsynq:
		client := asynq.NewClient(redisOpt(cfg))
		a.closers = append(a.closers, client.Close)
		launcher = queue.NewLauncher(client)
	default:
		a.Registry = processing.NewRegistry(a.Orchestrator, log)
		launcher = a.Registry
	}
	a.Sessions = session.NewClient(a.Repo, launcher, log)

	if cfg.ExportsEnabled() {
		exports, err := s3storage.New(cfg)
		if err != nil {
			_ = a.Close(ctx)
			return nil, fmt.Errorf("init export storage: %w", err)
		}
		if err := exports.EnsureBucket(ctx); err != nil {
			_ = a.Close(ctx)
			return nil, fmt.Errorf("ensure export bucket: %w", err)
		}
		a.Exports = exports
	}

	log.Info("application wired",
		"store", cfg.StoreDriver,
		"launcher", cfg.Launcher,
		"workers", cfg.Workers,
		"tracing", cfg.TraceExporter,
		"exports", a.Exports != nil,
	)
	return a, nil
}

// OpenStore returns the kv backend named by cfg.StoreDriver.
func OpenStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (kv.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreBadger:
		store, err := kv.OpenBadger(cfg.BadgerPath)
		if err != nil {
			return nil, err
		}
		log.Info("opened badger store", "path", cfg.BadgerPath)
		return store, nil
	case config.StorePostgres:
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		pool, err := database.ConnectWithRetry(connectCtx, cfg.DatabaseURL, connectTimeout)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := database.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("connected postgres store")
		return kv.NewPostgresStore(pool), nil
	default:
		log.Info("using in-memory store", "latency", cfg.StoreLatency)
		return kv.WithLatency(kv.NewMemoryStore(), cfg.StoreLatency, cfg.StoreLatency), nil
	}
}

// API builds the HTTP server over the wired components.
func (a *App) API() *api.Server {
	deps := api.Deps{
		Sessions: a.Sessions,
		Signer:   a.Signer,
		Log:      a.Log,
	}
	if a.Exports != nil {
		deps.Exports = a.Exports
	}
	if a.Registry != nil {
		deps.Tasks = a.Registry
	}
	return api.New(a.Config, deps)
}

// RunWorker consumes session runs from asynq until ctx ends.
func (a *App) RunWorker(ctx context.Context) error {
	srv := asynq.NewServer(redisOpt(a.Config), asynq.Config{
		Concurrency: a.Config.QueueConcurrency,
		Logger:      a.Log.With("component", "Asynq").SugaredLogger,
	})
	processor := worker.NewProcessor(a.Orchestrator, a.Log)

	if err := srv.Start(processor.Handler()); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	a.Log.Info("worker started", "redis", a.Config.RedisAddr, "concurrency", a.Config.QueueConcurrency)
	<-ctx.Done()
	srv.Shutdown()
	a.Log.Info("worker stopped")
	return nil
}

// Close stops in-process runs and releases the store and queue client.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Registry != nil {
		if err := a.Registry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown registry: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}
