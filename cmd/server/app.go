package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rpattn/travelcms/internal/config"
	"github.com/rpattn/travelcms/internal/db"
	"github.com/rpattn/travelcms/internal/ingestion"
	"github.com/rpattn/travelcms/internal/ledger"
	"github.com/rpattn/travelcms/internal/lock"
	"github.com/rpattn/travelcms/internal/logger"
	"github.com/rpattn/travelcms/internal/middleware"
	"github.com/rpattn/travelcms/internal/provider"
	"github.com/rpattn/travelcms/internal/provider/openai"
	"github.com/rpattn/travelcms/internal/repository"
	"github.com/rpattn/travelcms/internal/repository/memory"
	"github.com/rpattn/travelcms/internal/repository/postgres"
	"github.com/rpattn/travelcms/internal/repository/supabase"
	"github.com/rpattn/travelcms/internal/storage"
	"github.com/rpattn/travelcms/internal/templates"
	"github.com/rpattn/travelcms/internal/translation"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
)

// app holds the dependencies shared by serve and worker.
type app struct {
	cfg        config.Config
	log        *logger.Logger
	store      repository.Store
	registry   *templates.Registry
	archive    ingestion.Archive
	redis      *redis.Client
	translator provider.Translator
	ledger     *ledger.Ledger
	runner     *ingestion.Runner
	closers    []func()
}

func newApp(ctx context.Context, cfg config.Config, log *logger.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	registry, err := templates.LoadDir(a.cfg.Templates.Dir)
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}
	a.registry = registry

	if err := a.openStore(ctx); err != nil {
		return err
	}

	if a.cfg.Queue.Mode == "asynq" || a.cfg.Queue.LockDriver == "redis" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		a.closers = append(a.closers, func() { _ = a.redis.Close() })
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach redis at %s: %w", a.cfg.Redis.Addr, err)
		}
	}

	if err := a.openArchive(ctx); err != nil {
		return err
	}

	var images provider.ImageGenerator
	if a.cfg.Translation.Provider == "openai" {
		client, err := openai.NewClient(openai.Config{
			BaseURL:    a.cfg.Translation.BaseURL,
			APIKey:     a.cfg.Translation.APIKey,
			Model:      a.cfg.Translation.Model,
			ImageModel: a.cfg.Translation.ImageModel,
			Timeout:    a.cfg.Translation.Timeout,
			MaxRetries: a.cfg.Translation.MaxRetries,
		}, a.log)
		if err != nil {
			return err
		}
		a.translator = client
		if a.cfg.Translation.GenerateImages {
			images = openai.NewFallbackImages(client, a.log)
		}
	}

	a.ledger = ledger.New(a.store.Jobs)

	processorOpts := []ingestion.ProcessorOption{ingestion.WithProcessorLogger(a.log)}
	if images != nil {
		processorOpts = append(processorOpts, ingestion.WithImageGenerator(images))
	}
	processor := ingestion.NewProcessor(a.store.Posts, a.store.Sections, processorOpts...)

	runnerOpts := []ingestion.RunnerOption{ingestion.WithRunnerLogger(a.log)}
	switch a.cfg.Queue.LockDriver {
	case "memory":
		runnerOpts = append(runnerOpts, ingestion.WithLocker(lock.NewMemoryLocker(), a.cfg.Queue.LockTTL))
	case "redis":
		runnerOpts = append(runnerOpts, ingestion.WithLocker(lock.NewRedisLocker(a.redis, ""), a.cfg.Queue.LockTTL))
	}
	a.runner = ingestion.NewRunner(a.ledger, a.store.Rows, a.store.GeneratedPosts, a.registry, processor, runnerOpts...)
	return nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Store.Driver {
	case "postgres":
		conn, err := db.NewConnection(ctx, a.cfg.DB())
		if err != nil {
			return err
		}
		a.closers = append(a.closers, conn.Close)
		a.store = postgres.NewStore(conn)
	case "supabase":
		client, err := supabase.NewClient(a.cfg.Supabase.URL, a.cfg.Supabase.Key)
		if err != nil {
			return err
		}
		a.store = supabase.NewStore(client)
	default:
		a.log.Warn("using in-memory store; data is lost on restart")
		a.store = memory.NewStore()
	}
	a.log.Info("store ready", "driver", a.cfg.Store.Driver)
	return nil
}

func (a *app) openArchive(ctx context.Context) error {
	switch a.cfg.Storage.Driver {
	case "minio":
		archive, err := storage.NewMinioArchive(storage.Config{
			Endpoint:  a.cfg.Storage.Endpoint,
			AccessKey: a.cfg.Storage.AccessKey,
			SecretKey: a.cfg.Storage.SecretKey,
			UseSSL:    a.cfg.Storage.UseSSL,
			Region:    a.cfg.Storage.Region,
			Bucket:    a.cfg.Storage.Bucket,
		})
		if err != nil {
			return err
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			return err
		}
		a.archive = archive
	case "memory":
		a.archive = storage.NewMemoryArchive()
	}
	return nil
}

func (a *app) redisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	}
}

func (a *app) uploadService(dispatcher ingestion.Dispatcher) *ingestion.Service {
	opts := []ingestion.Option{
		ingestion.WithDispatcher(dispatcher),
		ingestion.WithLogger(a.log),
	}
	if a.archive != nil {
		opts = append(opts, ingestion.WithArchive(a.archive))
	}
	return ingestion.NewService(a.ledger, a.store.Rows, a.store.GeneratedPosts, a.registry, opts...)
}

func (a *app) translationService() *translation.Service {
	return translation.NewService(
		a.store.Posts,
		a.store.Sections,
		a.store.Translations,
		a.translator,
		translation.WithBatchSize(a.cfg.Translation.BatchSize),
		translation.WithChunkDelay(a.cfg.Translation.ChunkDelay),
		translation.WithLogger(a.log),
	)
}

func (a *app) routes(uploads *ingestion.Service, translations *translation.Service) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	templates.NewHandler(a.registry).Register(mux)
	ingestion.NewHandler(uploads).Register(mux)
	translation.NewHandler(translations).Register(mux)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: a.cfg.HTTP.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{middleware.RequestIDHeader, "Content-Disposition"},
	})

	var handler http.Handler = mux
	handler = middleware.PostLoaderMiddleware(a.store.Posts)(handler)
	handler = middleware.LoggingMiddleware(a.log)(handler)
	handler = middleware.Recover(a.log)(handler)
	return corsHandler.Handler(handler)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
