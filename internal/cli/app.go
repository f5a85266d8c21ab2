// Package cli wires the knowledge base from configuration for the kbased
// commands.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/tipo-sto/kbase/internal/cache"
	"github.com/tipo-sto/kbase/internal/chunker"
	"github.com/tipo-sto/kbase/internal/config"
	"github.com/tipo-sto/kbase/internal/database"
	"github.com/tipo-sto/kbase/internal/extractor"
	"github.com/tipo-sto/kbase/internal/lexicon"
	"github.com/tipo-sto/kbase/internal/logger"
	"github.com/tipo-sto/kbase/internal/openai"
	"github.com/tipo-sto/kbase/internal/repository"
	"github.com/tipo-sto/kbase/internal/service"
	"github.com/tipo-sto/kbase/internal/storage"
	"github.com/tipo-sto/kbase/internal/telemetry"
	"github.com/tipo-sto/kbase/internal/vectorstore"
)

// App holds the wired knowledge base and everything that must be released
// when a command finishes.
type App struct {
	Config *config.Config
	Log    *logger.Logger
	KB     *service.KnowledgeBase
	// SearchLog is only set for the postgres backend.
	SearchLog *repository.SearchLogRepository

	closers []func()
}

type BuildOptions struct {
	// Migrate applies pending migrations before the postgres store is used.
	Migrate bool
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Build connects every backend named by cfg. On error everything acquired so
// far is released.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger, opts BuildOptions) (_ *App, err error) {
	app := &App{Config: cfg, Log: log}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	if cfg.HasSentry() {
		app.onClose(telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			Release:          cfg.SentryRelease,
			TracesSampleRate: cfg.SentrySampleRate,
			Debug:            cfg.Debug,
		}, log))
	}

	var kbOpts []service.Option

	store, err := app.openStore(ctx, opts, &kbOpts)
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.HasRedis() {
		redisCache, err := cache.NewRedis(ctx, cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.onClose(func() { _ = redisCache.Close() })
		kbOpts = append(kbOpts, service.WithEmbeddingCache(redisCache))
		log.Info("query embedding cache", "backend", "redis")
	} else {
		kbOpts = append(kbOpts, service.WithEmbeddingCache(cache.NewMemory(cfg.CacheSize, cfg.CacheTTL)))
	}

	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Info("archiving originals", "bucket", cfg.S3Bucket)
		kbOpts = append(kbOpts, service.WithArchiver(s3Client))
	}

	tok, err := chunker.NewTiktoken(chunker.DefaultEncoding)
	if err != nil {
		return nil, err
	}
	chk, err := chunker.New(tok, cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	lex := lexicon.Default()
	if cfg.LexiconPath != "" {
		if lex, err = lexicon.Load(cfg.LexiconPath); err != nil {
			return nil, err
		}
	}
	expansions, brands := lex.Size()
	log.Debug("lexicon loaded", "expansions", expansions, "brands", brands)

	app.KB = service.NewKnowledgeBase(
		service.Config{
			CollectionName:   cfg.CollectionName,
			EmbedBatchSize:   cfg.EmbedBatchSize,
			EmbedConcurrency: cfg.EmbedConcurrency,
			TopK:             cfg.TopK,
			MinRelevance:     cfg.MinRelevance,
		},
		extractor.New(log, extractor.WithPdftotext(cfg.PdftotextPath)),
		chk,
		embedder,
		store,
		lex,
		log,
		kbOpts...,
	)
	return app, nil
}

func (a *App) openStore(ctx context.Context, opts BuildOptions, kbOpts *[]service.Option) (service.VectorStore, error) {
	cfg := a.Config
	if !cfg.HasPostgres() {
		store, err := vectorstore.OpenSQLite(cfg.SQLitePath, cfg.CollectionName)
		if err != nil {
			return nil, err
		}
		a.onClose(func() { _ = store.Close() })
		a.Log.Info("vector store", "backend", config.StoreBackendSQLite, "path", cfg.SQLitePath)
		return store, nil
	}

	if opts.Migrate {
		version, err := database.MigrateUp(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.Log.Info("migrations applied", "version", version)
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, err
	}
	a.onClose(pool.Close)

	a.SearchLog = repository.NewSearchLogRepository(pool)
	*kbOpts = append(*kbOpts, service.WithSearchLogger(a.SearchLog))
	a.Log.Info("vector store", "backend", config.StoreBackendPostgres, "collection", cfg.CollectionName)
	return repository.NewChunkRepository(pool, cfg.CollectionName), nil
}

func newEmbedder(cfg *config.Config) (service.Embedder, error) {
	client, err := openai.NewClient(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		RequestsPerSecond:   cfg.EmbedRatePerSec,
	})
	if errors.Is(err, openai.ErrNoAPIKey) {
		return unconfiguredEmbedder{model: cfg.EmbeddingModel}, nil
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

// unconfiguredEmbedder lets list, get, delete and stats work without a
// provider key. Anything that needs a vector fails with a hint.
type unconfiguredEmbedder struct {
	model string
}

func (e unconfiguredEmbedder) Model() string { return e.model }

func (e unconfiguredEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("%w: set KBASE_OPENAI_API_KEY", openai.ErrNoAPIKey)
}
