// Package services wires the process-singleton components (C1-C11) into one
// Services aggregate, constructed once at startup and shut down in reverse
// order, following the teacher's internal/cli/admin/serve.go wiring
// sequence: config → storage/backends → core components → transport.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/kbcore/internal/authgate"
	"github.com/cloo-solutions/kbcore/internal/config"
	"github.com/cloo-solutions/kbcore/internal/contentapi"
	"github.com/cloo-solutions/kbcore/internal/database"
	"github.com/cloo-solutions/kbcore/internal/extractor"
	"github.com/cloo-solutions/kbcore/internal/indexer"
	"github.com/cloo-solutions/kbcore/internal/indexmanager"
	"github.com/cloo-solutions/kbcore/internal/openai"
	"github.com/cloo-solutions/kbcore/internal/orchestrator"
	"github.com/cloo-solutions/kbcore/internal/retriever"
	"github.com/cloo-solutions/kbcore/internal/storage"
	"github.com/cloo-solutions/kbcore/internal/tools"
	"github.com/cloo-solutions/kbcore/internal/tracering"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Services aggregates every process-singleton component request handlers
// need. It is constructed once at startup from Config and passed into
// handlers explicitly — never reached via package-level globals.
type Services struct {
	Config *config.Config

	Storage      storage.Storage
	IndexManager *indexmanager.Manager
	Retriever    *retriever.Retriever
	Tools        *tools.Registry
	Orchestrator *orchestrator.Orchestrator
	AuthGate     *authgate.Gate
	ContentAPI   *contentapi.ContentAPI
	Traces       *tracering.Store

	sessionStore *authgate.SessionStore
	pgPool       *pgxpool.Pool
}

// New constructs every component in dependency order. Close() must be
// called, in reverse order, once the caller is done (typically on
// shutdown signal).
func New(ctx context.Context, cfg *config.Config) (*Services, error) {
	backend, pool, err := newStorageBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init storage backend: %w", err)
	}

	var embedder indexer.Embedder
	var completer orchestrator.Completer
	if cfg.HasOpenAI() {
		client := openai.NewClientWithConfig(openai.Config{
			APIKey:    cfg.OpenAIAPIKey,
			ChatModel: cfg.CompleterModel,
		})
		embedder = client
		completer = client
	}

	manager := indexmanager.New(backend, embedder)
	retr := retriever.New(manager, embedder, backend)
	registry := tools.NewDefaultRegistry(cfg.WebSearchBaseURL)
	for _, name := range cfg.DisabledToolNames() {
		registry.SetEnabled(name, false)
	}
	orch := orchestrator.New(backend, retr, registry, completer)
	content := contentapi.New(backend, manager, extractor.New(nil))

	sessionStore, err := authgate.OpenSessionStore(cfg.SessionDBPath)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	gate := authgate.New(authgate.Config{
		SigningKey: cfg.AuthSigningKey,
		APIKey:     cfg.APIKey,
		DefaultTTL: time.Hour,
	}, sessionStore)

	traces, err := tracering.Open(cfg.TraceDBPath, tracering.Retention{
		MaxRecords: cfg.TraceMaxRecords,
		MaxAge:     time.Duration(cfg.TraceMaxAgeSeconds) * time.Second,
	})
	if err != nil {
		sessionStore.Close()
		return nil, fmt.Errorf("open trace store: %w", err)
	}

	return &Services{
		Config:       cfg,
		Storage:      backend,
		IndexManager: manager,
		Retriever:    retr,
		Tools:        registry,
		Orchestrator: orch,
		AuthGate:     gate,
		ContentAPI:   content,
		Traces:       traces,
		sessionStore: sessionStore,
		pgPool:       pool,
	}, nil
}

// Close shuts down components in the reverse of their construction order.
func (s *Services) Close() {
	if s.Traces != nil {
		s.Traces.Close()
	}
	if s.sessionStore != nil {
		s.sessionStore.Close()
	}
	if s.pgPool != nil {
		s.pgPool.Close()
	}
}

func newStorageBackend(ctx context.Context, cfg *config.Config) (storage.Storage, *pgxpool.Pool, error) {
	switch cfg.StorageType {
	case "", "file":
		s, err := storage.NewFileStorage(cfg.StorageRoot)
		return s, nil, err
	case "fileshare":
		s, err := storage.NewFileShareStorage(cfg.StorageRoot)
		return s, nil, err
	case "blob":
		s, err := storage.NewBlobStorage(ctx, storage.BlobClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		return s, nil, err
	case "doc_db":
		if !cfg.SkipMigrations {
			if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
				return nil, nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}
		return storage.NewDocDBStorage(pool), pool, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORAGE_TYPE %q", cfg.StorageType)
	}
}
