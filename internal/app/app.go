package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/secondbrain-backend/internal/data/db"
	"github.com/yungbote/secondbrain-backend/internal/http"
	"github.com/yungbote/secondbrain-backend/internal/modules/rag"
	"github.com/yungbote/secondbrain-backend/internal/modules/rag/chunking"
	"github.com/yungbote/secondbrain-backend/internal/modules/rag/index"
	"github.com/yungbote/secondbrain-backend/internal/observability"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
	"github.com/yungbote/secondbrain-backend/internal/services"
)

// App owns every long-lived dependency. Its lifecycle is New, then Wire for
// the external clients, then Bootstrap before serving.
type App struct {
	Log *logger.Logger
	Cfg Config

	DB     *db.Service
	SagaDB *db.Service

	Repos    Repos
	Clients  Clients
	Services Services

	Index  *index.Handle
	RAG    rag.Usecases
	Server *http.Server

	otelShutdown func(context.Context) error
	wired        bool
}

// New opens the databases and wires the repos. It touches no external API,
// so migrate can run with only database settings.
func New(ctx context.Context, log *logger.Logger, cfg Config) (*App, error) {
	if cfg.MetricsEnabled {
		observability.Init()
	}
	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel)

	primary, err := db.NewService(cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	a := &App{Log: log, Cfg: cfg, DB: primary, otelShutdown: otelShutdown}

	sagaDB := primary.DB()
	if primary.Driver() == db.DriverSQLite {
		sagaCfg := cfg.DB
		sagaCfg.SQLitePath = cfg.SagaSQLitePath
		a.SagaDB, err = db.NewService(sagaCfg, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init saga database: %w", err)
		}
		sagaDB = a.SagaDB.DB()
	}
	a.Repos = wireRepos(primary.DB(), sagaDB, log)
	return a, nil
}

func (a *App) Migrate() error {
	if err := a.DB.AutoMigrateAll(); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	if a.SagaDB != nil {
		if err := a.SagaDB.AutoMigrateAll(); err != nil {
			return fmt.Errorf("automigrate saga database: %w", err)
		}
	}
	return nil
}

// Wire builds the model client, vector store, locker and services.
func (a *App) Wire(ctx context.Context) error {
	if a.wired {
		return nil
	}
	clients, err := wireClients(ctx, a.Log, a.Cfg)
	if err != nil {
		return err
	}
	svcs, err := wireServices(a.Log, a.Cfg, a.Repos, clients)
	if err != nil {
		clients.Close()
		return err
	}
	a.Clients = clients
	a.Services = svcs
	a.wired = true
	return nil
}

// Bootstrap detects the embedding dimension, ensures the vector index and
// builds the use cases and HTTP server on top of the resulting handle.
func (a *App) Bootstrap(ctx context.Context) error {
	if err := a.Wire(ctx); err != nil {
		return err
	}
	handle, err := index.Bootstrap(ctx, a.Log, a.Services.Embedder, a.Clients.VectorStore, a.Cfg.VectorNamespace)
	if err != nil {
		return err
	}
	a.Index = handle
	a.RAG = rag.New(rag.UsecasesDeps{
		DB:        a.DB.DB(),
		Log:       a.Log,
		Docs:      a.Repos.Document,
		Saga:      a.Services.Saga,
		Locks:     a.Clients.Locks,
		Chunker:   chunking.New(a.Cfg.MaxChunkTokens),
		Embedder:  a.Services.Embedder,
		Generator: a.Clients.OpenAI,
		Index:     handle,
		Tunables:  a.Cfg.Tunables,
	})

	handlers := wireHandlers(a.Log, a.DB.DB(), a.Services, a.RAG)
	middleware := wireMiddleware(a.Log, a.Services)
	a.Server = wireServer(a.Log, a.Cfg, handlers, middleware)
	return nil
}

// Run serves HTTP until ctx is cancelled. When SAGA_RECONCILE_INTERVAL is
// set, stuck deletions are reconciled in the background meanwhile.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return errors.New("app not bootstrapped")
	}
	if a.Cfg.SagaReconcileInterval > 0 {
		go a.reconcileLoop(ctx, a.Cfg.SagaReconcileInterval)
	}
	return a.Server.Run(ctx, a.Cfg.Addr(), a.Cfg.ShutdownTimeout)
}

func (a *App) Reconcile(ctx context.Context) (services.ReconcileResult, error) {
	if err := a.Wire(ctx); err != nil {
		return services.ReconcileResult{}, err
	}
	return a.Services.Saga.ReconcileDeletions(ctx, a.Cfg.SagaReconcileGrace)
}

func (a *App) reconcileLoop(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := a.Services.Saga.ReconcileDeletions(ctx, a.Cfg.SagaReconcileGrace); err != nil && ctx.Err() == nil {
				a.Log.Warn("Saga reconcile pass failed", "error", err)
			}
		}
	}
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.SagaDB != nil {
		_ = a.SagaDB.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.otelShutdown(ctx)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
