package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/knowledge-assistant/internal/config"
	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/core/ports"
	"github.com/kirillkom/knowledge-assistant/internal/core/usecase"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/extractor"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/index/lexical"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/index/vector"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/repository/memory"
	mongorepo "github.com/kirillkom/knowledge-assistant/internal/infrastructure/repository/mongo"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/search"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/search/duckduckgo"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/knowledge-assistant/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Index     ports.KnowledgeIndex
	IngestUC  *usecase.IngestUseCase
	QueryUC   *usecase.QueryUseCase
	RouterUC  *usecase.FallbackRouter
	ChatUC    *usecase.ChatUseCase
	Queue     *nats.Queue
	Metrics   *metrics.HTTPServerMetrics
	Consumer  *metrics.ConsumerMetrics
	service   string
	closeFns  []func()
	db        *sql.DB
	gemini    *gemini.Client
	ollama    *ollama.Client
	executor  *resilience.Executor
	snapshot  ports.Snapshotter
	entries   ports.EntryStore
	history   ports.HistoryStore
	searcher  ports.WebSearcher
	generator ports.Generator
}

// New wires every capability selected by cfg. Optional capabilities that fail
// to start are logged and left out; the service still answers from what remains.
func New(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{
		Config:   cfg,
		Logger:   logger,
		service:  service,
		executor: NewExecutor(cfg, logger),
	}

	if err := app.initCapabilities(ctx); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.initIndex(ctx); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.initHistory(ctx); err != nil {
		app.Close()
		return nil, err
	}
	app.initSearch(ctx)

	app.Metrics = metrics.NewHTTPServerMetrics(service)
	pipeline := metrics.NewPipelineMetrics(service, app.Metrics.Registry())

	rules := cfg.Rules
	enhancer := usecase.NewEnhancer(app.generator, rules, seconds(cfg.GenerateTimeoutSeconds), logger)
	retriever := usecase.NewRetriever(app.Index, cfg.Thresholds, seconds(cfg.EmbedTimeoutSeconds))

	app.IngestUC = usecase.NewIngestUseCase(
		extractor.New(),
		chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		app.Index,
		logger,
	).WithPersistence(app.snapshot, app.entries).WithObserver(pipeline)
	app.QueryUC = usecase.NewQueryUseCase(app.Index, retriever, enhancer, rules, logger)
	app.RouterUC = usecase.NewFallbackRouter(app.QueryUC, app.searcher, enhancer, rules, usecase.RouterConfig{
		SearchConfidence: cfg.SearchConfidence,
		DirectConfidence: cfg.DirectConfidence,
		SearchTimeout:    seconds(cfg.SearchTimeoutSeconds),
	}, logger).WithObserver(pipeline)
	app.ChatUC = usecase.NewChatUseCase(app.RouterUC, app.history, logger)

	if cfg.NATSIngestEnabled {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: app.executor,
			Logger:             logger,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init ingest queue: %w", err)
		}
		app.Queue = queue
		app.Consumer = metrics.NewConsumerMetrics(service, app.Metrics.Registry())
		app.onClose(queue.Close)
	}

	logger.Info("app_initialized",
		"processing_method", app.Index.Method(),
		"generator", enhancer.Name(),
		"web_search", app.searcher != nil,
		"persistence", app.entries != nil,
		"history_store", cfg.HistoryStore,
	)
	return app, nil
}

// initCapabilities builds the embedding and generative clients. A configured
// embedder that does not answer a probe is dropped in favour of the lexical index.
func (a *App) initCapabilities(ctx context.Context) error {
	cfg := a.Config
	if cfg.EmbeddingProvider == "gemini" || cfg.GeneratorProvider == "gemini" {
		client, err := gemini.New(ctx, cfg.GeminiAPIKey, a.executor)
		if err != nil {
			return fmt.Errorf("init gemini: %w", err)
		}
		a.gemini = client
		a.onClose(func() { _ = client.Close() })
	}
	if cfg.EmbeddingProvider == "ollama" || cfg.GeneratorProvider == "ollama" {
		a.ollama = ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, a.executor)
	}

	switch cfg.GeneratorProvider {
	case "gemini":
		a.generator = a.gemini.Generator(cfg.GeminiModel, gemini.DefaultOptions())
	case "ollama":
		a.generator = ollama.NewGenerator(a.ollama, ollama.DefaultGenerateOptions())
	case "", "none":
	default:
		return fmt.Errorf("unknown generator provider %q", cfg.GeneratorProvider)
	}
	return nil
}

func (a *App) embedder(ctx context.Context) (ports.Embedder, error) {
	var embedder ports.Embedder
	switch a.Config.EmbeddingProvider {
	case "":
		return nil, nil
	case "gemini":
		embedder = a.gemini.Embedder(a.Config.GeminiEmbedModel)
	case "ollama":
		embedder = ollama.NewEmbedder(a.ollama)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", a.Config.EmbeddingProvider)
	}

	timeout := seconds(a.Config.EmbedTimeoutSeconds)
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := embedder.EmbedQuery(probeCtx, "capability probe"); err != nil {
		a.Logger.Warn("embedding_capability_unavailable", "provider", a.Config.EmbeddingProvider, "error", err)
		return nil, nil
	}
	return embedder, nil
}

func (a *App) initIndex(ctx context.Context) error {
	cfg := a.Config
	embedder, err := a.embedder(ctx)
	if err != nil {
		return err
	}

	if embedder == nil {
		ix := lexical.New(cfg.LexicalMinScore)
		a.Index, a.snapshot = ix, ix
	} else {
		switch cfg.VectorStore {
		case "qdrant":
			// Qdrant is durable on its own and is not snapshotted.
			a.Index = vector.New(embedder, qdrant.New(cfg.QdrantURL, cfg.QdrantCollection))
		case "", "memory":
			store := vector.NewMemoryStore()
			a.Index, a.snapshot = vector.New(embedder, store), store
		default:
			return fmt.Errorf("unknown vector store %q", cfg.VectorStore)
		}
	}

	if a.snapshot == nil {
		return nil
	}
	store, err := a.entryStore(ctx)
	if err != nil {
		a.Logger.Warn("index_persistence_disabled", "store", cfg.SnapshotStore, "error", err)
		return nil
	}
	if store == nil {
		return nil
	}
	if err := restore(ctx, a.snapshot, store, a.Logger); err != nil {
		a.Logger.Warn("index_persistence_disabled", "store", cfg.SnapshotStore, "error", err)
		return nil
	}
	a.entries = store
	return nil
}

func (a *App) entryStore(ctx context.Context) (ports.EntryStore, error) {
	switch a.Config.SnapshotStore {
	case "", "none":
		return nil, nil
	case "file":
		return localfs.New(a.Config.IndexPath)
	case "postgres":
		db, err := a.postgres(ctx)
		if err != nil {
			return nil, err
		}
		return postgres.NewChunkRepository(db), nil
	default:
		return nil, fmt.Errorf("unknown snapshot store %q", a.Config.SnapshotStore)
	}
}

func restore(ctx context.Context, snapshot ports.Snapshotter, store ports.EntryStore, logger *slog.Logger) error {
	entries, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load index snapshot: %w", err)
	}
	if err := snapshot.Restore(entries); err != nil {
		return fmt.Errorf("restore index snapshot: %w", err)
	}
	logger.Info("index_restored", "entries", len(entries))
	return nil
}

func (a *App) initHistory(ctx context.Context) error {
	switch a.Config.HistoryStore {
	case "", "memory":
		a.history = memory.NewHistoryStore()
	case "postgres":
		db, err := a.postgres(ctx)
		if err != nil {
			return err
		}
		a.history = postgres.NewConversationRepository(db)
	case "mongo":
		client, err := mongorepo.Connect(ctx, a.Config.MongoURI)
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		a.onClose(func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		})
		a.history = mongorepo.NewHistoryStore(client.Database(a.Config.MongoDatabase))
	default:
		return fmt.Errorf("unknown history store %q", a.Config.HistoryStore)
	}
	return nil
}

func (a *App) initSearch(ctx context.Context) {
	cfg := a.Config
	if !cfg.SearchEnabled {
		return
	}
	ddg := duckduckgo.New(duckduckgo.Config{
		InstantURL:     cfg.SearchInstantURL,
		HTMLURL:        cfg.SearchHTMLURL,
		RequestsPerSec: cfg.SearchRequestsPerSec,
		Timeout:        seconds(cfg.SearchTimeoutSeconds),
	})
	instant, html := ddg.Providers()
	chain := search.NewChain(a.Logger, instant, html)
	a.searcher = chain

	if cfg.RedisURL == "" {
		return
	}
	kv, err := search.NewRedisKV(ctx, cfg.RedisURL)
	if err != nil {
		a.Logger.Warn("search_cache_disabled", "error", err)
		return
	}
	a.onClose(func() { _ = kv.Close() })
	a.searcher = search.NewCached(chain, kv, seconds(cfg.SearchCacheTTLSeconds), a.Logger)
}

func (a *App) postgres(ctx context.Context) (*sql.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := postgres.OpenDB(a.Config.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	a.db = db
	a.onClose(func() { _ = db.Close() })
	return db, nil
}

// ConsumeIngest feeds queued documents to the ingestion pipeline until ctx is done.
func (a *App) ConsumeIngest(ctx context.Context) error {
	if a.Queue == nil {
		return fmt.Errorf("ingest queue is not enabled")
	}
	return a.Queue.SubscribeIngest(ctx, func(ctx context.Context, doc domain.SourceDocument) (*domain.IngestResult, error) {
		a.Consumer.StartMessage()
		start := time.Now()
		result, err := a.IngestUC.Ingest(ctx, []domain.SourceDocument{doc})
		if err == nil && len(result.FilesRejected) > 0 {
			err = domain.WrapError(domain.ErrInvalidInput, "ingest "+doc.Filename, errors.New(result.FilesRejected[0].Reason))
		}
		a.Consumer.FinishMessage(a.service, time.Since(start), err)
		return result, err
	})
}

// BreakerStates reports the circuit breaker state per external operation.
func (a *App) BreakerStates() map[string]string {
	return a.executor.States()
}

func (a *App) onClose(fn func()) {
	a.closeFns = append(a.closeFns, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}

// NewExecutor builds the resilience policy shared by every external capability.
func NewExecutor(cfg config.Config, logger *slog.Logger) *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		CallTimeout:      seconds(cfg.ResilienceCallTimeoutSeconds),
		RetryMaxAttempts: cfg.ResilienceRetryAttempts,
		BreakerEnabled:   cfg.BreakerEnabled,
	}).WithLogger(logger)
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
