package bootstrap

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/knowledge-assistant/internal/config"
	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/observability/logging"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	t.Setenv("EMBEDDING_PROVIDER", "")
	t.Setenv("GENERATOR_PROVIDER", "none")
	t.Setenv("SEARCH_ENABLED", "false")
	t.Setenv("HISTORY_STORE", "memory")
	t.Setenv("SNAPSHOT_STORE", "file")
	t.Setenv("NATS_INGEST_ENABLED", "false")
	t.Setenv("RULES_FILE", "")
	t.Setenv("INDEX_PATH", filepath.Join(t.TempDir(), "index.json"))

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.ChunkSize, cfg.ChunkOverlap = 5, 1
	return cfg
}

func TestNewRestoresLexicalIndexFromSnapshot(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	app, err := New(ctx, cfg, "test", nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if app.Index.Method() != domain.MethodLexical {
		t.Fatalf("expected lexical index, got %q", app.Index.Method())
	}
	res, err := app.IngestUC.Ingest(ctx, []domain.SourceDocument{{
		Filename: "python.txt",
		Content:  []byte("Python is a high-level language. Python supports OOP."),
	}})
	if err != nil || res.DocumentsAdded != 2 {
		t.Fatalf("unexpected ingest result %+v %v", res, err)
	}
	app.Close()

	restarted, err := New(ctx, cfg, "test", nil)
	if err != nil {
		t.Fatalf("restart app: %v", err)
	}
	defer restarted.Close()

	stats, err := restarted.QueryUC.Stats(ctx)
	if err != nil || stats.TotalChunks != 2 {
		t.Fatalf("expected 2 restored chunks, got %+v %v", stats, err)
	}
	answer, err := restarted.QueryUC.Query(ctx, "What is Python?")
	if err != nil || !answer.Relevant {
		t.Fatalf("expected relevant answer after restart, got %+v %v", answer, err)
	}
}

func TestRestoreLogsThroughInjectedLogger(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	app, err := New(ctx, cfg, "test", nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if _, err := app.IngestUC.Ingest(ctx, []domain.SourceDocument{{Filename: "go.txt", Content: []byte("Go has goroutines and channels.")}}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	app.Close()

	var buf bytes.Buffer
	restarted, err := New(ctx, cfg, "test", logging.NewJSONLoggerTo(&buf, "test", "info"))
	if err != nil {
		t.Fatalf("restart app: %v", err)
	}
	defer restarted.Close()

	if !strings.Contains(buf.String(), `"msg":"index_restored"`) {
		t.Fatalf("expected index_restored on the injected logger, got %q", buf.String())
	}
}

func TestNewFallsBackToLexicalWhenEmbedderIsDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.EmbeddingProvider = "ollama"
	cfg.OllamaURL = server.URL

	app, err := New(context.Background(), cfg, "test", nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer app.Close()

	if app.Index.Method() != domain.MethodLexical {
		t.Fatalf("expected lexical fallback, got %q", app.Index.Method())
	}
}

func TestNewRejectsUnknownProviders(t *testing.T) {
	cfg := testConfig(t)
	cfg.GeneratorProvider = "mystery"
	if _, err := New(context.Background(), cfg, "test", nil); err == nil {
		t.Fatalf("expected unknown generator error")
	}

	cfg = testConfig(t)
	cfg.HistoryStore = "cassandra"
	if _, err := New(context.Background(), cfg, "test", nil); err == nil {
		t.Fatalf("expected unknown history store error")
	}
}

func TestRouteWithoutCapabilitiesApologizesOnMiss(t *testing.T) {
	cfg := testConfig(t)
	app, err := New(context.Background(), cfg, "test", nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer app.Close()

	decision, err := app.RouterUC.Route(context.Background(), "Who is the CEO of Saturn's moons?")
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if decision.Tier != domain.TierNone {
		t.Fatalf("expected apology with no search or generator configured, got %+v", decision)
	}
}
