package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/index/lexical"
)

type extractorFake struct {
	failFor map[string]error
}

func (f *extractorFake) Extract(_ context.Context, filename string, raw []byte) (string, error) {
	if err, ok := f.failFor[filename]; ok {
		return "", err
	}
	return string(raw), nil
}

// generatorFake answers by prompt kind and counts calls per kind.
type generatorFake struct {
	mu      sync.Mutex
	answers map[string]string
	errs    map[string]error
	calls   map[string]int
}

func newGeneratorFake() *generatorFake {
	return &generatorFake{
		answers: map[string]string{},
		errs:    map[string]error{},
		calls:   map[string]int{},
	}
}

func promptKind(prompt string) string {
	switch {
	case strings.Contains(prompt, "web search results"):
		return "summarize"
	case strings.Contains(prompt, "Document Content:"):
		return "enhance"
	default:
		return "direct"
	}
}

func (g *generatorFake) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	kind := promptKind(prompt)
	g.calls[kind]++
	if err := g.errs[kind]; err != nil {
		return "", err
	}
	return g.answers[kind], nil
}

func (g *generatorFake) Name() string { return "Fake Model" }

func (g *generatorFake) count(kind string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[kind]
}

type searcherFake struct {
	hit   domain.SearchHit
	found bool
	err   error
	calls int
}

func (s *searcherFake) Search(context.Context, string) (domain.SearchHit, bool, error) {
	s.calls++
	return s.hit, s.found, s.err
}

// indexFake returns canned search results.
type indexFake struct {
	hits      []domain.ScoredChunk
	searchErr error
	addErr    error
	added     []domain.IndexEntry
	seen      map[string]bool
}

func (f *indexFake) Method() domain.ProcessingMethod { return domain.MethodLexical }

func (f *indexFake) HasFingerprint(_ context.Context, fp string) (bool, error) {
	return f.seen[fp], nil
}

func (f *indexFake) AddDocument(_ context.Context, entries []domain.IndexEntry) error {
	if f.addErr != nil {
		return f.addErr
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	for _, e := range entries {
		f.seen[e.Metadata.Fingerprint] = true
	}
	f.added = append(f.added, entries...)
	return nil
}

func (f *indexFake) Search(context.Context, string, int) ([]domain.ScoredChunk, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	out := make([]domain.ScoredChunk, len(f.hits))
	copy(out, f.hits)
	return out, nil
}

func (f *indexFake) Count(context.Context) (int, error) { return len(f.added), nil }

type entryStoreFake struct {
	saves int
	last  []domain.IndexEntry
	err   error
}

func (s *entryStoreFake) Load(context.Context) ([]domain.IndexEntry, error) { return s.last, nil }

func (s *entryStoreFake) Save(_ context.Context, entries []domain.IndexEntry) error {
	s.saves++
	if s.err != nil {
		return s.err
	}
	s.last = entries
	return nil
}

type historyFake struct {
	turns     []domain.ConversationTurn
	appendErr error
	deleteErr error
}

func (h *historyFake) Append(_ context.Context, turn domain.ConversationTurn) error {
	if h.appendErr != nil {
		return h.appendErr
	}
	h.turns = append(h.turns, turn)
	return nil
}

func (h *historyFake) List(_ context.Context, id string, limit int) ([]domain.ConversationTurn, error) {
	var out []domain.ConversationTurn
	for _, t := range h.turns {
		if t.ConversationID == id {
			out = append(out, t)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (h *historyFake) Delete(_ context.Context, id string) (int, error) {
	if h.deleteErr != nil {
		return 0, h.deleteErr
	}
	kept := h.turns[:0]
	for _, t := range h.turns {
		if t.ConversationID != id {
			kept = append(kept, t)
		}
	}
	n := len(h.turns) - len(kept)
	h.turns = kept
	return n, nil
}

func (h *historyFake) Stats(context.Context) (domain.HistoryStats, error) {
	chats := make(map[string]struct{})
	for _, t := range h.turns {
		chats[t.ConversationID] = struct{}{}
	}
	return domain.HistoryStats{TotalMessages: len(h.turns), UniqueChats: len(chats)}, nil
}

var errCapability = errors.New("capability down")

const pythonDoc = "Python is a high-level language. Python supports OOP."

// newPythonIndex ingests the sample document into a lexical index with 5-word windows.
func newPythonIndex() (*lexical.Index, *IngestUseCase) {
	ix := lexical.New(lexical.DefaultMinScore)
	ingest := NewIngestUseCase(&extractorFake{}, chunking.NewSplitter(5, 1), ix, nil)
	_, _ = ingest.Ingest(context.Background(), []domain.SourceDocument{{Filename: "python.txt", Content: []byte(pythonDoc)}})
	return ix, ingest
}
