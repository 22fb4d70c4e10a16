package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

type providerFake struct {
	name  string
	text  string
	found bool
	err   error
	calls int
}

func (p *providerFake) Name() string { return p.name }

func (p *providerFake) Lookup(context.Context, string) (string, bool, error) {
	p.calls++
	return p.text, p.found, p.err
}

func TestChainReturnsFirstFoundProvider(t *testing.T) {
	miss := &providerFake{name: "first"}
	hit := &providerFake{name: "second", text: "  Saturn   has\nrings ", found: true}
	never := &providerFake{name: "third", text: "x", found: true}

	got, found, err := NewChain(nil, miss, hit, never).Search(context.Background(), "saturn")
	if err != nil || !found {
		t.Fatalf("expected hit, got %v %v", found, err)
	}
	if got.Text != "Saturn has rings" || got.Provider != "second" {
		t.Fatalf("unexpected hit %+v", got)
	}
	if never.calls != 0 {
		t.Fatalf("expected later providers to be skipped")
	}
}

func TestChainErrorsOnlyWhenAllProvidersFail(t *testing.T) {
	failing := &providerFake{name: "a", err: errors.New("down")}
	missing := &providerFake{name: "b"}

	_, found, err := NewChain(nil, failing, missing).Search(context.Background(), "q")
	if err != nil || found {
		t.Fatalf("expected plain miss, got %v %v", found, err)
	}

	_, _, err = NewChain(nil, failing, &providerFake{name: "c", err: errors.New("also down")}).Search(context.Background(), "q")
	if err == nil {
		t.Fatalf("expected error when all providers fail")
	}
}

func TestCleanTextTruncates(t *testing.T) {
	long := strings.Repeat("word ", 200)
	out := CleanText(long)
	if len([]rune(out)) != MaxSnippetChars || !strings.HasSuffix(out, "...") {
		t.Fatalf("unexpected truncation: %d chars", len([]rune(out)))
	}
	if CleanText("a \t b") != "a b" {
		t.Fatalf("expected whitespace collapse")
	}
}

type kvFake struct {
	mu   sync.Mutex
	data map[string]string
}

func (k *kvFake) Get(_ context.Context, key string) (string, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.data[key]
	return v, ok, nil
}

func (k *kvFake) Set(_ context.Context, key, value string, _ time.Duration) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = value
	return nil
}

type searcherFake struct {
	hit   domain.SearchHit
	found bool
	calls int
}

func (s *searcherFake) Search(context.Context, string) (domain.SearchHit, bool, error) {
	s.calls++
	return s.hit, s.found, nil
}

func TestCachedServesRepeatQueriesFromKV(t *testing.T) {
	next := &searcherFake{hit: domain.SearchHit{Text: "answer", Provider: "DuckDuckGo"}, found: true}
	cached := NewCached(next, &kvFake{data: map[string]string{}}, time.Minute, nil)

	for i := 0; i < 3; i++ {
		hit, found, err := cached.Search(context.Background(), "What  is Go?")
		if err != nil || !found || hit.Text != "answer" {
			t.Fatalf("unexpected result %+v %v %v", hit, found, err)
		}
	}
	if next.calls != 1 {
		t.Fatalf("expected one upstream call, got %d", next.calls)
	}
}

func TestCachedDoesNotCacheMisses(t *testing.T) {
	next := &searcherFake{}
	cached := NewCached(next, &kvFake{data: map[string]string{}}, time.Minute, nil)

	_, _, _ = cached.Search(context.Background(), "q")
	_, _, _ = cached.Search(context.Background(), "q")
	if next.calls != 2 {
		t.Fatalf("expected misses to reach upstream, got %d calls", next.calls)
	}
}
