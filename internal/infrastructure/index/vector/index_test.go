package vector

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

// embedderFake maps words to fixed axes so cosine similarity is predictable.
type embedderFake struct {
	axes     []string
	err      error
	calls    int
	lastSize int
}

func (f *embedderFake) vector(text string) []float32 {
	out := make([]float32, len(f.axes))
	lower := strings.ToLower(text)
	for i, axis := range f.axes {
		if strings.Contains(lower, axis) {
			out[i] = 1
		}
	}
	return out
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.lastSize = len(texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, f.vector(t))
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector(text), nil
}

func chunk(id, text string) domain.IndexEntry {
	return domain.IndexEntry{
		ID:   id,
		Text: text,
		Metadata: domain.ChunkMetadata{
			Filename:    "doc.txt",
			Fingerprint: "fp-doc",
		},
	}
}

func TestIndexSearchRanksByCosine(t *testing.T) {
	emb := &embedderFake{axes: []string{"python", "language", "saturn"}}
	ix := New(emb, NewMemoryStore())

	err := ix.AddDocument(context.Background(), []domain.IndexEntry{
		chunk("c0", "Python is a high-level language."),
		chunk("c1", "Saturn has rings."),
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if emb.calls != 1 || emb.lastSize != 2 {
		t.Fatalf("expected one batched embed call, got calls=%d size=%d", emb.calls, emb.lastSize)
	}

	hits, err := ix.Search(context.Background(), "python", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 || hits[0].ID != "c0" {
		t.Fatalf("unexpected hits %+v", hits)
	}
	for _, h := range hits {
		if h.Confidence < 0 || h.Confidence > 1 {
			t.Fatalf("confidence out of range: %f", h.Confidence)
		}
	}
	if hits[1].Confidence != 0 {
		t.Fatalf("expected orthogonal chunk to score 0, got %f", hits[1].Confidence)
	}
}

func TestIndexClampsNegativeSimilarity(t *testing.T) {
	store := NewMemoryStore()
	_ = store.Upsert(context.Background(), []domain.IndexEntry{{ID: "neg", Text: "x", Vector: []float32{-1, 0}}})
	ix := New(queryEmbedder{vec: []float32{1, 0}}, store)

	hits, err := ix.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].Confidence != 0 {
		t.Fatalf("expected clamped confidence 0, got %+v", hits)
	}
}

type queryEmbedder struct{ vec []float32 }

func (q queryEmbedder) Embed(context.Context, []string) ([][]float32, error) { return nil, nil }
func (q queryEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return q.vec, nil
}

func TestIndexAddDocumentPropagatesEmbedError(t *testing.T) {
	emb := &embedderFake{axes: []string{"a"}, err: errors.New("down")}
	store := NewMemoryStore()
	ix := New(emb, store)

	if err := ix.AddDocument(context.Background(), []domain.IndexEntry{chunk("c0", "a")}); err == nil {
		t.Fatalf("expected error")
	}
	if n, _ := store.Count(context.Background()); n != 0 {
		t.Fatalf("expected no partial writes, got %d", n)
	}
}

func TestMemoryStoreRestoreSkipsEntriesWithoutVectors(t *testing.T) {
	store := NewMemoryStore()
	err := store.Restore([]domain.IndexEntry{
		{ID: "a", Text: "a", Vector: []float32{1}, Metadata: domain.ChunkMetadata{Fingerprint: "fa"}},
		{ID: "b", Text: "b", Metadata: domain.ChunkMetadata{Fingerprint: "fb"}},
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if n, _ := store.Count(context.Background()); n != 1 {
		t.Fatalf("expected 1 entry, got %d", n)
	}
	if ok, _ := store.HasFingerprint(context.Background(), "fb"); ok {
		t.Fatalf("expected dropped entry fingerprint to be absent")
	}
	if got := store.Entries(); len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("unexpected entries %+v", got)
	}
}
