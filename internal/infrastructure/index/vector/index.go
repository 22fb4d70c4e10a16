package vector

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/core/ports"
)

// Store keeps embedded entries and answers nearest-neighbour queries.
// Scores returned by Nearest are cosine similarities.
type Store interface {
	Upsert(ctx context.Context, entries []domain.IndexEntry) error
	Nearest(ctx context.Context, vector []float32, limit int) ([]domain.ScoredChunk, error)
	HasFingerprint(ctx context.Context, fingerprint string) (bool, error)
	Count(ctx context.Context) (int, error)
}

// Index is the embedding variant of the knowledge index.
type Index struct {
	embedder ports.Embedder
	store    Store
}

func New(embedder ports.Embedder, store Store) *Index {
	return &Index{embedder: embedder, store: store}
}

func (ix *Index) Method() domain.ProcessingMethod {
	return domain.MethodEmbeddings
}

func (ix *Index) HasFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	return ix.store.HasFingerprint(ctx, fingerprint)
}

func (ix *Index) AddDocument(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	texts := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Text) == "" {
			return domain.WrapError(domain.ErrInvalidInput, "vector add", fmt.Errorf("empty chunk %q", e.ID))
		}
		texts = append(texts, e.Text)
	}

	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(entries) {
		return fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(entries))
	}

	embedded := make([]domain.IndexEntry, len(entries))
	for i, e := range entries {
		e.Vector = vectors[i]
		embedded[i] = e
	}
	return ix.store.Upsert(ctx, embedded)
}

func (ix *Index) Search(ctx context.Context, query string, limit int) ([]domain.ScoredChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	vector, err := ix.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := ix.store.Nearest(ctx, vector, limit)
	if err != nil {
		return nil, err
	}
	for i := range hits {
		hits[i].Confidence = clamp01(hits[i].Confidence)
	}
	return hits, nil
}

func (ix *Index) Count(ctx context.Context) (int, error) {
	return ix.store.Count(ctx)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
