package vector

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

// MemoryStore is an in-process brute-force cosine store.
type MemoryStore struct {
	mu           sync.RWMutex
	entries      []domain.IndexEntry
	norms        []float64
	fingerprints map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{fingerprints: make(map[string]struct{})}
}

func (s *MemoryStore) Upsert(_ context.Context, entries []domain.IndexEntry) error {
	norms := make([]float64, len(entries))
	for i, e := range entries {
		norms[i] = norm(e.Vector)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
	s.norms = append(s.norms, norms...)
	for _, e := range entries {
		s.fingerprints[e.Metadata.Fingerprint] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) Nearest(_ context.Context, vector []float32, limit int) ([]domain.ScoredChunk, error) {
	qNorm := norm(vector)
	if qNorm == 0 {
		return nil, nil
	}

	s.mu.RLock()
	entries, norms := s.entries, s.norms
	s.mu.RUnlock()

	out := make([]domain.ScoredChunk, 0, len(entries))
	for i, e := range entries {
		if norms[i] == 0 || len(e.Vector) != len(vector) {
			continue
		}
		out = append(out, domain.ScoredChunk{
			ID:         e.ID,
			Text:       e.Text,
			Confidence: dot(vector, e.Vector) / (qNorm * norms[i]),
			Metadata:   e.Metadata,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) HasFingerprint(_ context.Context, fingerprint string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.fingerprints[fingerprint]
	return ok, nil
}

func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *MemoryStore) Entries() []domain.IndexEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.IndexEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Restore loads persisted entries. Entries without a vector cannot be searched and are dropped.
func (s *MemoryStore) Restore(entries []domain.IndexEntry) error {
	kept := make([]domain.IndexEntry, 0, len(entries))
	norms := make([]float64, 0, len(entries))
	fingerprints := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if len(e.Vector) == 0 {
			continue
		}
		kept = append(kept, e)
		norms = append(norms, norm(e.Vector))
		fingerprints[e.Metadata.Fingerprint] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = kept
	s.norms = norms
	s.fingerprints = fingerprints
	return nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}
