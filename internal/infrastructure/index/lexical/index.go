package lexical

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

const (
	weightOverlap   = 0.3
	weightSubstring = 0.3
	weightPhrase    = 0.2
	weightFilename  = 0.1
	weightSpecific  = 0.1

	// DefaultMinScore is the composite score a chunk must exceed to be returned.
	DefaultMinScore = 0.3

	specificTermMinLen = 4
)

type entry struct {
	domain.IndexEntry
	tokens   map[string]struct{}
	lower    string
	filename string
}

// Index scores chunks by keyword and phrase overlap. It needs no external capability.
type Index struct {
	minScore float64

	mu           sync.RWMutex
	entries      []entry
	fingerprints map[string]struct{}
}

func New(minScore float64) *Index {
	if minScore < 0 || minScore >= 1 {
		minScore = DefaultMinScore
	}
	return &Index{
		minScore:     minScore,
		fingerprints: make(map[string]struct{}),
	}
}

func (ix *Index) Method() domain.ProcessingMethod {
	return domain.MethodLexical
}

func (ix *Index) HasFingerprint(_ context.Context, fingerprint string) (bool, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.fingerprints[fingerprint]
	return ok, nil
}

// AddDocument appends all entries of one document under a single write lock.
func (ix *Index) AddDocument(_ context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	prepared := make([]entry, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Text) == "" {
			return domain.WrapError(domain.ErrInvalidInput, "lexical add", fmt.Errorf("empty chunk %q", e.ID))
		}
		prepared = append(prepared, prepare(e))
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = append(ix.entries, prepared...)
	for _, e := range prepared {
		ix.fingerprints[e.Metadata.Fingerprint] = struct{}{}
	}
	return nil
}

func (ix *Index) Search(_ context.Context, query string, limit int) ([]domain.ScoredChunk, error) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	phrase := strings.ToLower(strings.TrimSpace(query))

	// Entries are append-only, so the slice header is a consistent snapshot.
	ix.mu.RLock()
	snapshot := ix.entries
	ix.mu.RUnlock()

	out := make([]domain.ScoredChunk, 0, 8)
	for _, e := range snapshot {
		score := e.score(terms, phrase)
		if score <= ix.minScore {
			continue
		}
		out = append(out, domain.ScoredChunk{
			ID:         e.ID,
			Text:       e.Text,
			Confidence: score,
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

func (ix *Index) Count(context.Context) (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries), nil
}

func (ix *Index) Entries() []domain.IndexEntry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]domain.IndexEntry, 0, len(ix.entries))
	for _, e := range ix.entries {
		out = append(out, e.IndexEntry)
	}
	return out
}

// Restore replaces the index content with previously persisted entries.
func (ix *Index) Restore(entries []domain.IndexEntry) error {
	prepared := make([]entry, 0, len(entries))
	fingerprints := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Text) == "" {
			continue
		}
		prepared = append(prepared, prepare(e))
		fingerprints[e.Metadata.Fingerprint] = struct{}{}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = prepared
	ix.fingerprints = fingerprints
	return nil
}

func prepare(e domain.IndexEntry) entry {
	tokens := tokenize(e.Text)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return entry{
		IndexEntry: e,
		tokens:     set,
		lower:      strings.ToLower(e.Text),
		filename:   strings.ToLower(e.Metadata.Filename),
	}
}

// score computes 0.3*overlap + 0.3*substring + 0.2*phrase + 0.1*filename + 0.1*specific.
// phrase is the whole lower-cased query, matched verbatim against the chunk text.
func (e entry) score(terms []string, phrase string) float64 {
	var overlap, substring, filename, specific, specificTotal int
	for _, term := range terms {
		if _, ok := e.tokens[term]; ok {
			overlap++
		}
		inText := strings.Contains(e.lower, term)
		if inText {
			substring++
		}
		if e.filename != "" && strings.Contains(e.filename, term) {
			filename++
		}
		if utf8.RuneCountInString(term) >= specificTermMinLen {
			specificTotal++
			if inText {
				specific++
			}
		}
	}

	n := float64(len(terms))
	score := weightOverlap*float64(overlap)/n +
		weightSubstring*float64(substring)/n +
		weightFilename*float64(filename)/n
	if phrase != "" && strings.Contains(e.lower, phrase) {
		score += weightPhrase
	}
	if specificTotal > 0 {
		score += weightSpecific * float64(specific) / float64(specificTotal)
	}
	return clamp01(score)
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
