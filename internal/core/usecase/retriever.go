package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/core/ports"
)

// Thresholds configure the relevance gate.
type Thresholds struct {
	// Admission is the top confidence a result must exceed to count as found.
	Admission float64 `yaml:"admission"`
	// Acceptance is the stricter bar for answering from the best chunk alone.
	Acceptance float64 `yaml:"acceptance"`
	// Context is the confidence a chunk must exceed to join a multi-chunk context.
	Context          float64 `yaml:"context"`
	MaxContextChunks int     `yaml:"max_context_chunks"`
	TopK             int     `yaml:"top_k"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Admission:        0.2,
		Acceptance:       0.4,
		Context:          0.15,
		MaxContextChunks: 3,
		TopK:             10,
	}
}

func (t Thresholds) normalize() Thresholds {
	def := DefaultThresholds()
	if t.Admission < 0 || t.Admission >= 1 {
		t.Admission = def.Admission
	}
	if t.Acceptance <= 0 || t.Acceptance >= 1 {
		t.Acceptance = def.Acceptance
	}
	if t.Context < 0 || t.Context >= 1 {
		t.Context = def.Context
	}
	if t.MaxContextChunks < 2 {
		t.MaxContextChunks = def.MaxContextChunks
	}
	if t.TopK <= 0 {
		t.TopK = def.TopK
	}
	return t
}

// Retriever queries the active index and applies the relevance gate.
type Retriever struct {
	index      ports.KnowledgeIndex
	thresholds Thresholds
	timeout    time.Duration
}

func NewRetriever(index ports.KnowledgeIndex, thresholds Thresholds, timeout time.Duration) *Retriever {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Retriever{
		index:      index,
		thresholds: thresholds.normalize(),
		timeout:    timeout,
	}
}

func (r *Retriever) Method() domain.ProcessingMethod {
	return r.index.Method()
}

func (r *Retriever) Retrieve(ctx context.Context, query string) (domain.RetrievalResult, error) {
	result := domain.RetrievalResult{Method: r.index.Method()}

	searchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	chunks, err := r.index.Search(searchCtx, query, r.thresholds.TopK)
	if err != nil {
		return result, fmt.Errorf("search %s index: %w", result.Method, err)
	}
	for i := range chunks {
		chunks[i].Confidence = clampConfidence(chunks[i].Confidence)
	}
	result.Chunks = chunks
	return r.gate(result), nil
}

func (r *Retriever) gate(result domain.RetrievalResult) domain.RetrievalResult {
	best, ok := result.Best()
	if !ok {
		return result
	}
	result.TopConfidence = best.Confidence
	result.Found = best.Confidence > r.thresholds.Admission
	if !result.Found {
		return result
	}

	if best.Confidence > r.thresholds.Acceptance {
		result.Accepted = true
		result.ContextChunks = []domain.ScoredChunk{best}
		return result
	}

	combined := make([]domain.ScoredChunk, 0, r.thresholds.MaxContextChunks)
	for _, c := range result.Chunks {
		if len(combined) == r.thresholds.MaxContextChunks {
			break
		}
		if c.Confidence > r.thresholds.Context {
			combined = append(combined, c)
		}
	}
	if len(combined) >= 2 {
		result.Accepted = true
		result.MultiChunk = true
		result.ContextChunks = combined
	}
	return result
}

// contextText joins the accepted chunks into the text handed to the enhancer.
func contextText(result domain.RetrievalResult) string {
	parts := make([]string, 0, len(result.ContextChunks))
	for _, c := range result.ContextChunks {
		parts = append(parts, strings.TrimSpace(c.Text))
	}
	return strings.Join(parts, "\n\n")
}

func clampConfidence(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
