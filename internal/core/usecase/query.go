package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/core/ports"
)

const noKnowledgeAnswer = "No relevant information found in the knowledge base."

// QueryUseCase is the knowledge base tier: retrieval, relevance gate and enhancement.
type QueryUseCase struct {
	index     ports.KnowledgeIndex
	retriever *Retriever
	enhancer  *Enhancer
	rules     AnswerRules
	logger    *slog.Logger
}

func NewQueryUseCase(
	index ports.KnowledgeIndex,
	retriever *Retriever,
	enhancer *Enhancer,
	rules AnswerRules,
	logger *slog.Logger,
) *QueryUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryUseCase{
		index:     index,
		retriever: retriever,
		enhancer:  enhancer,
		rules:     rules.normalize(),
		logger:    logger,
	}
}

func (uc *QueryUseCase) Query(ctx context.Context, text string) (*domain.KnowledgeAnswer, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "query", errors.New("query is empty"))
	}
	answer, _, err := uc.lookup(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnavailable, "query", err)
	}
	return answer, nil
}

func (uc *QueryUseCase) Stats(ctx context.Context) (domain.IndexStats, error) {
	n, err := uc.index.Count(ctx)
	if err != nil {
		return domain.IndexStats{}, fmt.Errorf("count index entries: %w", err)
	}
	method := uc.index.Method()
	return domain.IndexStats{
		TotalChunks:      n,
		ProcessingMethod: method,
		UsingEmbeddings:  method == domain.MethodEmbeddings,
	}, nil
}

// lookup answers from the knowledge base. The returned reason explains a
// non-relevant answer or a degraded enhancement.
func (uc *QueryUseCase) lookup(ctx context.Context, query string) (*domain.KnowledgeAnswer, string, error) {
	result, err := uc.retriever.Retrieve(ctx, query)
	if err != nil {
		return nil, "", err
	}

	answer := &domain.KnowledgeAnswer{
		Answer:           noKnowledgeAnswer,
		Confidence:       result.TopConfidence,
		SourceDocuments:  []string{},
		ProcessingMethod: result.Method,
	}
	switch {
	case len(result.Chunks) == 0:
		return answer, "no_results", nil
	case !result.Found:
		return answer, "below_admission", nil
	case !result.Accepted:
		return answer, "below_acceptance", nil
	}

	raw := contextText(result)
	enh := uc.enhancer.Enhance(ctx, query, raw)
	reason := ""
	if enh.OK() {
		answer.Answer = enh.Text
		answer.Enhanced = true
	} else {
		if ok, why := uc.rules.Check(raw, ""); !ok {
			return answer, "raw_" + why, nil
		}
		answer.Answer = raw
		if enh.Outcome != domain.OutcomeSkipped {
			reason = "enhancement_" + string(enh.Outcome)
			if enh.Reason != "" {
				reason += ":" + enh.Reason
			}
		}
	}

	answer.Relevant = true
	answer.SourceDocuments = sourceDocuments(result.ContextChunks)
	return answer, reason, nil
}

func sourceDocuments(chunks []domain.ScoredChunk) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, fmt.Sprintf("%s (confidence: %.3f)", c.Metadata.Filename, c.Confidence))
	}
	return out
}
