package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/core/ports"
)

const (
	contextPrompt = `You answer questions using only the document content below.

Document Content:
%s

User Question: %s

Instructions:
- Answer the question directly in one to three sentences.
- Use only facts stated in the document content.
- If the document content does not answer the question, reply exactly: no relevant information

Answer:`

	searchPrompt = `You answer questions using only the web search results below.

Document Content:
%s

User Question: %s

Instructions:
- Answer the question directly in one to three sentences.
- Use only facts stated in the search results.
- If the search results do not answer the question, reply exactly: no relevant information

Answer:`

	directPrompt = `User Question: %s

Instructions:
- Answer concisely and factually in at most three sentences.
- If you do not know the answer, reply exactly: I cannot answer that

Answer:`
)

// Enhancer turns retrieved or searched text into a direct answer through the
// generative capability. Every failure is returned as an outcome, never as an error.
type Enhancer struct {
	generator ports.Generator
	rules     AnswerRules
	timeout   time.Duration
	logger    *slog.Logger
}

func NewEnhancer(generator ports.Generator, rules AnswerRules, timeout time.Duration, logger *slog.Logger) *Enhancer {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enhancer{
		generator: generator,
		rules:     rules.normalize(),
		timeout:   timeout,
		logger:    logger,
	}
}

// Available reports whether a generative capability is configured.
func (e *Enhancer) Available() bool {
	return e != nil && e.generator != nil
}

func (e *Enhancer) Name() string {
	if !e.Available() {
		return ""
	}
	return e.generator.Name()
}

// Enhance answers query from knowledge base context.
func (e *Enhancer) Enhance(ctx context.Context, query, contextText string) domain.Enhancement {
	return e.run(ctx, "enhance", fmt.Sprintf(contextPrompt, contextText, query), contextText)
}

// Summarize answers query from web search text.
func (e *Enhancer) Summarize(ctx context.Context, query, searchText string) domain.Enhancement {
	return e.run(ctx, "summarize", fmt.Sprintf(searchPrompt, searchText, query), searchText)
}

// Direct asks the generative capability with no supporting context.
func (e *Enhancer) Direct(ctx context.Context, query string) domain.Enhancement {
	return e.run(ctx, "direct", fmt.Sprintf(directPrompt, query), "")
}

func (e *Enhancer) run(ctx context.Context, mode, prompt, source string) domain.Enhancement {
	if !e.Available() {
		return domain.Enhancement{Outcome: domain.OutcomeSkipped, Reason: "not_configured"}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	out, err := e.generator.Generate(callCtx, prompt)
	if err != nil {
		reason := domain.FailureReason(err)
		e.logger.Warn("generation_failed", "mode", mode, "generator", e.generator.Name(), "reason", reason, "error", err)
		return domain.Enhancement{Outcome: domain.OutcomeError, Reason: reason}
	}

	if ok, reason := e.rules.Check(out, source); !ok {
		e.logger.Info("generation_rejected", "mode", mode, "generator", e.generator.Name(), "reason", reason)
		return domain.Enhancement{Outcome: domain.OutcomeMiss, Reason: reason}
	}
	return domain.Enhancement{Text: e.rules.Clean(out), Outcome: domain.OutcomeSuccess}
}
