package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

// Provider is one web search backend.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, query string) (text string, found bool, err error)
}

// MaxSnippetChars bounds the text handed back from any provider.
const MaxSnippetChars = 500

// Chain asks providers in order and returns the first non-empty result.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

func NewChain(logger *slog.Logger, providers ...Provider) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{providers: providers, logger: logger}
}

// Search reports an error only when every provider failed.
func (c *Chain) Search(ctx context.Context, query string) (domain.SearchHit, bool, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.SearchHit{}, false, nil
	}

	var errs []error
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return domain.SearchHit{}, false, domain.WrapError(domain.ErrCapabilityTimeout, "web search", err)
		}
		text, found, err := p.Lookup(ctx, query)
		if err != nil {
			c.logger.Warn("search_provider_failed", "provider", p.Name(), "reason", domain.FailureReason(err), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		text = CleanText(text)
		if !found || text == "" {
			continue
		}
		return domain.SearchHit{Text: text, Provider: p.Name()}, true, nil
	}

	if len(errs) > 0 && len(errs) == len(c.providers) {
		return domain.SearchHit{}, false, errors.Join(errs...)
	}
	return domain.SearchHit{}, false, nil
}

// CleanText collapses whitespace and truncates to MaxSnippetChars runes.
func CleanText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= MaxSnippetChars {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxSnippetChars-3]) + "..."
}
