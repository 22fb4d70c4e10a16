package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/core/ports"
)

const ApologyAnswer = "I'm sorry, I couldn't find relevant information in the knowledge base or through web search."

type RouterConfig struct {
	SearchConfidence float64
	DirectConfidence float64
	SearchTimeout    time.Duration
}

func (c RouterConfig) normalize() RouterConfig {
	if c.SearchConfidence <= 0 || c.SearchConfidence > 1 {
		c.SearchConfidence = 0.5
	}
	if c.DirectConfidence <= 0 || c.DirectConfidence > 1 {
		c.DirectConfidence = 0.5
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = 10 * time.Second
	}
	return c
}

// DecisionObserver is notified of every routed query.
type DecisionObserver interface {
	ObserveDecision(decision *domain.FallbackDecision)
}

// FallbackRouter tries the knowledge base, web search and direct generation in
// that fixed order and stops at the first tier that produces a validated answer.
type FallbackRouter struct {
	knowledge *QueryUseCase
	searcher  ports.WebSearcher
	enhancer  *Enhancer
	rules     AnswerRules
	cfg       RouterConfig
	observer  DecisionObserver
	logger    *slog.Logger
}

func NewFallbackRouter(
	knowledge *QueryUseCase,
	searcher ports.WebSearcher,
	enhancer *Enhancer,
	rules AnswerRules,
	cfg RouterConfig,
	logger *slog.Logger,
) *FallbackRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackRouter{
		knowledge: knowledge,
		searcher:  searcher,
		enhancer:  enhancer,
		rules:     rules.normalize(),
		cfg:       cfg.normalize(),
		logger:    logger,
	}
}

func (r *FallbackRouter) WithObserver(observer DecisionObserver) *FallbackRouter {
	r.observer = observer
	return r
}

type routeState struct {
	decision domain.FallbackDecision
	// unreachable counts tiers that errored or had no capability configured.
	unreachable int
}

func (s *routeState) record(attempt domain.TierAttempt) {
	s.decision.Attempts = append(s.decision.Attempts, attempt)
	if attempt.Outcome == domain.OutcomeError || attempt.Outcome == domain.OutcomeSkipped {
		s.unreachable++
	}
}

func (r *FallbackRouter) Route(ctx context.Context, query string) (*domain.FallbackDecision, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "route", errors.New("query is empty"))
	}

	state := &routeState{}
	steps := []func(context.Context, string, *routeState) bool{
		r.knowledgeBase,
		r.webSearch,
		r.directGenerative,
	}
	for _, step := range steps {
		if step(ctx, query, state) {
			return r.finish(state), nil
		}
	}

	if state.unreachable == len(steps) {
		return nil, domain.WrapError(domain.ErrUnavailable, "route", errors.New("no capability could be reached"))
	}

	state.decision.Tier = domain.TierNone
	state.decision.Answer = ApologyAnswer
	state.decision.Confidence = 0
	state.decision.Provenance = []string{}
	return r.finish(state), nil
}

func (r *FallbackRouter) finish(state *routeState) *domain.FallbackDecision {
	decision := state.decision
	r.logger.Info("fallback_decision",
		"tier", decision.Tier,
		"confidence", decision.Confidence,
		"enhanced", decision.Enhanced,
		"attempts", len(decision.Attempts),
	)
	if r.observer != nil {
		r.observer.ObserveDecision(&decision)
	}
	return &decision
}

func (r *FallbackRouter) knowledgeBase(ctx context.Context, query string, state *routeState) bool {
	start := time.Now()
	answer, reason, err := r.knowledge.lookup(ctx, query)
	attempt := domain.TierAttempt{Tier: domain.TierKnowledgeBase}
	switch {
	case err != nil:
		attempt.Outcome, attempt.Reason = domain.OutcomeError, failureReason(err)
	case !answer.Relevant:
		attempt.Outcome, attempt.Reason = domain.OutcomeMiss, reason
	default:
		attempt.Outcome, attempt.Reason = domain.OutcomeSuccess, reason
	}
	r.logAttempt(&attempt, start, err)
	state.record(attempt)
	if attempt.Outcome != domain.OutcomeSuccess {
		return false
	}

	state.decision.Tier = domain.TierKnowledgeBase
	state.decision.Answer = answer.Answer
	state.decision.Confidence = answer.Confidence
	state.decision.Provenance = answer.SourceDocuments
	state.decision.Enhanced = answer.Enhanced
	return true
}

func (r *FallbackRouter) webSearch(ctx context.Context, query string, state *routeState) bool {
	start := time.Now()
	attempt := domain.TierAttempt{Tier: domain.TierWebSearch}
	if r.searcher == nil {
		attempt.Outcome, attempt.Reason = domain.OutcomeSkipped, "not_configured"
		r.logAttempt(&attempt, start, nil)
		state.record(attempt)
		return false
	}

	searchCtx, cancel := context.WithTimeout(ctx, r.cfg.SearchTimeout)
	hit, found, err := r.searcher.Search(searchCtx, query)
	cancel()

	switch {
	case err != nil:
		attempt.Outcome, attempt.Reason = domain.OutcomeError, failureReason(err)
	case !found || strings.TrimSpace(hit.Text) == "":
		attempt.Outcome, attempt.Reason = domain.OutcomeMiss, "no_results"
	}
	if attempt.Outcome != "" {
		r.logAttempt(&attempt, start, err)
		state.record(attempt)
		return false
	}

	answer, enhanced := "", false
	enh := r.enhancer.Summarize(ctx, query, hit.Text)
	if enh.OK() {
		answer, enhanced = enh.Text, true
	} else if ok, why := r.rules.Check(hit.Text, ""); ok {
		answer = r.rules.Clean(hit.Text)
	} else {
		attempt.Outcome, attempt.Reason = domain.OutcomeMiss, why
		r.logAttempt(&attempt, start, nil)
		state.record(attempt)
		return false
	}

	attempt.Outcome = domain.OutcomeSuccess
	r.logAttempt(&attempt, start, nil)
	state.record(attempt)

	state.decision.Tier = domain.TierWebSearch
	state.decision.Answer = answer
	state.decision.Confidence = r.cfg.SearchConfidence
	state.decision.Provenance = []string{"Web search via " + hit.Provider}
	state.decision.Enhanced = enhanced
	return true
}

func (r *FallbackRouter) directGenerative(ctx context.Context, query string, state *routeState) bool {
	start := time.Now()
	enh := r.enhancer.Direct(ctx, query)
	attempt := domain.TierAttempt{
		Tier:    domain.TierDirectGenerative,
		Outcome: enh.Outcome,
		Reason:  enh.Reason,
	}
	r.logAttempt(&attempt, start, nil)
	state.record(attempt)
	if !enh.OK() {
		return false
	}

	state.decision.Tier = domain.TierDirectGenerative
	state.decision.Answer = enh.Text
	state.decision.Confidence = r.cfg.DirectConfidence
	state.decision.Provenance = []string{"Generated by " + r.enhancer.Name()}
	state.decision.Enhanced = true
	return true
}

func (r *FallbackRouter) logAttempt(attempt *domain.TierAttempt, start time.Time, err error) {
	attempt.Duration = time.Since(start)
	attrs := []any{
		"tier", attempt.Tier,
		"outcome", attempt.Outcome,
		"reason", attempt.Reason,
		"duration_ms", float64(attempt.Duration.Microseconds()) / 1000.0,
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	if attempt.Outcome == domain.OutcomeError {
		r.logger.Warn("tier_attempt", attrs...)
		return
	}
	r.logger.Info("tier_attempt", attrs...)
}

func failureReason(err error) string {
	if reason := domain.FailureReason(err); reason != "" {
		return reason
	}
	return "other"
}
