package domain

import "time"

type Tier string

const (
	TierKnowledgeBase    Tier = "knowledge_base"
	TierWebSearch        Tier = "web_search"
	TierDirectGenerative Tier = "direct_generative"
	TierNone             Tier = "none"
)

// Outcome is the explicit result of one capability call.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeMiss    Outcome = "miss"
	OutcomeError   Outcome = "error"
	OutcomeSkipped Outcome = "skipped"
)

type TierAttempt struct {
	Tier     Tier          `json:"tier"`
	Outcome  Outcome       `json:"outcome"`
	Reason   string        `json:"reason,omitempty"`
	Duration time.Duration `json:"duration"`
}

// FallbackDecision records which tier answered a query and why.
type FallbackDecision struct {
	Tier       Tier          `json:"tier"`
	Answer     string        `json:"answer"`
	Confidence float64       `json:"confidence"`
	Provenance []string      `json:"provenance"`
	Enhanced   bool          `json:"enhanced"`
	Attempts   []TierAttempt `json:"attempts"`
}

// Enhancement is the explicit result of an answer-enhancement attempt.
type Enhancement struct {
	Text    string
	Outcome Outcome
	Reason  string
}

func (e Enhancement) OK() bool {
	return e.Outcome == OutcomeSuccess && e.Text != ""
}
