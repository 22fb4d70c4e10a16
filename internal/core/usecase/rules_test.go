package usecase

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestAnswerRulesCheck(t *testing.T) {
	rules := DefaultAnswerRules().normalize()
	source := "Python is a high-level language. Python supports OOP."

	tests := []struct {
		name   string
		answer string
		source string
		ok     bool
		reason string
	}{
		{name: "valid", answer: "Python is a popular general purpose programming language.", source: source, ok: true},
		{name: "empty", answer: "  \n ", reason: ReasonEmpty},
		{name: "too short", answer: "Yes, it is.", reason: ReasonTooShort},
		{name: "exactly min chars", answer: "fifteen chars!!", reason: ReasonTooShort},
		{name: "refusal", answer: "I'm sorry, I don't have that information.", reason: ReasonBoilerplate},
		{name: "refusal any case", answer: "NO RELEVANT INFORMATION was found in the text.", reason: ReasonBoilerplate},
		{name: "echo of context head", answer: "Python is a high-level language.", source: source, reason: ReasonEcho},
		{name: "echo whitespace differs", answer: "python is a   high-level\nlanguage", source: source, reason: ReasonEcho},
		{name: "no echo without source", answer: "Python is a high-level language.", ok: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, reason := rules.Check(tc.answer, tc.source)
			if ok != tc.ok || reason != tc.reason {
				t.Fatalf("Check(%q) = %v, %q; want %v, %q", tc.answer, ok, reason, tc.ok, tc.reason)
			}
		})
	}
}

func TestAnswerRulesClean(t *testing.T) {
	rules := DefaultAnswerRules().normalize()

	if got := rules.Clean("  spaced\n\tout   text "); got != "spaced out text" {
		t.Fatalf("unexpected cleaned text %q", got)
	}

	long := rules.Clean(strings.Repeat("word ", 200))
	if utf8.RuneCountInString(long) != rules.MaxChars || !strings.HasSuffix(long, "...") {
		t.Fatalf("expected %d runes ending in ellipsis, got %d: %q", rules.MaxChars, utf8.RuneCountInString(long), long[len(long)-10:])
	}
}

func TestAnswerRulesNormalizeFillsDefaults(t *testing.T) {
	rules := AnswerRules{RefusalPrefixes: []string{"  Nope ", ""}}.normalize()
	if rules.MinChars != 15 || rules.MaxChars != 500 || rules.EchoPrefixChars != 100 {
		t.Fatalf("expected defaults, got %+v", rules)
	}
	if len(rules.RefusalPrefixes) != 1 || rules.RefusalPrefixes[0] != "nope" {
		t.Fatalf("expected normalized prefixes, got %q", rules.RefusalPrefixes)
	}
}
