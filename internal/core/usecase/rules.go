package usecase

import (
	"strings"
	"unicode/utf8"
)

const (
	ReasonTooShort    = "too_short"
	ReasonBoilerplate = "boilerplate"
	ReasonEcho        = "echo"
	ReasonEmpty       = "empty"
)

// AnswerRules is the single acceptance policy for generated, searched and raw answers.
type AnswerRules struct {
	// MinChars is the length an answer must exceed.
	MinChars int `yaml:"min_chars"`
	// MaxChars bounds cleaned generated and searched text.
	MaxChars int `yaml:"max_chars"`
	// EchoPrefixChars is how much of the source context an echo is compared with.
	EchoPrefixChars int      `yaml:"echo_prefix_chars"`
	RefusalPrefixes []string `yaml:"refusal_prefixes"`
}

func DefaultAnswerRules() AnswerRules {
	return AnswerRules{
		MinChars:        15,
		MaxChars:        500,
		EchoPrefixChars: 100,
		RefusalPrefixes: []string{
			"no relevant information",
			"no sufficiently relevant",
			"this document does not contain",
			"the provided document doesn't contain",
			"the document does not contain",
			"i don't have",
			"i do not have",
			"i cannot",
			"i can't",
			"i'm sorry",
			"i am sorry",
			"based on the document",
		},
	}
}

func (r AnswerRules) normalize() AnswerRules {
	def := DefaultAnswerRules()
	if r.MinChars <= 0 {
		r.MinChars = def.MinChars
	}
	if r.MaxChars <= 3 {
		r.MaxChars = def.MaxChars
	}
	if r.EchoPrefixChars <= 0 {
		r.EchoPrefixChars = def.EchoPrefixChars
	}
	if len(r.RefusalPrefixes) == 0 {
		r.RefusalPrefixes = def.RefusalPrefixes
	}
	prefixes := make([]string, 0, len(r.RefusalPrefixes))
	for _, p := range r.RefusalPrefixes {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	r.RefusalPrefixes = prefixes
	return r
}

// Check reports whether answer is usable. source is the context the answer was
// generated from; pass "" when there is none. The reason names the failed rule.
func (r AnswerRules) Check(answer, source string) (bool, string) {
	text := collapse(answer)
	if text == "" {
		return false, ReasonEmpty
	}
	if utf8.RuneCountInString(text) <= r.MinChars {
		return false, ReasonTooShort
	}

	lower := strings.ToLower(text)
	for _, prefix := range r.RefusalPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return false, ReasonBoilerplate
		}
	}

	if source != "" && r.isEcho(lower, strings.ToLower(collapse(source))) {
		return false, ReasonEcho
	}
	return true, ""
}

// isEcho matches answers that merely repeat the start of the source.
func (r AnswerRules) isEcho(answer, source string) bool {
	head := truncateRunes(source, r.EchoPrefixChars)
	answer = strings.TrimRight(answer, ". ")
	head = strings.TrimRight(head, ". ")
	if answer == head {
		return true
	}
	return strings.HasPrefix(source, answer)
}

// Clean collapses whitespace and truncates to MaxChars, marking the cut with "...".
func (r AnswerRules) Clean(text string) string {
	text = collapse(text)
	if utf8.RuneCountInString(text) <= r.MaxChars {
		return text
	}
	return truncateRunes(text, r.MaxChars-3) + "..."
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
