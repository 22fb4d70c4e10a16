package lexical

import (
	"strings"
	"unicode"
)

var stopwords = toSet(
	"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
	"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that", "these",
	"those", "from", "into", "about", "than", "so", "such", "can", "will", "do", "does", "did",
	"what", "which", "who", "whom", "whose", "when", "where", "why", "how", "me", "my", "i", "you", "your",
	"tell", "please",
)

// tokenize lower-cases s and splits it on anything that is not a letter, a
// digit or a term symbol. Symbols stay part of the word, so "c++" and "c#"
// never collapse to "c".
func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	flush := func() {
		if b.Len() == 0 {
			return
		}
		token := strings.Trim(b.String(), "-")
		if token != "" {
			out = append(out, token)
		}
		b.Reset()
	}
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) || isTermSymbol(r) {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return out
}

func isTermSymbol(r rune) bool {
	switch r {
	case '-', '+', '#':
		return true
	}
	return false
}

// queryTerms returns the distinct content words of a query. When every word is
// a stopword the stopwords are kept so the query still has terms.
func queryTerms(query string) []string {
	all := tokenize(query)
	terms := make([]string, 0, len(all))
	seen := make(map[string]struct{}, len(all))
	for _, token := range all {
		if _, stop := stopwords[token]; stop {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		terms = append(terms, token)
	}
	if len(terms) > 0 {
		return terms
	}
	for _, token := range all {
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		terms = append(terms, token)
	}
	return terms
}

func toSet(words ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}
