// Package textnorm holds the text rules shared by catalog indexing and code search.
package textnorm

import (
	"regexp"
	"strings"
)

const (
	// MinTokenLength is exclusive: only tokens longer than this are kept.
	MinTokenLength = 3
	// MaxTokens caps the number of tokens taken from a free-text input.
	MaxTokens = 12
)

var (
	// lower-case letters, digits and the Latin-1 accented range
	nonTokenChars = regexp.MustCompile(`[^a-z0-9\x{00E0}-\x{00FF}]+`)
	whitespace    = regexp.MustCompile(`\s+`)

	likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
)

// NormalizeQuery trims and lower-cases a search query.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// SearchableText builds the lower-cased haystack stored with every medical code:
// code, display, description, short description and synonyms, space separated.
func SearchableText(code, display, description, shortDescription string, synonyms []string) string {
	parts := make([]string, 0, 4+len(synonyms))
	for _, p := range append([]string{code, display, description, shortDescription}, synonyms...) {
		p = strings.TrimSpace(p)
		if p != "" {
			parts = append(parts, p)
		}
	}
	joined := strings.ToLower(strings.Join(parts, " "))
	return whitespace.ReplaceAllString(joined, " ")
}

// Tokenize splits free text into distinct suggestion tokens in first-seen order.
func Tokenize(text string) []string {
	cleaned := nonTokenChars.ReplaceAllString(strings.ToLower(text), " ")

	seen := make(map[string]struct{})
	tokens := make([]string, 0, MaxTokens)
	for _, tok := range strings.Fields(cleaned) {
		if len([]rune(tok)) <= MinTokenLength {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
		if len(tokens) == MaxTokens {
			break
		}
	}
	return tokens
}

// CountMatches returns how many of tokens occur in haystack (case-insensitive).
func CountMatches(haystack string, tokens []string) int {
	h := strings.ToLower(haystack)
	n := 0
	for _, tok := range tokens {
		if strings.Contains(h, tok) {
			n++
		}
	}
	return n
}

// EscapeLike escapes LIKE/ILIKE metacharacters using backslash as the escape character.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// ContainsPattern wraps s for a case-insensitive "contains" match.
func ContainsPattern(s string) string {
	return "%" + EscapeLike(s) + "%"
}
