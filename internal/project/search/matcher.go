package search

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"
)

// Matcher locates the first match of a query within one line.
//
// Offsets are code point offsets into line, end exclusive. An empty query
// never matches. Implementations are stateless and safe for concurrent use.
type Matcher interface {
	Match(line, query string) (start, end int, ok bool)
}

// MatcherFor returns the matcher implementing mode.
func MatcherFor(mode Mode) Matcher {
	switch mode {
	case ModeIgnoreCase:
		return foldMatcher{}
	case ModeFuzzy:
		return fuzzyMatcher{}
	default:
		return exactMatcher{}
	}
}

// exactMatcher is case-sensitive substring containment.
type exactMatcher struct{}

func (exactMatcher) Match(line, query string) (int, int, bool) {
	if query == "" {
		return 0, 0, false
	}
	idx := strings.Index(line, query)
	if idx < 0 {
		return 0, 0, false
	}
	start := utf8.RuneCountInString(line[:idx])
	return start, start + utf8.RuneCountInString(query), true
}

// foldMatcher compares rune by rune under simple case folding, so offsets
// stay aligned with the original line even where lower-casing would change
// byte lengths.
type foldMatcher struct{}

func (foldMatcher) Match(line, query string) (int, int, bool) {
	if query == "" {
		return 0, 0, false
	}
	lr := []rune(line)
	qr := []rune(query)
	for i := 0; i+len(qr) <= len(lr); i++ {
		if equalFoldRunes(lr[i:i+len(qr)], qr) {
			return i, i + len(qr), true
		}
	}
	return 0, 0, false
}

func equalFoldRunes(a, b []rune) bool {
	for i := range a {
		if !equalFoldRune(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalFoldRune(a, b rune) bool {
	if a == b {
		return true
	}
	for r := unicode.SimpleFold(a); r != a; r = unicode.SimpleFold(r) {
		if r == b {
			return true
		}
	}
	return false
}

// fuzzyMatcher reports the span from the first to the last character of a
// subsequence match.
type fuzzyMatcher struct{}

func (fuzzyMatcher) Match(line, query string) (int, int, bool) {
	if query == "" || line == "" {
		return 0, 0, false
	}
	matches := fuzzy.Find(query, []string{line})
	if len(matches) == 0 || len(matches[0].MatchedIndexes) == 0 {
		return 0, 0, false
	}

	// MatchedIndexes are byte offsets of matched runes.
	idx := matches[0].MatchedIndexes
	first, last := idx[0], idx[len(idx)-1]
	_, lastSize := utf8.DecodeRuneInString(line[last:])
	start := utf8.RuneCountInString(line[:first])
	end := utf8.RuneCountInString(line[:last+lastSize])
	return start, end, true
}
