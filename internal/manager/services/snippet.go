package services

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	snippetChars = 280
	excerptChars = 2400
	ellipsis     = "…"
)

var termRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// snippetTerms lowercases the word tokens of a query, dropping one-letter
// tokens and duplicates.
func snippetTerms(query string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, t := range termRe.FindAllString(strings.ToLower(query), -1) {
		if len([]rune(t)) < 2 || seen[t] {
			continue
		}
		seen[t] = true
		terms = append(terms, t)
	}
	return terms
}

// densestWindow returns the size-rune region of text holding the most query
// term occurrences, trimmed to word boundaries and marked with ellipses where
// text was cut. Without any occurrence the opening of text is used.
func densestWindow(text string, terms []string, size int) string {
	runes := []rune(strings.Join(strings.Fields(text), " "))
	if len(runes) <= size {
		return string(runes)
	}

	lower := make([]rune, len(runes))
	for i, r := range runes {
		lower[i] = unicode.ToLower(r)
	}
	var hits []int
	for i := range lower {
		if i > 0 && isWordRune(lower[i-1]) {
			continue
		}
		for _, term := range terms {
			if hasPrefixAt(lower, i, []rune(term)) {
				hits = append(hits, i)
				break
			}
		}
	}

	start := 0
	if len(hits) > 0 {
		best, bestCount := hits[0], 0
		j := 0
		for i, pos := range hits {
			for j < len(hits) && hits[j] < pos+size {
				j++
			}
			if count := j - i; count > bestCount {
				best, bestCount = pos, count
			}
		}
		// lead in a little before the first hit
		start = best - size/8
		if start < 0 {
			start = 0
		}
	}
	end := start + size
	if end > len(runes) {
		end = len(runes)
		start = end - size
	}

	for start > 0 && start < end && isWordRune(runes[start-1]) && isWordRune(runes[start]) {
		start++
	}
	for end < len(runes) && end > start && isWordRune(runes[end-1]) && isWordRune(runes[end]) {
		end--
	}

	out := strings.TrimSpace(string(runes[start:end]))
	if start > 0 {
		out = ellipsis + out
	}
	if end < len(runes) {
		out += ellipsis
	}
	return out
}

// Snippet is the display excerpt of text for query.
func Snippet(text, query string) string {
	return densestWindow(text, snippetTerms(query), snippetChars)
}

func hasPrefixAt(s []rune, i int, prefix []rune) bool {
	if i+len(prefix) > len(s) {
		return false
	}
	for n, r := range prefix {
		if s[i+n] != r {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
