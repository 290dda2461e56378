// Package keywords extracts normalized keyword sets from free text and
// compares them by Jaccard similarity. It backs boundary detection,
// compression clustering, and the distinctiveness heuristic.
package keywords

import (
	"cmp"
	"slices"
	"strings"
	"unicode"
)

// stopwords are common English words excluded from keyword sets.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "has": {}, "have": {},
	"in": {}, "into": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "this": {}, "to": {}, "was": {},
	"were": {}, "will": {}, "with": {}, "not": {}, "no": {}, "so": {},
	"we": {}, "you": {}, "i": {}, "they": {}, "he": {}, "she": {},
}

// Set is a keyword set.
type Set map[string]struct{}

// Extract tokenizes text into a lowercase keyword set, dropping stopwords
// and tokens shorter than minLen runes. A minLen of 0 defaults to 3.
func Extract(text string, minLen int) Set {
	if minLen <= 0 {
		minLen = 3
	}

	set := make(Set)
	for _, tok := range tokenize(text) {
		if len([]rune(tok)) < minLen {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}

// tokenize splits text on non-alphanumeric boundaries, keeping path and
// identifier fragments ("auth_handler" yields "auth" and "handler").
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Jaccard returns |a∩b| / |a∪b|. Two empty sets have similarity 1;
// one empty set against a non-empty one has similarity 0.
func Jaccard(a, b Set) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}

	inter := 0
	for k := range small {
		if _, ok := large[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Union merges keyword sets into a new set.
func Union(sets ...Set) Set {
	out := make(Set)
	for _, s := range sets {
		for k := range s {
			out[k] = struct{}{}
		}
	}
	return out
}

// Top returns up to n keywords sorted by length descending then
// lexicographically, a cheap salience proxy for titling.
func Top(s Set, n int) []string {
	words := make([]string, 0, len(s))
	for k := range s {
		words = append(words, k)
	}
	// Longer tokens tend to carry more meaning than short ones.
	slices.SortFunc(words, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return cmp.Compare(a, b)
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}
