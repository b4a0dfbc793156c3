// Package bm25 implements the Okapi BM25 full-text index: tokenization,
// the postings/doc-length/stats tables, and scoring.
package bm25

import "strings"

// stopWords is the default ~30-word English stopword list; tokens matching
// it are dropped before indexing or scoring.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true,
	"at": true, "be": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "he": true, "in": true, "is": true,
	"it": true, "its": true, "of": true, "on": true, "or": true,
	"that": true, "the": true, "to": true, "was": true, "were": true,
	"with": true, "this": true, "but": true, "they": true, "we": true,
}

// Tokenize lowercases and ASCII-folds text, splits on runs of
// non-alphanumeric characters, and drops tokens shorter than 2 characters
// or present in stopWords.
func Tokenize(text string) []string {
	lower := strings.ToLower(text)
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		return !isAlnum
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 || stopWords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
