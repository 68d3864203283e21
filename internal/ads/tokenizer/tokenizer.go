// Package tokenizer turns ad titles and search queries into keywords. The
// same rules apply to both sides so that a query word matches the title
// word it was derived from: text is lower-cased and split on every rune that
// is not a letter or digit. There is no stemming and no stop-word removal.
package tokenizer

import (
	"strings"
	"unicode"
)

// Tokenize returns the keywords of text in the order they occur. Repeated
// words are kept.
func Tokenize(text string) []string {
	if text == "" {
		return []string{}
	}
	words := strings.FieldsFunc(strings.ToLower(text), isSeparator)
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if word == "" {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// KeywordSet returns the distinct keywords of text in first-seen order.
func KeywordSet(text string) []string {
	tokens := Tokenize(text)
	seen := make(map[string]struct{}, len(tokens))
	set := tokens[:0]
	for _, token := range tokens {
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		set = append(set, token)
	}
	return set
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
