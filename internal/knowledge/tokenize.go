package knowledge

import (
	"strings"
	"unicode"
)

// #region stopwords
// stopwords contains common English words excluded from concept matching.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "do": true, "does": true, "did": true,
	"have": true, "has": true, "had": true, "be": true, "been": true,
	"being": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "can": true, "shall": true, "not": true,
	"no": true, "and": true, "or": true, "but": true, "if": true,
	"then": true, "than": true, "so": true, "as": true, "at": true,
	"by": true, "for": true, "from": true, "in": true, "into": true,
	"of": true, "on": true, "to": true, "with": true, "about": true,
	"up": true, "out": true, "it": true, "its": true, "this": true,
	"that": true, "what": true, "which": true, "who": true, "how": true,
	"when": true, "where": true, "why": true, "you": true, "me": true,
	"i": true, "my": true, "your": true, "we": true, "they": true,
	"he": true, "she": true, "her": true, "him": true, "us": true,
	"them": true, "tell": true, "explain": true, "there": true, "their": true,
	"these": true, "those": true, "some": true, "any": true, "all": true,
	"also": true, "very": true, "just": true, "like": true,
}

// Tokenize splits text into unique lowercase tokens longer than two
// characters, dropping stopwords. Order of first appearance is kept.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool)
	var tokens []string
	for _, w := range words {
		if len(w) <= 2 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		tokens = append(tokens, w)
	}
	return tokens
}

// tokenSet returns the union of Tokenize over every text.
func tokenSet(texts ...string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range texts {
		for _, tok := range Tokenize(t) {
			set[tok] = true
		}
	}
	return set
}

// sharedTokens returns the tokens of query present in set.
func sharedTokens(query []string, set map[string]bool) []string {
	var shared []string
	for _, t := range query {
		if set[t] {
			shared = append(shared, t)
		}
	}
	return shared
}

// #endregion stopwords
