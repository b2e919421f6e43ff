package truth

import (
	"sort"
	"strings"
	"unicode"

	"github.com/ixtech/aniota/lic-controller/internal/knowledge"
)

// #region table

// contradictions is the fixed table of antonym and wrong-category phrases.
// Phrases are matched on whole words after lowercasing.
var contradictions = []Contradiction{
	{Phrase: "fall upward", Kind: KindDirect, ConceptID: "gravity"},
	{Phrase: "falls upward", Kind: KindDirect, ConceptID: "gravity"},
	{Phrase: "fall up", Kind: KindDirect, ConceptID: "gravity"},
	{Phrase: "pushes objects away from the earth", Kind: KindDirect, ConceptID: "gravity"},
	{Phrase: "plants give off carbon dioxide in sunlight", Kind: KindDirect, ConceptID: "photosynthesis"},
	{Phrase: "plants get their food from the soil", Kind: KindDirect, ConceptID: "photosynthesis"},
	{Phrase: "water flows uphill", Kind: KindDirect, ConceptID: "water_cycle"},
	{Phrase: "rain comes from the ground", Kind: KindDirect, ConceptID: "water_cycle"},
	{Phrase: "action words are nouns", Kind: KindCategory, ConceptID: "verb"},
	{Phrase: "verbs are nouns", Kind: KindCategory, ConceptID: "verb"},
	{Phrase: "nouns are action words", Kind: KindCategory, ConceptID: "noun"},
	{Phrase: "naming words are verbs", Kind: KindCategory, ConceptID: "noun"},
	{Phrase: "a fraction is a whole number", Kind: KindCategory, ConceptID: "fraction"},
	{Phrase: "atoms are cells", Kind: KindCategory, ConceptID: "atom"},
	{Phrase: "cells are atoms", Kind: KindCategory, ConceptID: "cell"},
}

// Table returns a copy of the contradiction table.
func Table() []Contradiction {
	return append([]Contradiction(nil), contradictions...)
}

// #endregion table

// #region scorer

// Scorer scores statements against a knowledge base. Safe for concurrent use.
type Scorer struct {
	config  Config
	entries []scoredEntry
}

type scoredEntry struct {
	id     string
	tokens map[string]bool // keywords ∪ definition ∪ examples
}

// NewScorer indexes every entry of kb.
func NewScorer(kb *knowledge.Base, config Config) *Scorer {
	if config.TopK < 1 {
		config.TopK = 1
	}
	if config.PointsPerMatch <= 0 {
		config.PointsPerMatch = DefaultConfig().PointsPerMatch
	}
	s := &Scorer{config: config}
	for _, e := range kb.Entries() {
		tokens := make(map[string]bool)
		texts := append([]string{e.Definition}, e.Keywords...)
		texts = append(texts, e.Examples...)
		for _, t := range texts {
			for _, tok := range knowledge.Tokenize(t) {
				tokens[tok] = true
			}
		}
		s.entries = append(s.entries, scoredEntry{id: e.ConceptID, tokens: tokens})
	}
	return s
}

// #endregion scorer

// #region score

// Score rates a free-text statement in [0,100]. Deterministic.
func (s *Scorer) Score(text string) Result {
	tokens := knowledge.Tokenize(text)
	if len(tokens) == 0 {
		return Result{Score: 0, Level: LevelLow}
	}

	var ranked []EntryScore
	for _, e := range s.entries {
		n := 0
		for _, t := range tokens {
			if e.tokens[t] {
				n++
			}
		}
		if n > 0 {
			ranked = append(ranked, EntryScore{ConceptID: e.id, Correlation: n})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Correlation != ranked[j].Correlation {
			return ranked[i].Correlation > ranked[j].Correlation
		}
		return ranked[i].ConceptID < ranked[j].ConceptID
	})
	if len(ranked) > s.config.TopK {
		ranked = ranked[:s.config.TopK]
	}

	sum := 0
	for _, r := range ranked {
		sum += r.Correlation
	}
	score := clampScore(s.config.PointsPerMatch * sum)

	hits := matchContradictions(text)
	for _, c := range hits {
		switch c.Kind {
		case KindDirect:
			score -= s.config.DirectPenalty
		case KindCategory:
			score -= s.config.CategoryPenalty
		}
	}
	score = clampScore(score)

	return Result{
		Score:           score,
		Level:           LevelFor(score),
		TopEntries:      ranked,
		RationaleTokens: s.rationale(tokens, ranked),
		Contradictions:  hits,
	}
}

// rationale lists query tokens found in any top entry, in query order.
func (s *Scorer) rationale(tokens []string, top []EntryScore) []string {
	ids := make(map[string]bool, len(top))
	for _, t := range top {
		ids[t.ConceptID] = true
	}
	var out []string
	for _, tok := range tokens {
		for _, e := range s.entries {
			if ids[e.id] && e.tokens[tok] {
				out = append(out, tok)
				break
			}
		}
	}
	return out
}

// #endregion score

// #region helpers

// matchContradictions returns every table entry whose phrase occurs in text
// on word boundaries.
func matchContradictions(text string) []Contradiction {
	norm := " " + normalizeWords(text) + " "
	var hits []Contradiction
	for _, c := range contradictions {
		if strings.Contains(norm, " "+normalizeWords(c.Phrase)+" ") {
			hits = append(hits, c)
		}
	}
	return hits
}

func normalizeWords(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(words, " ")
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// #endregion helpers
