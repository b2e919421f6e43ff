package knowledge

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_knowledge.yaml
var defaultTable []byte

// notFoundText is rendered when no concept matches.
const notFoundText = "I don't have that in my offline notes yet. What do you already know about it?"

// #region base

// Base is a keyword-indexed concept store. Immutable after Build and safe
// for concurrent readers.
type Base struct {
	entries []Entry
	index   []map[string]bool // keywords ∪ definition tokens, per entry
	byID    map[string]int
}

// Build validates entries and indexes them.
func Build(entries []Entry) (*Base, error) {
	b := &Base{
		entries: make([]Entry, 0, len(entries)),
		index:   make([]map[string]bool, 0, len(entries)),
		byID:    make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		e.ConceptID = strings.TrimSpace(e.ConceptID)
		if e.ConceptID == "" {
			return nil, fmt.Errorf("concept with empty id")
		}
		if _, dup := b.byID[e.ConceptID]; dup {
			return nil, fmt.Errorf("duplicate concept id %q", e.ConceptID)
		}
		if strings.TrimSpace(e.Definition) == "" {
			return nil, fmt.Errorf("concept %q has empty definition", e.ConceptID)
		}
		if e.GradeLevel == "" {
			e.GradeLevel = Elementary
		}
		if !e.GradeLevel.Valid() {
			return nil, fmt.Errorf("concept %q: unknown grade level %q", e.ConceptID, e.GradeLevel)
		}
		e.Subject = strings.ToLower(strings.TrimSpace(e.Subject))

		idx := tokenSet(append([]string{e.Definition}, e.Keywords...)...)
		b.byID[e.ConceptID] = len(b.entries)
		b.entries = append(b.entries, e)
		b.index = append(b.index, idx)
	}
	return b, nil
}

// LoadYAML reads a declarative concept table.
func LoadYAML(r io.Reader) (*Base, error) {
	var t table
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("decode knowledge table: %w", err)
	}
	return Build(t.Concepts)
}

// LoadFile reads a concept table from path.
func LoadFile(path string) (*Base, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open knowledge table: %w", err)
	}
	defer f.Close()
	return LoadYAML(f)
}

// Default returns the built-in concept table.
func Default() (*Base, error) {
	return LoadYAML(bytes.NewReader(defaultTable))
}

// #endregion base

// #region accessors

// Len returns the number of concepts.
func (b *Base) Len() int {
	return len(b.entries)
}

// Get returns a copy of a concept by id.
func (b *Base) Get(id string) (Entry, bool) {
	i, ok := b.byID[id]
	if !ok {
		return Entry{}, false
	}
	return cloneEntry(b.entries[i]), true
}

// Entries returns copies of all concepts in table order.
func (b *Base) Entries() []Entry {
	out := make([]Entry, len(b.entries))
	for i, e := range b.entries {
		out[i] = cloneEntry(e)
	}
	return out
}

// #endregion accessors

// #region query

// Query finds the concept sharing the largest fraction of the query's tokens.
// subject restricts the search when non-empty; age selects render detail.
func (b *Base) Query(text, subject string, age GradeLevel) Response {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return Response{RenderedText: notFoundText}
	}
	subject = strings.ToLower(strings.TrimSpace(subject))

	best := -1
	var bestConf float64
	for i, e := range b.entries {
		if subject != "" && e.Subject != subject {
			continue
		}
		shared := sharedTokens(tokens, b.index[i])
		if len(shared) == 0 {
			continue
		}
		conf := float64(len(shared)) / float64(len(tokens))
		if best < 0 || conf > bestConf || (conf == bestConf && b.better(i, best)) {
			best, bestConf = i, conf
		}
	}
	if best < 0 {
		return Response{RenderedText: notFoundText}
	}

	e := cloneEntry(b.entries[best])
	return Response{
		Found:        true,
		Entry:        &e,
		Confidence:   bestConf,
		RenderedText: Render(e, age),
		Subject:      e.Subject,
		Related:      e.Related,
	}
}

// better breaks confidence ties: shorter definition, then concept id.
func (b *Base) better(i, j int) bool {
	di, dj := len(b.entries[i].Definition), len(b.entries[j].Definition)
	if di != dj {
		return di < dj
	}
	return b.entries[i].ConceptID < b.entries[j].ConceptID
}

// #endregion query

// #region coverage

// Coverage reports concept counts, subjects and grade levels, optionally
// restricted to one subject.
func (b *Base) Coverage(subject string) Coverage {
	subject = strings.ToLower(strings.TrimSpace(subject))
	subjects := make(map[string]bool)
	grades := make(map[GradeLevel]bool)
	count := 0
	for _, e := range b.entries {
		if subject != "" && e.Subject != subject {
			continue
		}
		count++
		subjects[e.Subject] = true
		grades[e.GradeLevel] = true
	}

	cov := Coverage{ConceptCount: count}
	for s := range subjects {
		cov.Subjects = append(cov.Subjects, s)
	}
	sort.Strings(cov.Subjects)
	for _, g := range GradeLevels() {
		if grades[g] {
			cov.GradeLevels = append(cov.GradeLevels, g)
		}
	}
	return cov
}

// #endregion coverage

// #region render

// Render formats a concept for a grade tier.
//   - elementary: definition + one example
//   - middle_school: definition + two examples + two related
//   - high_school: definition + three examples + all related
//   - adult: subject, definition, every example, every related concept
func Render(e Entry, age GradeLevel) string {
	var examples, related int
	switch age {
	case MiddleSchool:
		examples, related = 2, 2
	case HighSchool:
		examples, related = 3, len(e.Related)
	case Adult:
		examples, related = len(e.Examples), len(e.Related)
	default:
		examples, related = 1, 0
	}

	var sb strings.Builder
	if age == Adult && e.Subject != "" {
		fmt.Fprintf(&sb, "[%s] ", e.Subject)
	}
	sb.WriteString(e.Definition)
	for i := 0; i < examples && i < len(e.Examples); i++ {
		fmt.Fprintf(&sb, "\nExample: %s", e.Examples[i])
	}
	if n := min(related, len(e.Related)); n > 0 {
		fmt.Fprintf(&sb, "\nRelated: %s", strings.Join(e.Related[:n], ", "))
	}
	return sb.String()
}

// #endregion render

// #region helpers

func cloneEntry(e Entry) Entry {
	e.Keywords = append([]string(nil), e.Keywords...)
	e.Examples = append([]string(nil), e.Examples...)
	e.Related = append([]string(nil), e.Related...)
	return e
}

// #endregion helpers
