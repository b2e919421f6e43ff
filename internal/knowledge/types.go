package knowledge

import (
	"fmt"
	"strings"
)

// #region grade-level

// GradeLevel controls how much detail a rendered answer carries.
type GradeLevel string

const (
	Elementary   GradeLevel = "elementary"
	MiddleSchool GradeLevel = "middle_school"
	HighSchool   GradeLevel = "high_school"
	Adult        GradeLevel = "adult"
)

var gradeRank = map[GradeLevel]int{
	Elementary:   0,
	MiddleSchool: 1,
	HighSchool:   2,
	Adult:        3,
}

// GradeLevels returns all grade levels in ascending order.
func GradeLevels() []GradeLevel {
	return []GradeLevel{Elementary, MiddleSchool, HighSchool, Adult}
}

// Rank orders grade levels; unknown levels rank as adult.
func (g GradeLevel) Rank() int {
	if r, ok := gradeRank[g]; ok {
		return r
	}
	return gradeRank[Adult]
}

// Valid reports whether g is a known grade level.
func (g GradeLevel) Valid() bool {
	_, ok := gradeRank[g]
	return ok
}

// ParseGradeLevel accepts the canonical names plus a few short forms.
func ParseGradeLevel(s string) (GradeLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "elementary", "primary":
		return Elementary, nil
	case "middle_school", "middle", "middle-school":
		return MiddleSchool, nil
	case "high_school", "high", "high-school", "secondary":
		return HighSchool, nil
	case "adult":
		return Adult, nil
	}
	return "", fmt.Errorf("unknown grade level %q", s)
}

// #endregion grade-level

// #region entry

// Entry is one concept in the offline knowledge base.
type Entry struct {
	ConceptID  string     `yaml:"id"`
	Subject    string     `yaml:"subject"`
	Definition string     `yaml:"definition"`
	Keywords   []string   `yaml:"keywords"`
	Examples   []string   `yaml:"examples"`
	GradeLevel GradeLevel `yaml:"grade_level"`
	Related    []string   `yaml:"related"`
}

// table is the declarative YAML document shape.
type table struct {
	Concepts []Entry `yaml:"concepts"`
}

// #endregion entry

// #region response

// Response is the result of an offline query.
type Response struct {
	Found        bool
	Entry        *Entry
	Confidence   float64
	RenderedText string
	Subject      string
	Related      []string
}

// Coverage summarises what the knowledge base knows.
type Coverage struct {
	ConceptCount int
	Subjects     []string
	GradeLevels  []GradeLevel
}

// #endregion response
