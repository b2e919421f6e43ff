package truth

// #region config

// Config holds scoring parameters.
type Config struct {
	TopK            int // entries whose correlations are summed (min 1)
	PointsPerMatch  int // score per correlated token
	DirectPenalty   int // subtracted per direct contradiction
	CategoryPenalty int // subtracted per category mismatch
}

// DefaultConfig returns the provisional penalty table values.
func DefaultConfig() Config {
	return Config{
		TopK:            3,
		PointsPerMatch:  10,
		DirectPenalty:   60,
		CategoryPenalty: 20,
	}
}

// #endregion config

// #region level

// Level buckets a score.
type Level string

const (
	LevelLow      Level = "low"
	LevelModerate Level = "moderate"
	LevelHigh     Level = "high"
)

// LevelFor maps a 0-100 score to its level.
func LevelFor(score int) Level {
	switch {
	case score >= 70:
		return LevelHigh
	case score >= 40:
		return LevelModerate
	}
	return LevelLow
}

// #endregion level

// #region contradiction

// ContradictionKind distinguishes penalty classes.
type ContradictionKind string

const (
	KindDirect   ContradictionKind = "direct"
	KindCategory ContradictionKind = "category"
)

// Contradiction is one entry of the fixed contradiction table.
type Contradiction struct {
	Phrase    string
	Kind      ContradictionKind
	ConceptID string // concept the phrase contradicts, for rationale
}

// #endregion contradiction

// #region result

// EntryScore is one correlated concept.
type EntryScore struct {
	ConceptID   string
	Correlation int
}

// Result is the outcome of scoring a statement.
type Result struct {
	Score           int
	Level           Level
	TopEntries      []EntryScore
	RationaleTokens []string
	Contradictions  []Contradiction
}

// #endregion result
