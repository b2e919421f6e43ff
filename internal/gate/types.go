package gate

import (
	"github.com/ixtech/aniota/lic-controller/internal/knowledge"
	"github.com/ixtech/aniota/lic-controller/internal/quadvec"
)

// #region category
// Category groups rules. Lower priority value wins.
type Category string

const (
	CategorySafety                  Category = "safety"
	CategoryLearningAutonomy        Category = "learning_autonomy"
	CategoryAgeAppropriateness      Category = "age_appropriateness"
	CategoryContextFit              Category = "context_fit"
	CategoryInformationCompleteness Category = "information_completeness"
	CategoryProblemSolvingFit       Category = "problem_solving_fit"
)

var categoryPriority = map[Category]int{
	CategorySafety:                  0,
	CategoryLearningAutonomy:        1,
	CategoryAgeAppropriateness:      2,
	CategoryContextFit:              3,
	CategoryInformationCompleteness: 4,
	CategoryProblemSolvingFit:       5,
}

// Priority returns the category's rank; unknown categories sort last.
func (c Category) Priority() int {
	if p, ok := categoryPriority[c]; ok {
		return p
	}
	return len(categoryPriority)
}

// #endregion category

// #region verdict
// Verdict is a single rule's opinion on a candidate.
type Verdict string

const (
	VerdictOK   Verdict = "ok"
	VerdictWarn Verdict = "warn"
	VerdictVeto Verdict = "veto"
)

// #endregion verdict

// #region message
// Tone classifies how a message addresses the learner.
type Tone string

const (
	ToneNeutral     Tone = "neutral"
	ToneEncouraging Tone = "encouraging"
	ToneCritical    Tone = "critical"
)

// Goal is a declared learner goal.
type Goal string

const (
	GoalIndependence Goal = "independence"
	GoalMastery      Goal = "mastery"
	GoalCuriosity    Goal = "curiosity"
)

// Message is a rendered follow-up with the attributes rules inspect.
type Message struct {
	Text        string
	GivesAnswer bool
	Tone        Tone
	Level       knowledge.GradeLevel
	AsksLearner bool
}

// #endregion message

// #region candidate
// Candidate is a label proposed by the selector with its rendered message.
type Candidate struct {
	Label   quadvec.Label
	Message Message
}

// RecentSelection is one previously issued label and whether the learner
// progressed afterwards.
type RecentSelection struct {
	Label    quadvec.Label
	Progress bool
}

// Context is what the rules know about the learner and session.
type Context struct {
	Target         quadvec.Point
	Goals          []Goal
	AgeTier        knowledge.GradeLevel
	Recent         []RecentSelection // oldest first
	Frustration    float64
	Recognized     bool // current event matched a stored pattern
	PatternsSeen   int  // recognitions so far this session
	SubjectCovered bool // offline knowledge covers the learner's subject
	MessageFor     func(quadvec.Label) Message
}

// HasGoal reports whether g is among the declared goals.
func (c Context) HasGoal(g Goal) bool {
	for _, x := range c.Goals {
		if x == g {
			return true
		}
	}
	return false
}

// #endregion candidate

// #region rule
// Rule is a pure check from (candidate, context) to a verdict.
type Rule struct {
	ID       string
	Category Category
	Reason   string
	Check    func(Candidate, Context) Verdict
}

// Finding records a non-ok verdict.
type Finding struct {
	RuleID   string
	Category Category
	Verdict  Verdict
	Reason   string
}

// #endregion rule

// #region config
// GateConfig holds rule thresholds.
type GateConfig struct {
	ConsecutiveLabelCap int     // K: max consecutive issues of one label without progress
	ExploreFrustration  float64 // warn on Explore at or above this frustration
	RecommendReview     float64 // tier-5 heuristic: recommend Review at or above this frustration
}

// DefaultGateConfig returns the default thresholds.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		ConsecutiveLabelCap: 3,
		ExploreFrustration:  0.5,
		RecommendReview:     0.4,
	}
}

// #endregion config

// #region report
// Report is the validator's decision on one candidate.
type Report struct {
	Approved    bool
	Violations  []Finding
	Warnings    []Finding
	Alternative *quadvec.Label
	Confidence  float64
}

// #endregion report
