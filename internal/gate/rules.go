package gate

import (
	"github.com/ixtech/aniota/lic-controller/internal/quadvec"
)

// #region default-rules

// DefaultRules returns the built-in rule set in priority order.
func DefaultRules(cfg GateConfig) []Rule {
	return []Rule{
		{
			ID:       "safety.direct_answer",
			Category: CategorySafety,
			Reason:   "message hands over the answer while the goal is independence",
			Check: func(c Candidate, ctx Context) Verdict {
				if c.Message.GivesAnswer && ctx.HasGoal(GoalIndependence) {
					return VerdictVeto
				}
				return VerdictOK
			},
		},
		{
			ID:       "safety.criticize_effort",
			Category: CategorySafety,
			Reason:   "message criticizes learner effort",
			Check: func(c Candidate, _ Context) Verdict {
				if c.Message.Tone == ToneCritical {
					return VerdictVeto
				}
				return VerdictOK
			},
		},
		{
			ID:       "learning_autonomy.repeat_cap",
			Category: CategoryLearningAutonomy,
			Reason:   "same label issued too many times in a row without progress",
			Check: func(c Candidate, ctx Context) Verdict {
				if repeatsWithoutProgress(c.Label, ctx.Recent) >= cfg.ConsecutiveLabelCap {
					return VerdictVeto
				}
				return VerdictOK
			},
		},
		{
			ID:       "age_appropriateness.content_level",
			Category: CategoryAgeAppropriateness,
			Reason:   "content is above the learner's grade tier",
			Check: func(c Candidate, ctx Context) Verdict {
				if ctx.AgeTier == "" || c.Message.Level == "" {
					return VerdictOK
				}
				if c.Message.Level.Rank() > ctx.AgeTier.Rank() {
					return VerdictVeto
				}
				return VerdictOK
			},
		},
		{
			ID:       "context_fit.explore_under_frustration",
			Category: CategoryContextFit,
			Reason:   "open exploration while the learner is frustrated",
			Check: func(c Candidate, ctx Context) Verdict {
				if c.Label == quadvec.Explore && ctx.Frustration >= cfg.ExploreFrustration {
					return VerdictWarn
				}
				return VerdictOK
			},
		},
		{
			ID:       "information_completeness.empty_message",
			Category: CategoryInformationCompleteness,
			Reason:   "no follow-up message for the learner",
			Check: func(c Candidate, _ Context) Verdict {
				if c.Message.Text == "" {
					return VerdictWarn
				}
				return VerdictOK
			},
		},
		{
			ID:       "information_completeness.no_coverage",
			Category: CategoryInformationCompleteness,
			Reason:   "offline knowledge has nothing to expand on for this subject",
			Check: func(c Candidate, ctx Context) Verdict {
				if c.Label == quadvec.Expand && !ctx.SubjectCovered {
					return VerdictWarn
				}
				return VerdictOK
			},
		},
		{
			ID:       "problem_solving_fit.extend_without_patterns",
			Category: CategoryProblemSolvingFit,
			Reason:   "extending before any pattern has been recognized",
			Check: func(c Candidate, ctx Context) Verdict {
				if c.Label == quadvec.Extend && ctx.PatternsSeen == 0 && !ctx.Recognized {
					return VerdictWarn
				}
				return VerdictOK
			},
		},
	}
}

// #endregion default-rules

// #region helpers

// repeatsWithoutProgress counts how many of the most recent selections are
// label, stopping at the first different label or any progress.
func repeatsWithoutProgress(label quadvec.Label, recent []RecentSelection) int {
	n := 0
	for i := len(recent) - 1; i >= 0; i-- {
		r := recent[i]
		if r.Label != label || r.Progress {
			break
		}
		n++
	}
	return n
}

// #endregion helpers
