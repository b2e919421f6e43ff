package eval

import (
	"fmt"
	"strings"

	"github.com/ixtech/aniota/lic-controller/internal/orchestrator"
	"github.com/ixtech/aniota/lic-controller/internal/quadvec"
	"github.com/ixtech/aniota/lic-controller/internal/session"
	"github.com/ixtech/aniota/lic-controller/internal/state"
)

// #region eval-harness
// EvalHarness checks controller responses against the properties every
// response must have.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	if config.EscapePhrase == "" {
		config.EscapePhrase = DefaultEvalConfig().EscapePhrase
	}
	return &EvalHarness{config: config}
}

// Run checks one response.
func (h *EvalHarness) Run(resp session.Response) EvalResult {
	var metrics []EvalMetric
	var failReasons []string
	check := func(name string, value float64, pass bool, reason string) {
		metrics = append(metrics, EvalMetric{Name: name, Value: value, Pass: pass})
		if !pass {
			failReasons = append(failReasons, reason)
		}
	}

	// 1. Label is one of the four
	check("label_valid", 0, resp.Label.Valid(), fmt.Sprintf("label %q is not a choice label", resp.Label))

	// 2. Tier in range
	tier := orchestrator.Tier(resp.Rationale.Tier)
	check("tier_range", float64(tier),
		tier >= orchestrator.TierExplicitTrigger && tier <= orchestrator.TierEscapeForced,
		fmt.Sprintf("tier %d out of range", tier))

	// 3. Coordinate in the unit square
	r, d := resp.Rationale.Coordinate[0], resp.Rationale.Coordinate[1]
	check("coordinate_range", r,
		r >= 0 && r <= 1 && d >= 0 && d <= 1,
		fmt.Sprintf("coordinate (%.4f, %.4f) outside [0,1]^2", r, d))

	// 4. Escapes ask the learner and say so
	if tier.IsEscape() {
		frank := strings.Contains(strings.ToLower(resp.Message), strings.ToLower(h.config.EscapePhrase))
		check("escape_follow_up", 0, resp.FollowUp && frank,
			fmt.Sprintf("escape response without follow-up (follow_up=%v, frank=%v)", resp.FollowUp, frank))
	}

	// 5. Proximity picks the nearest anchor
	if tier == orchestrator.TierProximity {
		p := quadvec.Point{Relatedness: r, Difficulty: d}
		chosen := p.Distance(quadvec.Anchor(resp.Label))
		_, nearest := quadvec.Nearest(p, nil)
		check("proximity_nearest", chosen-nearest,
			chosen <= nearest+h.config.Epsilon,
			fmt.Sprintf("label %s at %.4f is not nearest (%.4f)", resp.Label, chosen, nearest))
	}

	// 6. Frustration in range
	f := resp.Rationale.Frustration
	check("frustration_range", f, f >= 0 && f <= 1, fmt.Sprintf("frustration %.4f outside [0,1]", f))

	return result(metrics, failReasons)
}

// RunHistory checks that a session's history is appended in order with one
// label per event.
func (h *EvalHarness) RunHistory(history []state.HistoryEntry) EvalResult {
	var metrics []EvalMetric
	var failReasons []string

	ordered := true
	for i, e := range history {
		if e.Seq != i {
			ordered = false
			failReasons = append(failReasons, fmt.Sprintf("history entry %d has seq %d", i, e.Seq))
			break
		}
	}
	metrics = append(metrics, EvalMetric{Name: "history_ordered", Value: float64(len(history)), Pass: ordered})

	labelled := true
	for _, e := range history {
		if !e.Label.Valid() {
			labelled = false
			failReasons = append(failReasons, fmt.Sprintf("history entry %d has no label", e.Seq))
			break
		}
	}
	metrics = append(metrics, EvalMetric{Name: "history_labelled", Pass: labelled})

	return result(metrics, failReasons)
}

// #endregion eval-harness

// #region helpers
func result(metrics []EvalMetric, failReasons []string) EvalResult {
	reason := "all checks passed"
	if len(failReasons) > 0 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}
	return EvalResult{
		Passed:  len(failReasons) == 0,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion helpers
