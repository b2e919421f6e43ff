package gate

import (
	"sort"

	"go.uber.org/zap"

	"github.com/ixtech/aniota/lic-controller/internal/quadvec"
)

// #region gate
// Gate is the common-sense validator. Rules run in category priority order;
// any veto rejects the candidate.
type Gate struct {
	config GateConfig
	rules  []Rule
	logger *zap.Logger
}

// NewGate creates a gate with the default rule set plus any extra rules.
func NewGate(config GateConfig, logger *zap.Logger, extra ...Rule) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ConsecutiveLabelCap <= 0 {
		config.ConsecutiveLabelCap = DefaultGateConfig().ConsecutiveLabelCap
	}
	rules := append(DefaultRules(config), extra...)
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Category.Priority() < rules[j].Category.Priority()
	})
	return &Gate{config: config, rules: rules, logger: logger.Named("gate")}
}

// Rules returns the active rules in evaluation order.
func (g *Gate) Rules() []Rule {
	return append([]Rule(nil), g.rules...)
}

// #endregion gate

// #region evaluate
// Evaluate runs every rule against the candidate. On veto it proposes the
// nearest other label that passes every rule.
func (g *Gate) Evaluate(c Candidate, ctx Context) Report {
	var report Report
	for _, r := range g.rules {
		switch r.Check(c, ctx) {
		case VerdictVeto:
			report.Violations = append(report.Violations, finding(r, VerdictVeto))
		case VerdictWarn:
			report.Warnings = append(report.Warnings, finding(r, VerdictWarn))
		}
	}

	if len(report.Violations) == 0 {
		report.Approved = true
		report.Confidence = clamp(1 - 0.1*float64(len(report.Warnings)))
		return report
	}

	if alt, ok := g.alternative(c, ctx); ok {
		report.Alternative = &alt
		report.Confidence = 0.5
	}

	g.logger.Debug("candidate vetoed",
		zap.String("label", string(c.Label)),
		zap.String("rule", report.Violations[0].RuleID),
		zap.Int("violations", len(report.Violations)),
		zap.Bool("has_alternative", report.Alternative != nil))
	return report
}

// alternative picks the label nearest to the target, among the other three,
// that no rule vetoes.
func (g *Gate) alternative(c Candidate, ctx Context) (quadvec.Label, bool) {
	remaining := make([]quadvec.Label, 0, 3)
	for _, l := range quadvec.Labels() {
		if l != c.Label {
			remaining = append(remaining, l)
		}
	}
	sort.SliceStable(remaining, func(i, j int) bool {
		return ctx.Target.Distance(quadvec.Anchor(remaining[i])) < ctx.Target.Distance(quadvec.Anchor(remaining[j]))
	})

	for _, l := range remaining {
		alt := Candidate{Label: l, Message: c.Message}
		if ctx.MessageFor != nil {
			alt.Message = ctx.MessageFor(l)
		}
		if !g.vetoed(alt, ctx) {
			return l, true
		}
	}
	return "", false
}

func (g *Gate) vetoed(c Candidate, ctx Context) bool {
	for _, r := range g.rules {
		if r.Check(c, ctx) == VerdictVeto {
			return true
		}
	}
	return false
}

// #endregion evaluate

// #region recommend
// Recommend derives a label from generic learning heuristics: struggling
// learners review, recognized patterns extend, novel input explores,
// otherwise expand. Remaining labels follow by distance to the target. The
// first label not excluded that the gate approves is returned.
func (g *Gate) Recommend(ctx Context, exclude map[quadvec.Label]bool) (quadvec.Label, bool) {
	var first quadvec.Label
	switch {
	case ctx.Frustration >= g.config.RecommendReview:
		first = quadvec.Review
	case ctx.Recognized:
		first = quadvec.Extend
	case ctx.PatternsSeen == 0:
		first = quadvec.Explore
	default:
		first = quadvec.Expand
	}

	order := []quadvec.Label{first}
	rest := make([]quadvec.Label, 0, 3)
	for _, l := range quadvec.Labels() {
		if l != first {
			rest = append(rest, l)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return ctx.Target.Distance(quadvec.Anchor(rest[i])) < ctx.Target.Distance(quadvec.Anchor(rest[j]))
	})
	order = append(order, rest...)

	for _, l := range order {
		if exclude[l] {
			continue
		}
		c := Candidate{Label: l}
		if ctx.MessageFor != nil {
			c.Message = ctx.MessageFor(l)
		}
		if g.Evaluate(c, ctx).Approved {
			return l, true
		}
	}
	return "", false
}

// #endregion recommend

// #region helpers
func finding(r Rule, v Verdict) Finding {
	return Finding{RuleID: r.ID, Category: r.Category, Verdict: v, Reason: r.Reason}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
