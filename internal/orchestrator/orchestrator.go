package orchestrator

// #region imports
import (
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/ixtech/aniota/lic-controller/internal/gate"
	"github.com/ixtech/aniota/lic-controller/internal/quadvec"
)

// #endregion

// #region config

// SelectorConfig holds the cascade thresholds.
type SelectorConfig struct {
	FrustrationThreshold float64       // tier 2: Review at or above this
	PasteBurst           int           // tier 1: external pastes that form a burst
	PasteWindow          time.Duration // tier 1: window the burst must fit in
	MinCompleted         int           // tier 4: completed selections required
}

// DefaultSelectorConfig returns the default thresholds.
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		FrustrationThreshold: 0.7,
		PasteBurst:           3,
		PasteWindow:          10 * time.Second,
		MinCompleted:         5,
	}
}

// #endregion

// #region selector-struct

// Selector runs the six-tier cascade. It holds no per-session state and is
// safe to share between sessions.
type Selector struct {
	config   SelectorConfig
	gate     *gate.Gate
	renderer Renderer
	logger   *zap.Logger
}

// NewSelector wires a selector. renderer nil selects TemplateRenderer.
func NewSelector(config SelectorConfig, g *gate.Gate, renderer Renderer, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderer == nil {
		renderer = TemplateRenderer{}
	}
	if g == nil {
		g = gate.NewGate(gate.DefaultGateConfig(), logger)
	}
	def := DefaultSelectorConfig()
	if config.PasteBurst <= 0 {
		config.PasteBurst = def.PasteBurst
	}
	if config.PasteWindow <= 0 {
		config.PasteWindow = def.PasteWindow
	}
	if config.MinCompleted <= 0 {
		config.MinCompleted = def.MinCompleted
	}
	if config.FrustrationThreshold <= 0 {
		config.FrustrationThreshold = def.FrustrationThreshold
	}
	return &Selector{config: config, gate: g, renderer: renderer, logger: logger.Named("orch")}
}

// Renderer returns the renderer messages are produced with.
func (s *Selector) Renderer() Renderer {
	return s.renderer
}

// Config returns the thresholds in effect after defaults were applied.
func (s *Selector) Config() SelectorConfig {
	return s.config
}

// #endregion

// #region select

// Select picks the next label for one event. Each tier proposes at most one
// candidate; a vetoed candidate moves the cascade to the next tier. A vetoed
// escape falls back to the validator's alternative as TierEscapeForced.
// rng drives the escape draw; nil uses the shared generator.
func (s *Selector) Select(in Input, rng *rand.Rand) (Selection, error) {
	esc := newEscalation()

	for _, tier := range Tiers() {
		label, triggers, ok := s.propose(tier, in, rng, esc)
		if !ok {
			continue
		}

		prompt := s.prompt(in, label, tier, triggers)
		cand := gate.Candidate{Label: label, Message: s.renderer.Render(prompt)}
		gctx := s.gateContext(in, prompt)
		report := s.gate.Evaluate(cand, gctx)

		if report.Approved {
			sel := s.selection(in, cand, tier, triggers, report, esc)
			s.logDecision(sel)
			return sel, nil
		}

		esc.veto(tier, label)
		s.logger.Debug("tier vetoed",
			zap.Stringer("tier", tier),
			zap.String("label", string(label)),
			zap.String("rule", report.Violations[0].RuleID))

		if tier != TierEscape {
			continue
		}
		if report.Alternative == nil {
			s.logger.Error("escape vetoed without alternative",
				zap.String("label", string(label)),
				zap.Int("violations", len(report.Violations)))
			return Selection{}, fmt.Errorf("select: escape %s vetoed: %w", label, ErrSelectorFailure)
		}

		alt := *report.Alternative
		prompt = s.prompt(in, alt, TierEscapeForced, triggers)
		cand = gate.Candidate{Label: alt, Message: s.renderer.Render(prompt)}
		sel := s.selection(in, cand, TierEscapeForced, triggers, report, esc)
		s.logDecision(sel)
		return sel, nil
	}

	return Selection{}, fmt.Errorf("select: cascade exhausted: %w", ErrSelectorFailure)
}

// #endregion

// #region propose

// propose returns the candidate of one tier, if the tier has one.
func (s *Selector) propose(tier Tier, in Input, rng *rand.Rand, esc *escalation) (quadvec.Label, []string, bool) {
	switch tier {
	case TierExplicitTrigger:
		if PasteBurst(in.Record, in.Pastes, s.config.PasteWindow, s.config.PasteBurst) {
			return quadvec.Review, []string{TriggerClipboardBurst}, true
		}
		if l, word, ok := ClassifyRequest(in.Record.Request); ok {
			return l, []string{TriggerRequest + ":" + word}, true
		}

	case TierMomentum:
		if in.Frustration >= s.config.FrustrationThreshold {
			return quadvec.Review, []string{TriggerFrustration}, true
		}
		if risingReview(in.Recent) {
			return quadvec.Explore, []string{TriggerReviewMomentum}, true
		}

	case TierProximity:
		l, _ := quadvec.Nearest(in.Vector.Point(), usageCounter(in.Recent))
		return l, []string{TriggerNearestAnchor}, true

	case TierHistoricalSuccess:
		if l, _, ok := in.Success.BestLabel(s.config.MinCompleted); ok {
			return l, []string{TriggerSuccessRate}, true
		}

	case TierCommonSense:
		gctx := s.gateContext(in, s.prompt(in, "", TierCommonSense, nil))
		if l, ok := s.gate.Recommend(gctx, esc.vetoedLabels); ok {
			return l, []string{TriggerRecommendation}, true
		}

	case TierEscape:
		labels := quadvec.Labels()
		var i int
		if rng != nil {
			i = rng.IntN(len(labels))
		} else {
			i = rand.IntN(len(labels))
		}
		return labels[i], []string{TriggerEscape}, true
	}
	return "", nil, false
}

// #endregion

// #region timeout

// TimeoutSelection is the escape returned when an event runs out of time.
// It draws a label like the escape tier but skips validation.
func (s *Selector) TimeoutSelection(in Input, rng *rand.Rand) Selection {
	labels := quadvec.Labels()
	var i int
	if rng != nil {
		i = rng.IntN(len(labels))
	} else {
		i = rand.IntN(len(labels))
	}
	triggers := []string{TriggerEscape, TriggerTimeout}
	prompt := s.prompt(in, labels[i], TierEscape, triggers)
	return Selection{
		Label:      labels[i],
		Tier:       TierEscape,
		Message:    s.renderer.Render(prompt),
		Triggers:   triggers,
		Coordinate: in.Vector.Point(),
		FollowUp:   true,
	}
}

// #endregion

// #region helpers

func (s *Selector) prompt(in Input, label quadvec.Label, tier Tier, triggers []string) Prompt {
	return Prompt{
		Label:    label,
		Tier:     tier,
		Triggers: triggers,
		AgeTier:  in.AgeTier,
		Subject:  in.Subject,
	}
}

// gateContext builds the validator view of the session. Alternatives are
// rendered with the same tier and triggers as the candidate they replace.
func (s *Selector) gateContext(in Input, p Prompt) gate.Context {
	recent := make([]gate.RecentSelection, len(in.Recent))
	for i, r := range in.Recent {
		recent[i] = gate.RecentSelection{Label: r.Label, Progress: r.Success}
	}
	return gate.Context{
		Target:         in.Vector.Point(),
		Goals:          in.Goals,
		AgeTier:        in.AgeTier,
		Recent:         recent,
		Frustration:    in.Frustration,
		Recognized:     in.Pattern.Recognized,
		PatternsSeen:   in.PatternsSeen,
		SubjectCovered: in.SubjectCovered,
		MessageFor: func(l quadvec.Label) gate.Message {
			q := p
			q.Label = l
			return s.renderer.Render(q)
		},
	}
}

func (s *Selector) selection(in Input, c gate.Candidate, tier Tier, triggers []string, report gate.Report, esc *escalation) Selection {
	return Selection{
		Label:       c.Label,
		Tier:        tier,
		Message:     c.Message,
		Triggers:    triggers,
		Coordinate:  in.Vector.Point(),
		FollowUp:    tier.IsEscape() || c.Message.AsksLearner,
		Degraded:    esc.degraded(),
		VetoedTiers: esc.tiers(),
		Report:      report,
	}
}

func (s *Selector) logDecision(sel Selection) {
	s.logger.Info("select",
		zap.String("label", string(sel.Label)),
		zap.Stringer("tier", sel.Tier),
		zap.Strings("triggers", sel.Triggers),
		zap.Bool("degraded", sel.Degraded),
		zap.Float64("confidence", sel.Report.Confidence))
}

// usageCounter counts how often each label appears in recent.
func usageCounter(recent []Recent) func(quadvec.Label) int {
	counts := make(map[quadvec.Label]int, 4)
	for _, r := range recent {
		counts[r.Label]++
	}
	return func(l quadvec.Label) int { return counts[l] }
}

// #endregion
