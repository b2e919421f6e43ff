package orchestrator

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/ixtech/aniota/lic-controller/internal/event"
	"github.com/ixtech/aniota/lic-controller/internal/gate"
	"github.com/ixtech/aniota/lic-controller/internal/knowledge"
	"github.com/ixtech/aniota/lic-controller/internal/quadvec"
)

// renderFunc adapts a function to Renderer.
type renderFunc func(Prompt) gate.Message

func (f renderFunc) Render(p Prompt) gate.Message { return f(p) }

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestSelector(r Renderer) *Selector {
	return NewSelector(DefaultSelectorConfig(), gate.NewGate(gate.DefaultGateConfig(), nil), r, nil)
}

func inputFor(t *testing.T, rec event.Record) Input {
	t.Helper()
	v, err := quadvec.Encode(rec)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return Input{
		Record:         rec,
		Vector:         v,
		AgeTier:        knowledge.Elementary,
		SubjectCovered: true,
	}
}

func dwellEvent() event.Record {
	return event.Record{
		Kind:    event.KindPointer,
		At:      t0,
		Pointer: event.Pointer{X: 0.5, Y: 0.5, DwellMs: 4000},
	}
}

func TestSelect_PointerDwellPicksExtend(t *testing.T) {
	s := newTestSelector(nil)
	sel, err := s.Select(inputFor(t, dwellEvent()), nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Label != quadvec.Extend || sel.Tier != TierProximity {
		t.Fatalf("expected Extend at tier 3, got %s at %s", sel.Label, sel.Tier)
	}
	if sel.Coordinate.Relatedness < 0.69 || sel.Coordinate.Relatedness > 0.71 {
		t.Fatalf("unexpected coordinate %+v", sel.Coordinate)
	}
	if sel.Degraded || sel.FollowUp {
		t.Fatalf("clean tier-3 selection should be neither degraded nor follow-up: %+v", sel)
	}
}

func TestSelect_KeyBurstPicksReview(t *testing.T) {
	s := newTestSelector(nil)
	rec := event.Record{Kind: event.KindKey, At: t0, Key: event.Key{InterKeyMs: 200, Class: event.KeyLetter}}
	sel, err := s.Select(inputFor(t, rec), nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Label != quadvec.Review || sel.Tier != TierProximity {
		t.Fatalf("expected Review at tier 3, got %s at %s", sel.Label, sel.Tier)
	}
}

func TestSelect_ClipboardBurstTriggersReview(t *testing.T) {
	s := newTestSelector(nil)
	in := inputFor(t, paste(t0.Add(4*time.Second), true))
	in.Pastes = []time.Time{t0, t0.Add(2 * time.Second)}

	sel, err := s.Select(in, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Label != quadvec.Review || sel.Tier != TierExplicitTrigger {
		t.Fatalf("expected Review at tier 1, got %s at %s", sel.Label, sel.Tier)
	}
	if !sel.FollowUp {
		t.Fatal("clipboard trigger requires follow-up")
	}
	if sel.Triggers[0] != TriggerClipboardBurst {
		t.Fatalf("unexpected triggers %v", sel.Triggers)
	}

	in.Pastes = in.Pastes[:1]
	sel, _ = s.Select(in, nil)
	if sel.Tier == TierExplicitTrigger {
		t.Fatal("two pastes are not a burst")
	}
}

func TestSelect_LearnerRequest(t *testing.T) {
	s := newTestSelector(nil)
	rec := dwellEvent()
	rec.Request = "can we try something harder"
	sel, err := s.Select(inputFor(t, rec), nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Label != quadvec.Expand || sel.Tier != TierExplicitTrigger {
		t.Fatalf("expected Expand at tier 1, got %s at %s", sel.Label, sel.Tier)
	}
	if sel.Triggers[0] != TriggerRequest+":harder" {
		t.Fatalf("unexpected triggers %v", sel.Triggers)
	}
}

func TestSelect_Momentum(t *testing.T) {
	s := newTestSelector(nil)

	in := inputFor(t, dwellEvent())
	in.Frustration = 0.8
	sel, _ := s.Select(in, nil)
	if sel.Label != quadvec.Review || sel.Tier != TierMomentum {
		t.Fatalf("frustrated learner should get Review at tier 2, got %s at %s", sel.Label, sel.Tier)
	}

	in = inputFor(t, dwellEvent())
	in.Recent = []Recent{
		{Label: quadvec.Review, Completed: true, Outcome: 0.2},
		{Label: quadvec.Review, Completed: true, Outcome: 0.4, Success: true},
	}
	sel, _ = s.Select(in, nil)
	if sel.Label != quadvec.Explore || sel.Tier != TierMomentum {
		t.Fatalf("rising review should move to Explore at tier 2, got %s at %s", sel.Label, sel.Tier)
	}
}

func TestSelect_ProximityTieBreaksOnUsage(t *testing.T) {
	s := newTestSelector(nil)
	in := inputFor(t, dwellEvent())
	in.Vector = quadvec.NewWithCoordinates(0.1, 0.1, 0.1, 0.1, quadvec.Point{Relatedness: 0.5, Difficulty: 0.5})
	in.Recent = []Recent{
		{Label: quadvec.Expand, Completed: true},
		{Label: quadvec.Expand, Completed: true},
		{Label: quadvec.Explore, Completed: true},
		{Label: quadvec.Extend, Completed: true},
	}
	sel, _ := s.Select(in, nil)
	if sel.Label != quadvec.Review || sel.Tier != TierProximity {
		t.Fatalf("equidistant point should pick the least used label, got %s at %s", sel.Label, sel.Tier)
	}
}

func TestSelect_ProximityIsNearestAnchor(t *testing.T) {
	s := newTestSelector(nil)
	for r := 0.0; r <= 1.0; r += 0.1 {
		for d := 0.0; d <= 1.0; d += 0.1 {
			in := inputFor(t, dwellEvent())
			in.Vector = quadvec.NewWithCoordinates(0.5, 0.5, 0.5, 0.5, quadvec.Point{Relatedness: r, Difficulty: d})
			sel, err := s.Select(in, nil)
			if err != nil {
				t.Fatalf("Select: %v", err)
			}
			if sel.Tier != TierProximity {
				continue
			}
			chosen := sel.Coordinate.Distance(quadvec.Anchor(sel.Label))
			for _, l := range quadvec.Labels() {
				if dist := sel.Coordinate.Distance(quadvec.Anchor(l)); dist < chosen-1e-9 {
					t.Fatalf("(%.1f,%.1f): %s is nearer than %s", r, d, l, sel.Label)
				}
			}
		}
	}
}

// vetoLabel renders direct answers for one label so the independence goal
// vetoes it everywhere except at the escape tiers.
func vetoLabel(label quadvec.Label) Renderer {
	return renderFunc(func(p Prompt) gate.Message {
		m := TemplateRenderer{}.Render(p)
		m.GivesAnswer = p.Label == label && !p.Tier.IsEscape()
		return m
	})
}

func TestSelect_HistoricalSuccessAfterVeto(t *testing.T) {
	s := newTestSelector(vetoLabel(quadvec.Extend))
	in := inputFor(t, dwellEvent())
	in.Goals = []gate.Goal{gate.GoalIndependence}
	for i := 0; i < 3; i++ {
		in.Success = in.Success.Record(quadvec.Explore, true)
	}
	in.Success = in.Success.Record(quadvec.Review, false)
	in.Success = in.Success.Record(quadvec.Expand, false)

	sel, err := s.Select(in, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Label != quadvec.Explore || sel.Tier != TierHistoricalSuccess {
		t.Fatalf("expected Explore at tier 4, got %s at %s", sel.Label, sel.Tier)
	}
	if !sel.Degraded || len(sel.VetoedTiers) != 1 || sel.VetoedTiers[0] != TierProximity {
		t.Fatalf("expected degraded with tier 3 vetoed, got %+v", sel)
	}
}

func TestSelect_CommonSenseWhenHistoryIsShort(t *testing.T) {
	s := newTestSelector(vetoLabel(quadvec.Extend))
	in := inputFor(t, dwellEvent())
	in.Goals = []gate.Goal{gate.GoalIndependence}
	in.Success = in.Success.Record(quadvec.Explore, true)

	sel, err := s.Select(in, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Tier != TierCommonSense {
		t.Fatalf("expected tier 5, got %s", sel.Tier)
	}
	// no patterns seen yet: the rule heuristic opens with Explore
	if sel.Label != quadvec.Explore {
		t.Fatalf("expected Explore, got %s", sel.Label)
	}
}

func TestSelect_EscapeIsUniform(t *testing.T) {
	// Every non-escape message hands over the answer, so tiers 1-5 are vetoed.
	s := newTestSelector(renderFunc(func(p Prompt) gate.Message {
		m := TemplateRenderer{}.Render(p)
		m.GivesAnswer = !p.Tier.IsEscape()
		return m
	}))
	rng := rand.New(rand.NewPCG(42, 1024))

	const trials = 4000
	counts := make(map[quadvec.Label]int)
	for i := 0; i < trials; i++ {
		in := inputFor(t, dwellEvent())
		in.Goals = []gate.Goal{gate.GoalIndependence}
		in.Record.Request = "review"
		in.Frustration = 0.9

		sel, err := s.Select(in, rng)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if sel.Tier != TierEscape || sel.Tier.String() != "escape" {
			t.Fatalf("expected escape tier, got %s", sel.Tier)
		}
		if !sel.FollowUp || !sel.Message.AsksLearner {
			t.Fatal("escape must ask the learner for direction")
		}
		if len(sel.VetoedTiers) != 3 {
			t.Fatalf("expected tiers 1-3 vetoed (4 and 5 have nothing), got %v", sel.VetoedTiers)
		}
		counts[sel.Label]++
	}

	expected := float64(trials) / 4
	chi := 0.0
	for _, l := range quadvec.Labels() {
		d := float64(counts[l]) - expected
		chi += d * d / expected
	}
	// df=3, p=0.001
	if chi > 16.27 {
		t.Fatalf("escape distribution not uniform: chi2=%.2f counts=%v", chi, counts)
	}
}

func TestSelect_EscapeForcedUsesAlternative(t *testing.T) {
	// Only the escape phrasing of Review is acceptable.
	s := newTestSelector(renderFunc(func(p Prompt) gate.Message {
		m := TemplateRenderer{}.Render(p)
		m.GivesAnswer = p.Label != quadvec.Review || !p.Tier.IsEscape()
		return m
	}))
	in := inputFor(t, dwellEvent())
	in.Goals = []gate.Goal{gate.GoalIndependence}
	// With Review capped nothing survives.
	in.Recent = []Recent{
		{Label: quadvec.Review, Completed: true},
		{Label: quadvec.Review, Completed: true},
		{Label: quadvec.Review, Completed: true},
	}

	_, err := s.Select(in, rand.New(rand.NewPCG(1, 2)))
	if !errors.Is(err, ErrSelectorFailure) {
		t.Fatalf("expected selector failure when no label survives, got %v", err)
	}

	in.Recent = nil
	rng := rand.New(rand.NewPCG(7, 7))
	forced := 0
	for i := 0; i < 50; i++ {
		sel, err := s.Select(in, rng)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if sel.Label != quadvec.Review {
			t.Fatalf("only Review can pass, got %s", sel.Label)
		}
		if sel.Tier == TierEscapeForced {
			forced++
			if !sel.FollowUp || sel.Report.Approved {
				t.Fatalf("forced escape should carry the vetoed report and ask the learner: %+v", sel)
			}
		}
	}
	if forced == 0 {
		t.Fatal("expected at least one forced escape in 50 draws")
	}
}

func TestSelect_FailureWhenEverythingIsVetoed(t *testing.T) {
	s := newTestSelector(renderFunc(func(p Prompt) gate.Message {
		return gate.Message{Text: "try harder", Tone: gate.ToneCritical}
	}))
	_, err := s.Select(inputFor(t, dwellEvent()), nil)
	if !errors.Is(err, ErrSelectorFailure) {
		t.Fatalf("expected ErrSelectorFailure, got %v", err)
	}
}

func TestTimeoutSelection(t *testing.T) {
	s := newTestSelector(nil)
	sel := s.TimeoutSelection(inputFor(t, dwellEvent()), rand.New(rand.NewPCG(3, 3)))
	if sel.Tier != TierEscape || !sel.FollowUp {
		t.Fatalf("timeout must be an escape with follow-up: %+v", sel)
	}
	if len(sel.Triggers) != 2 || sel.Triggers[1] != TriggerTimeout {
		t.Fatalf("timeout rationale missing: %v", sel.Triggers)
	}
	if !sel.Label.Valid() {
		t.Fatalf("invalid label %q", sel.Label)
	}
}
