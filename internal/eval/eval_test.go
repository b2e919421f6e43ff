package eval

import (
	"testing"

	"github.com/ixtech/aniota/lic-controller/internal/orchestrator"
	"github.com/ixtech/aniota/lic-controller/internal/quadvec"
	"github.com/ixtech/aniota/lic-controller/internal/session"
	"github.com/ixtech/aniota/lic-controller/internal/state"
)

func makeResponse(label quadvec.Label, tier orchestrator.Tier, r, d float64) session.Response {
	return session.Response{
		SelectionID: "sel-1",
		Label:       label,
		Message:     "Want to try a harder one?",
		Rationale: session.Rationale{
			Tier:       int(tier),
			TierName:   tier.String(),
			Coordinate: [2]float64{r, d},
		},
	}
}

func metric(t *testing.T, res EvalResult, name string) EvalMetric {
	t.Helper()
	for _, m := range res.Metrics {
		if m.Name == name {
			return m
		}
	}
	t.Fatalf("metric %s not found in %+v", name, res.Metrics)
	return EvalMetric{}
}

func TestEvalPassesOnProximity(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	res := h.Run(makeResponse(quadvec.Extend, orchestrator.TierProximity, 0.7, 0.4))

	if !res.Passed {
		t.Fatalf("expected pass, got fail: %s", res.Reason)
	}
	if !metric(t, res, "proximity_nearest").Pass {
		t.Fatal("expected proximity_nearest to pass")
	}
}

func TestEvalFailsOnFarAnchor(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	res := h.Run(makeResponse(quadvec.Explore, orchestrator.TierProximity, 0.7, 0.4))

	if res.Passed {
		t.Fatal("expected fail when proximity picks a far anchor")
	}
	if metric(t, res, "proximity_nearest").Pass {
		t.Fatal("expected proximity_nearest to fail")
	}
}

func TestEvalAllowsTieAtCentre(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	for _, l := range quadvec.Labels() {
		res := h.Run(makeResponse(l, orchestrator.TierProximity, 0.5, 0.5))
		if !res.Passed {
			t.Fatalf("label %s at the centre should pass: %s", l, res.Reason)
		}
	}
}

func TestEvalSkipsNearestOutsideProximity(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	res := h.Run(makeResponse(quadvec.Review, orchestrator.TierExplicitTrigger, 0.9, 0.9))

	if !res.Passed {
		t.Fatalf("explicit trigger may pick any label: %s", res.Reason)
	}
	for _, m := range res.Metrics {
		if m.Name == "proximity_nearest" {
			t.Fatal("proximity_nearest should only run for tier 3")
		}
	}
}

func TestEvalFailsOnInvalidLabel(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	res := h.Run(makeResponse("Wander", orchestrator.TierMomentum, 0.5, 0.5))

	if res.Passed {
		t.Fatal("expected fail on unknown label")
	}
}

func TestEvalFailsOnTierOutOfRange(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	res := h.Run(makeResponse(quadvec.Review, orchestrator.Tier(9), 0.5, 0.5))

	if res.Passed {
		t.Fatal("expected fail on tier 9")
	}
	if metric(t, res, "tier_range").Value != 9 {
		t.Fatalf("expected tier_range value 9, got %v", metric(t, res, "tier_range").Value)
	}
}

func TestEvalFailsOnCoordinateOutsideSquare(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	res := h.Run(makeResponse(quadvec.Review, orchestrator.TierMomentum, 1.2, 0.5))

	if res.Passed {
		t.Fatal("expected fail on coordinate outside the unit square")
	}
}

func TestEvalEscapeNeedsFollowUp(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())

	resp := makeResponse(quadvec.Explore, orchestrator.TierEscape, 0.5, 0.5)
	resp.Message = "I'm not sure which way to go. Do you want to explore?"
	resp.FollowUp = true
	if res := h.Run(resp); !res.Passed {
		t.Fatalf("frank escape should pass: %s", res.Reason)
	}

	resp.FollowUp = false
	if res := h.Run(resp); res.Passed {
		t.Fatal("escape without follow-up should fail")
	}

	resp.FollowUp = true
	resp.Message = "Let's explore."
	if res := h.Run(resp); res.Passed {
		t.Fatal("escape without the uncertainty phrase should fail")
	}
}

func TestEvalFailsOnFrustrationOutOfRange(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	resp := makeResponse(quadvec.Review, orchestrator.TierMomentum, 0.2, 0.2)
	resp.Rationale.Frustration = 1.5

	res := h.Run(resp)
	if res.Passed {
		t.Fatal("expected fail on frustration above one")
	}
}

func TestEvalReasonCountsFailures(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	resp := makeResponse("", orchestrator.Tier(0), -1, 2)

	res := h.Run(resp)
	if res.Passed {
		t.Fatal("expected fail")
	}
	if res.Reason == "" || res.Reason == "all checks passed" {
		t.Fatalf("expected a failure reason, got %q", res.Reason)
	}
}

func TestRunHistory(t *testing.T) {
	h := NewEvalHarness(EvalConfig{})
	hist := []state.HistoryEntry{
		{Seq: 0, Label: quadvec.Extend},
		{Seq: 1, Label: quadvec.Review},
	}
	if res := h.RunHistory(hist); !res.Passed {
		t.Fatalf("ordered history should pass: %s", res.Reason)
	}

	hist[1].Seq = 3
	if res := h.RunHistory(hist); res.Passed {
		t.Fatal("gap in seq should fail")
	}

	hist[1].Seq = 1
	hist[1].Label = ""
	if res := h.RunHistory(hist); res.Passed {
		t.Fatal("unlabelled entry should fail")
	}
}
