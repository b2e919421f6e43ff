package state

import (
	"testing"
	"time"

	"github.com/ixtech/aniota/lic-controller/internal/event"
	"github.com/ixtech/aniota/lic-controller/internal/gate"
	"github.com/ixtech/aniota/lic-controller/internal/knowledge"
	"github.com/ixtech/aniota/lic-controller/internal/orchestrator"
	"github.com/ixtech/aniota/lic-controller/internal/quadvec"
)

func TestNewSessionStateDefaultsAgeTier(t *testing.T) {
	s := NewSessionState("s1", Profile{}, t0)
	if s.Profile.AgeTier != knowledge.Elementary {
		t.Fatalf("expected elementary default, got %q", s.Profile.AgeTier)
	}
	s = NewSessionState("s2", Profile{AgeTier: knowledge.Adult}, t0)
	if s.Profile.AgeTier != knowledge.Adult {
		t.Fatalf("explicit age tier overwritten: %q", s.Profile.AgeTier)
	}
}

func TestCloneSharesNoSlices(t *testing.T) {
	s := NewSessionState("s1", Profile{Goals: []gate.Goal{gate.GoalMastery}}, t0)
	s.History = []HistoryEntry{{Seq: 0, Label: quadvec.Review}}
	s.Recent = []orchestrator.Recent{{Label: quadvec.Review}}
	s.Pastes = []time.Time{t0}
	s.Jitter.Samples = []event.Pointer{{X: 0.1}}

	c := s.Clone()
	c.History[0].Label = quadvec.Expand
	c.Recent[0].Label = quadvec.Expand
	c.Pastes[0] = t0.Add(time.Hour)
	c.Jitter.Samples[0].X = 0.9
	c.Profile.Goals[0] = gate.GoalCuriosity

	if s.History[0].Label != quadvec.Review || s.Recent[0].Label != quadvec.Review {
		t.Fatal("clone mutated original history or recent")
	}
	if !s.Pastes[0].Equal(t0) || s.Jitter.Samples[0].X != 0.1 {
		t.Fatal("clone mutated original pastes or jitter")
	}
	if s.Profile.Goals[0] != gate.GoalMastery {
		t.Fatal("clone mutated original goals")
	}
}

func TestPushRecentBounded(t *testing.T) {
	var s SessionState
	for _, l := range []quadvec.Label{quadvec.Expand, quadvec.Explore, quadvec.Extend, quadvec.Review} {
		s.PushRecent(orchestrator.Recent{Label: l}, 3)
	}
	if len(s.Recent) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(s.Recent))
	}
	if s.Recent[0].Label != quadvec.Explore || s.Recent[2].Label != quadvec.Review {
		t.Fatalf("expected oldest dropped, got %+v", s.Recent)
	}
}

func TestPrunePastes(t *testing.T) {
	s := SessionState{Pastes: []time.Time{t0, t0.Add(5 * time.Second), t0.Add(12 * time.Second)}}
	s.PrunePastes(t0.Add(15*time.Second), 10*time.Second)
	if len(s.Pastes) != 2 {
		t.Fatalf("expected 2 pastes kept, got %d", len(s.Pastes))
	}
	if !s.Pastes[0].Equal(t0.Add(5 * time.Second)) {
		t.Fatalf("boundary paste should be kept, got %v", s.Pastes[0])
	}
}

func TestSummarize(t *testing.T) {
	s := NewSessionState("s1", Profile{}, t0)
	s.History = []HistoryEntry{
		{Label: quadvec.Review, Tier: orchestrator.TierMomentum},
		{Label: quadvec.Review, Tier: orchestrator.TierProximity},
		{Label: quadvec.Extend, Tier: orchestrator.TierProximity},
		{Label: quadvec.Expand, Tier: orchestrator.TierEscape},
	}
	s.FrustrationSum = 1.0
	s.Recognitions = 1

	sum := s.Summarize(t0.Add(time.Minute))
	if sum.Events != 4 {
		t.Fatalf("expected 4 events, got %d", sum.Events)
	}
	if sum.LabelCounts[quadvec.Review] != 2 || sum.LabelCounts[quadvec.Explore] != 0 {
		t.Fatalf("unexpected label counts %+v", sum.LabelCounts)
	}
	if _, ok := sum.LabelCounts[quadvec.Explore]; !ok {
		t.Fatal("every label should be present in counts")
	}
	if sum.TierCounts["proximity"] != 2 || sum.TierCounts["escape"] != 1 {
		t.Fatalf("unexpected tier counts %+v", sum.TierCounts)
	}
	if sum.AvgFrustration != 0.25 || sum.RecognitionRate != 0.25 {
		t.Fatalf("unexpected averages %v %v", sum.AvgFrustration, sum.RecognitionRate)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	sum := NewSessionState("s1", Profile{}, t0).Summarize(t0)
	if sum.Events != 0 || sum.AvgFrustration != 0 || sum.RecognitionRate != 0 {
		t.Fatalf("expected zero summary, got %+v", sum)
	}
}
