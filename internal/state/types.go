package state

import (
	"time"

	"github.com/ixtech/aniota/lic-controller/internal/event"
	"github.com/ixtech/aniota/lic-controller/internal/gate"
	"github.com/ixtech/aniota/lic-controller/internal/knowledge"
	"github.com/ixtech/aniota/lic-controller/internal/orchestrator"
	"github.com/ixtech/aniota/lic-controller/internal/quadvec"
	"github.com/ixtech/aniota/lic-controller/internal/signals"
)

// #region profile
// Profile describes the learner a session serves.
type Profile struct {
	LearnerRef     string               `json:"learner_ref,omitempty"`
	AgeTier        knowledge.GradeLevel `json:"age_tier"`
	PriorKnowledge []string             `json:"prior_knowledge,omitempty"`
	Goals          []gate.Goal          `json:"goals,omitempty"`
	Subject        string               `json:"subject,omitempty"`
}

// #endregion profile

// #region history
// HistoryEntry is one processed event and the selection it produced.
type HistoryEntry struct {
	Seq         int                `json:"seq"`
	SelectionID string             `json:"selection_id"`
	Event       event.Record       `json:"event"`
	Vector      quadvec.QuadVector `json:"vector"`
	Label       quadvec.Label      `json:"label"`
	Tier        orchestrator.Tier  `json:"tier"`
	Triggers    []string           `json:"triggers"`
	Message     string             `json:"message"`
	Similarity  float64            `json:"similarity"`
	Recognized  bool               `json:"recognized"`
	Engagement  float64            `json:"engagement"`
	Frustration float64            `json:"frustration"` // after this event
	At          time.Time          `json:"at"`
}

// #endregion history

// #region session-state
// SessionState is the mutable state of one session. The session controller
// works on a Clone and swaps it in only after the event is recorded.
type SessionState struct {
	ID        string
	Profile   Profile
	StartedAt time.Time
	Closed    bool

	History     []HistoryEntry
	Recent      []orchestrator.Recent // bounded to RecentWindow, oldest first
	Frustration float64
	LastTier    orchestrator.Tier

	FrustrationSum float64 // sum of post-event frustration, for the summary average
	Recognitions   int
	Baseline       signals.Baseline
	Success        orchestrator.SuccessMemory
	Pastes         []time.Time // external pastes inside the burst window
	Jitter         signals.JitterWindow
}

// NewSessionState creates an empty session.
func NewSessionState(id string, profile Profile, startedAt time.Time) SessionState {
	if profile.AgeTier == "" {
		profile.AgeTier = knowledge.Elementary
	}
	return SessionState{ID: id, Profile: profile, StartedAt: startedAt}
}

// Clone returns a copy that shares no slices with s.
func (s SessionState) Clone() SessionState {
	c := s
	c.History = append([]HistoryEntry(nil), s.History...)
	c.Recent = append([]orchestrator.Recent(nil), s.Recent...)
	c.Pastes = append([]time.Time(nil), s.Pastes...)
	c.Jitter = signals.JitterWindow{Samples: append(c.Jitter.Samples[:0:0], s.Jitter.Samples...)}
	c.Profile.Goals = append([]gate.Goal(nil), s.Profile.Goals...)
	c.Profile.PriorKnowledge = append([]string(nil), s.Profile.PriorKnowledge...)
	return c
}

// PushRecent appends r and trims the ring to window entries.
func (s *SessionState) PushRecent(r orchestrator.Recent, window int) {
	s.Recent = append(s.Recent, r)
	if window > 0 && len(s.Recent) > window {
		s.Recent = append([]orchestrator.Recent(nil), s.Recent[len(s.Recent)-window:]...)
	}
}

// PrunePastes drops paste times older than window before now.
func (s *SessionState) PrunePastes(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	kept := s.Pastes[:0:0]
	for _, at := range s.Pastes {
		if !at.Before(cutoff) {
			kept = append(kept, at)
		}
	}
	s.Pastes = kept
}

// #endregion session-state

// #region summary
// Summary is what end_session reports.
type Summary struct {
	SessionID       string                `json:"session_id"`
	Events          int                   `json:"events"`
	LabelCounts     map[quadvec.Label]int `json:"label_counts"`
	TierCounts      map[string]int        `json:"tier_counts"`
	AvgFrustration  float64               `json:"avg_frustration"`
	RecognitionRate float64               `json:"recognition_rate"`
	StartedAt       time.Time             `json:"started_at"`
	EndedAt         time.Time             `json:"ended_at"`
}

// Summarize builds the end-of-session report.
func (s SessionState) Summarize(endedAt time.Time) Summary {
	sum := Summary{
		SessionID:   s.ID,
		Events:      len(s.History),
		LabelCounts: make(map[quadvec.Label]int, 4),
		TierCounts:  make(map[string]int),
		StartedAt:   s.StartedAt,
		EndedAt:     endedAt,
	}
	for _, l := range quadvec.Labels() {
		sum.LabelCounts[l] = 0
	}
	for _, h := range s.History {
		sum.LabelCounts[h.Label]++
		sum.TierCounts[h.Tier.String()]++
	}
	if n := len(s.History); n > 0 {
		sum.AvgFrustration = s.FrustrationSum / float64(n)
		sum.RecognitionRate = float64(s.Recognitions) / float64(n)
	}
	return sum
}

// #endregion summary

// #region records
// SessionRecord is the persisted row for a started session.
type SessionRecord struct {
	ID        string
	Profile   Profile
	StartedAt time.Time
	EndedAt   time.Time // zero while open
}

// Outcome closes an earlier selection once the next event arrives.
type Outcome struct {
	SelectionID string
	Success     bool
	Engagement  float64
}

// SelectionRecord is the persisted row for one selection.
type SelectionRecord struct {
	ID          string
	SessionID   string
	Seq         int
	Event       event.Record
	Vector      quadvec.QuadVector
	Label       quadvec.Label
	Tier        orchestrator.Tier
	Triggers    []string
	Message     string
	FollowUp    bool
	Degraded    bool
	VetoedTiers []orchestrator.Tier
	Vetoes      []string // rule ids of the final report
	Similarity  float64
	Recognized  bool
	Engagement  float64
	Frustration float64
	CreatedAt   time.Time

	Completes *Outcome // previous selection closed by this event, if any
}

// SelectionRow is a selection as read back from the store.
type SelectionRow struct {
	SelectionRecord
	Completed bool
	Success   bool
	Outcome   float64
}

// #endregion records
