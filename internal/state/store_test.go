package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ixtech/aniota/lic-controller/internal/event"
	"github.com/ixtech/aniota/lic-controller/internal/gate"
	"github.com/ixtech/aniota/lic-controller/internal/knowledge"
	"github.com/ixtech/aniota/lic-controller/internal/orchestrator"
	"github.com/ixtech/aniota/lic-controller/internal/quadvec"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func startSession(t *testing.T, s *Store, id string) {
	t.Helper()
	err := s.StartSession(context.Background(), SessionRecord{
		ID:        id,
		Profile:   Profile{AgeTier: knowledge.MiddleSchool, Goals: []gate.Goal{gate.GoalIndependence}, Subject: "science"},
		StartedAt: t0,
	})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
}

func selection(session string, seq int, label quadvec.Label) SelectionRecord {
	return SelectionRecord{
		ID:        session + "-sel-" + string(rune('a'+seq)),
		SessionID: session,
		Seq:       seq,
		Event: event.Record{
			Kind:    event.KindPointer,
			At:      t0.Add(time.Duration(seq) * time.Second),
			Pointer: event.Pointer{X: 0.5, Y: 0.5, DwellMs: 4000},
		},
		Vector:      quadvec.New(0.8, 0, 0, 0.6),
		Label:       label,
		Tier:        orchestrator.TierProximity,
		Triggers:    []string{orchestrator.TriggerNearestAnchor},
		Message:     "Where else could you use this?",
		Similarity:  0.4,
		Engagement:  0.35,
		Frustration: 0.1,
		CreatedAt:   t0.Add(time.Duration(seq) * time.Second),
	}
}

// #region session-tests

func TestStartAndGetSession(t *testing.T) {
	s := tempDB(t)
	startSession(t, s, "s1")

	rec, err := s.GetSession(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if rec.Profile.AgeTier != knowledge.MiddleSchool || rec.Profile.Subject != "science" {
		t.Fatalf("profile not preserved: %+v", rec.Profile)
	}
	if !rec.StartedAt.Equal(t0) || !rec.EndedAt.IsZero() {
		t.Fatalf("unexpected times: %+v", rec)
	}

	_, err = s.GetSession(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStartSessionDuplicate(t *testing.T) {
	s := tempDB(t)
	startSession(t, s, "s1")
	err := s.StartSession(context.Background(), SessionRecord{ID: "s1", StartedAt: t0})
	if err == nil {
		t.Fatal("expected primary key violation")
	}
}

func TestListSessions(t *testing.T) {
	s := tempDB(t)
	for i, id := range []string{"a", "b", "c"} {
		err := s.StartSession(context.Background(), SessionRecord{ID: id, StartedAt: t0.Add(time.Duration(i) * time.Minute)})
		if err != nil {
			t.Fatal(err)
		}
	}
	list, err := s.ListSessions(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list) != 2 || list[0].ID != "c" || list[1].ID != "b" {
		t.Fatalf("expected newest first, got %+v", list)
	}
}

// #endregion session-tests

// #region selection-tests

func TestRecordSelectionAndComplete(t *testing.T) {
	s := tempDB(t)
	startSession(t, s, "s1")
	ctx := context.Background()

	first := selection("s1", 0, quadvec.Extend)
	if err := s.RecordSelection(ctx, first); err != nil {
		t.Fatalf("RecordSelection: %v", err)
	}

	second := selection("s1", 1, quadvec.Review)
	second.Completes = &Outcome{SelectionID: first.ID, Success: true, Engagement: 0.6}
	second.Degraded = true
	second.VetoedTiers = []orchestrator.Tier{orchestrator.TierExplicitTrigger}
	second.Vetoes = []string{"safety.direct_answer"}
	if err := s.RecordSelection(ctx, second); err != nil {
		t.Fatalf("RecordSelection: %v", err)
	}

	rows, err := s.ListSelections(ctx, "s1")
	if err != nil {
		t.Fatalf("ListSelections: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if !rows[0].Completed || !rows[0].Success || rows[0].Outcome != 0.6 {
		t.Fatalf("first selection not completed: %+v", rows[0])
	}
	if rows[1].Completed || !rows[1].Degraded {
		t.Fatalf("unexpected second row: %+v", rows[1])
	}
	if rows[0].Event.Pointer.DwellMs != 4000 || rows[0].Vector.Expand != 0.8 {
		t.Fatalf("event or vector not preserved: %+v", rows[0])
	}
	if rows[0].Tier != orchestrator.TierProximity || rows[0].Triggers[0] != orchestrator.TriggerNearestAnchor {
		t.Fatalf("rationale not preserved: %+v", rows[0])
	}

	var decision, reason string
	err = s.DB().QueryRow(`SELECT decision, reason FROM provenance_log WHERE selection_id = ?`, second.ID).Scan(&decision, &reason)
	if err != nil {
		t.Fatalf("provenance: %v", err)
	}
	if decision != "degraded" || reason != "safety.direct_answer" {
		t.Fatalf("unexpected provenance %q %q", decision, reason)
	}
}

func TestRecordSelectionUnknownSession(t *testing.T) {
	s := tempDB(t)
	if err := s.RecordSelection(context.Background(), selection("ghost", 0, quadvec.Review)); err == nil {
		t.Fatal("expected foreign key violation")
	}
}

func TestRecordSelectionCancelledCommitsNothing(t *testing.T) {
	s := tempDB(t)
	startSession(t, s, "s1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.RecordSelection(ctx, selection("s1", 0, quadvec.Review)); err == nil {
		t.Fatal("expected error on cancelled context")
	}

	rows, err := s.ListSelections(context.Background(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Fatalf("cancelled write must not persist, got %d rows", len(rows))
	}
}

func TestRecordSelectionForcedProvenance(t *testing.T) {
	s := tempDB(t)
	startSession(t, s, "s1")
	rec := selection("s1", 0, quadvec.Review)
	rec.Tier = orchestrator.TierEscapeForced
	rec.Degraded = true
	if err := s.RecordSelection(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	var decision, tier string
	s.DB().QueryRow(`SELECT decision, tier FROM provenance_log`).Scan(&decision, &tier)
	if decision != "forced" || tier != "escape_forced" {
		t.Fatalf("unexpected provenance %q %q", decision, tier)
	}
}

// #endregion selection-tests

// #region summary-tests

func TestEndSessionAndSummary(t *testing.T) {
	s := tempDB(t)
	startSession(t, s, "s1")
	ctx := context.Background()

	sum := Summary{
		SessionID:       "s1",
		Events:          2,
		LabelCounts:     map[quadvec.Label]int{quadvec.Review: 2},
		TierCounts:      map[string]int{"proximity": 2},
		AvgFrustration:  0.2,
		RecognitionRate: 0.5,
		StartedAt:       t0,
		EndedAt:         t0.Add(time.Minute),
	}
	if err := s.EndSession(ctx, sum); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	got, err := s.GetSummary(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if got.LabelCounts[quadvec.Review] != 2 || got.RecognitionRate != 0.5 {
		t.Fatalf("summary not preserved: %+v", got)
	}

	rec, _ := s.GetSession(ctx, "s1")
	if !rec.EndedAt.Equal(sum.EndedAt) {
		t.Fatalf("expected ended_at %v, got %v", sum.EndedAt, rec.EndedAt)
	}

	if _, err := s.GetSummary(ctx, "other"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.EndSession(ctx, Summary{SessionID: "other", EndedAt: t0}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown session, got %v", err)
	}
}

// #endregion summary-tests

// #region store-errors

func TestNewStoreInvalidPath(t *testing.T) {
	_, err := NewStore("/nonexistent/dir/test.db")
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestNewStore_CorruptDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.db")
	if err := os.WriteFile(path, []byte("this is not a sqlite database at all, just garbage bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStore(path); err == nil {
		t.Fatal("expected error for corrupt db")
	}
}

func TestClosedStore(t *testing.T) {
	s := tempDB(t)
	s.Close()
	ctx := context.Background()
	if err := s.StartSession(ctx, SessionRecord{ID: "x", StartedAt: t0}); err == nil {
		t.Fatal("expected error on closed db")
	}
	if _, err := s.ListSessions(ctx, 10); err == nil {
		t.Fatal("expected error on closed db")
	}
	if _, err := s.ListSelections(ctx, "x"); err == nil {
		t.Fatal("expected error on closed db")
	}
}

// #endregion store-errors
