package pattern

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/ixtech/aniota/lic-controller/internal/quadvec"
)

func fixedClock() func() time.Time {
	t := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestIngestStoresThenRecognizes(t *testing.T) {
	m := NewMemory(0).WithClock(fixedClock())
	v := quadvec.New(0.8, 0, 0, 0.6)

	first := m.Ingest(v)
	if first.Recognized {
		t.Fatal("empty memory should not recognize")
	}
	if m.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", m.Len())
	}

	second := m.Ingest(quadvec.New(0.75, 0.05, 0, 0.6))
	if !second.Recognized {
		t.Fatalf("expected recognition, similarity=%f", second.Similarity)
	}
	if second.MatchedID != m.Entries()[0].ID {
		t.Fatalf("expected match on first entry")
	}
	if m.Len() != 1 {
		t.Fatalf("recognition must not store, got %d entries", m.Len())
	}
	e := m.Entries()[0]
	if e.Hits != 1 {
		t.Fatalf("expected 1 hit, got %d", e.Hits)
	}
	if !e.LastSeen.After(e.CreatedAt) {
		t.Fatal("expected last_seen to advance")
	}
}

func TestDissimilarVectorCreatesEntry(t *testing.T) {
	m := NewMemory(0.95)
	m.Ingest(quadvec.New(1, 0, 0, 0))
	r := m.Ingest(quadvec.New(0, 1, 0, 0))
	if r.Recognized {
		t.Fatal("orthogonal vectors should not be recognized at 0.95")
	}
	if math.Abs(r.Similarity-0.5) > 1e-9 {
		t.Fatalf("orthogonal similarity should be 0.5, got %f", r.Similarity)
	}
	if m.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", m.Len())
	}
}

func TestZeroVectorNeverStored(t *testing.T) {
	m := NewMemory(0)
	r := m.Ingest(quadvec.New(0, 0, 0, 0))
	if r.Recognized || r.Similarity != 0 {
		t.Fatalf("unexpected report for zero vector: %+v", r)
	}
	if m.Len() != 0 {
		t.Fatalf("zero vector stored")
	}
	if m.Ingested() != 1 {
		t.Fatalf("expected ingest count 1, got %d", m.Ingested())
	}
}

func TestMatchDoesNotMutate(t *testing.T) {
	m := NewMemory(0)
	m.Ingest(quadvec.New(1, 0, 0, 0))
	before := m.Stats()
	r := m.Match(quadvec.New(1, 0, 0, 0))
	if !r.Recognized {
		t.Fatal("expected match")
	}
	if m.Entries()[0].Hits != 0 {
		t.Fatal("match bumped hits")
	}
	after := m.Stats()
	if before[quadvec.Expand] != after[quadvec.Expand] {
		t.Fatal("match changed stats")
	}
}

func TestStatsRunningMean(t *testing.T) {
	m := NewMemory(0)
	m.Ingest(quadvec.New(0.2, 0, 0, 0))
	m.Ingest(quadvec.New(0.6, 0, 0, 0))
	m.Ingest(quadvec.New(0, 0.5, 0, 0))
	s := m.Stats()
	if s[quadvec.Expand].Count != 2 || math.Abs(s[quadvec.Expand].Mean-0.4) > 1e-9 {
		t.Fatalf("unexpected expand stat: %+v", s[quadvec.Expand])
	}
	if s[quadvec.Explore].Count != 1 {
		t.Fatalf("unexpected explore stat: %+v", s[quadvec.Explore])
	}
	if s[quadvec.Review].Count != 0 {
		t.Fatalf("review should be untouched: %+v", s[quadvec.Review])
	}
}

func TestPrune(t *testing.T) {
	m := NewMemory(0.99)
	m.Ingest(quadvec.New(1, 0, 0, 0))
	m.Ingest(quadvec.New(0, 1, 0, 0))
	m.Ingest(quadvec.New(0, 0, 1, 0))
	removed := m.Prune(func(e Entry) bool { return e.Vector.Explore > 0 })
	if removed != 1 || m.Len() != 2 {
		t.Fatalf("expected 1 removed / 2 left, got %d / %d", removed, m.Len())
	}
}

func TestSimilarityProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 1000; i++ {
		a := quadvec.New(rng.Float64(), rng.Float64(), rng.Float64(), rng.Float64())
		b := quadvec.New(rng.Float64(), rng.Float64(), rng.Float64(), rng.Float64())
		ab, ba := Similarity(a, b), Similarity(b, a)
		if ab != ba {
			t.Fatalf("not symmetric: %f vs %f", ab, ba)
		}
		if ab < 0 || ab > 1 {
			t.Fatalf("out of range: %f", ab)
		}
		if !a.IsZero() && math.Abs(Similarity(a, a)-1) > 1e-9 {
			t.Fatalf("self similarity %f", Similarity(a, a))
		}
	}
}
