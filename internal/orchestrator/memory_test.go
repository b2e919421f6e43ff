package orchestrator

import (
	"testing"

	"github.com/ixtech/aniota/lic-controller/internal/quadvec"
)

func TestSuccessMemory_RecordIsCopy(t *testing.T) {
	var m SuccessMemory
	next := m.Record(quadvec.Review, true)

	if m.Completed() != 0 {
		t.Fatalf("original mutated: %+v", m)
	}
	if next.Completed() != 1 || next.Tallies[quadvec.Review].Successes != 1 {
		t.Fatalf("unexpected tally: %+v", next)
	}

	again := next.Record(quadvec.Review, false)
	if next.Tallies[quadvec.Review].Attempts != 1 {
		t.Fatal("second record mutated its input")
	}
	if got := again.Tallies[quadvec.Review].Rate(); got != 0.5 {
		t.Fatalf("expected rate 0.5, got %f", got)
	}
}

func TestSuccessMemory_BestLabel(t *testing.T) {
	var m SuccessMemory
	for i := 0; i < 2; i++ {
		m = m.Record(quadvec.Explore, true)
	}
	m = m.Record(quadvec.Expand, true)
	m = m.Record(quadvec.Expand, false)

	if _, _, ok := m.BestLabel(5); ok {
		t.Fatal("expected no answer below 5 completed selections")
	}

	m = m.Record(quadvec.Review, false)
	l, rate, ok := m.BestLabel(5)
	if !ok || l != quadvec.Explore || rate != 1 {
		t.Fatalf("expected Explore at 1.0, got %s %f %v", l, rate, ok)
	}
}

func TestSuccessMemory_TiesAndNoSuccess(t *testing.T) {
	var m SuccessMemory
	for _, l := range []quadvec.Label{quadvec.Review, quadvec.Extend, quadvec.Review, quadvec.Extend, quadvec.Explore} {
		m = m.Record(l, false)
	}
	if _, _, ok := m.BestLabel(5); ok {
		t.Fatal("no successes should yield no label")
	}

	m = SuccessMemory{}
	for _, l := range []quadvec.Label{quadvec.Review, quadvec.Extend, quadvec.Review, quadvec.Extend} {
		m = m.Record(l, true)
	}
	m = m.Record(quadvec.Explore, false)
	if l, _, _ := m.BestLabel(5); l != quadvec.Extend {
		t.Fatalf("tie should go to canonical order (Extend before Review), got %s", l)
	}
}
