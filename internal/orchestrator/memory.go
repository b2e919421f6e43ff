package orchestrator

import (
	"github.com/ixtech/aniota/lic-controller/internal/quadvec"
)

// #region memory-struct

// LabelTally counts completed selections of one label.
type LabelTally struct {
	Attempts  int `json:"attempts"`
	Successes int `json:"successes"`
}

// Rate is the success ratio, 0 without attempts.
func (t LabelTally) Rate() float64 {
	if t.Attempts == 0 {
		return 0
	}
	return float64(t.Successes) / float64(t.Attempts)
}

// SuccessMemory tracks per-label outcomes within one session. It is a value
// type; Record returns an updated copy so staged state stays untouched.
type SuccessMemory struct {
	Tallies map[quadvec.Label]LabelTally `json:"tallies"`
}

// #endregion

// #region record-outcome

// Record returns a copy of m with one more completed selection of label.
func (m SuccessMemory) Record(label quadvec.Label, success bool) SuccessMemory {
	next := SuccessMemory{Tallies: make(map[quadvec.Label]LabelTally, len(m.Tallies)+1)}
	for l, t := range m.Tallies {
		next.Tallies[l] = t
	}
	t := next.Tallies[label]
	t.Attempts++
	if success {
		t.Successes++
	}
	next.Tallies[label] = t
	return next
}

// Completed is the number of selections with a known outcome.
func (m SuccessMemory) Completed() int {
	n := 0
	for _, t := range m.Tallies {
		n += t.Attempts
	}
	return n
}

// #endregion

// #region best-label

// BestLabel returns the label with the highest success rate among those
// tried. Returns ("", 0, false) when fewer than minCompleted selections have
// finished or nothing has succeeded. Ties go to canonical label order.
func (m SuccessMemory) BestLabel(minCompleted int) (quadvec.Label, float64, bool) {
	if m.Completed() < minCompleted {
		return "", 0, false
	}
	var best quadvec.Label
	bestRate := 0.0
	for _, l := range quadvec.Labels() {
		t, ok := m.Tallies[l]
		if !ok || t.Attempts == 0 {
			continue
		}
		if r := t.Rate(); r > bestRate {
			best, bestRate = l, r
		}
	}
	if best == "" {
		return "", 0, false
	}
	return best, bestRate, true
}

// #endregion
