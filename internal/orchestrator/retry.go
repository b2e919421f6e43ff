package orchestrator

import "github.com/ixtech/aniota/lic-controller/internal/quadvec"

// #region escalation

// escalation tracks which tiers produced vetoed candidates for the current
// event. A vetoed tier is never revisited.
type escalation struct {
	vetoed       []Tier
	vetoedLabels map[quadvec.Label]bool
}

func newEscalation() *escalation {
	return &escalation{vetoedLabels: make(map[quadvec.Label]bool, 4)}
}

// veto records that tier proposed label and the validator rejected it.
func (e *escalation) veto(tier Tier, label quadvec.Label) {
	e.vetoed = append(e.vetoed, tier)
	e.vetoedLabels[label] = true
}

// degraded reports whether any higher tier was rejected.
func (e *escalation) degraded() bool {
	return len(e.vetoed) > 0
}

// tiers returns a copy of the vetoed tiers in the order they failed.
func (e *escalation) tiers() []Tier {
	return append([]Tier(nil), e.vetoed...)
}

// #endregion
