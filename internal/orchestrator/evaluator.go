package orchestrator

import "github.com/ixtech/aniota/lic-controller/internal/quadvec"

// #region complete

// Complete closes the newest pending selection in recent with the
// engagement of the event that followed it. A selection succeeds when that
// engagement beats the baseline. The returned slice is a copy; ok is
// false when nothing was pending.
func Complete(recent []Recent, engagement, baseline float64) (out []Recent, done Recent, ok bool) {
	out = append([]Recent(nil), recent...)
	if len(out) == 0 || out[len(out)-1].Completed {
		return out, Recent{}, false
	}
	last := &out[len(out)-1]
	last.Completed = true
	last.Outcome = engagement
	last.Success = engagement > baseline
	return out, *last, true
}

// #endregion

// #region rising

// risingReview reports whether the last two selections were both Review and
// the engagement after the second beat the engagement after the first.
func risingReview(recent []Recent) bool {
	n := len(recent)
	if n < 2 {
		return false
	}
	a, b := recent[n-2], recent[n-1]
	if a.Label != quadvec.Review || b.Label != quadvec.Review {
		return false
	}
	if !a.Completed || !b.Completed {
		return false
	}
	return b.Outcome > a.Outcome
}

// #endregion
