package signals

import (
	"github.com/ixtech/aniota/lic-controller/internal/event"
	"github.com/ixtech/aniota/lic-controller/internal/pattern"
	"github.com/ixtech/aniota/lic-controller/internal/quadvec"
)

// #region config

// FrustrationConfig holds the frustration update rule. Per event:
//
//	recognized                              f -= Relief
//	low similarity and engagement < base    f += Rise
//	otherwise                               f *= 1 - Decay
//
// then a key correction adds CorrectionRise and pointer jitter adds
// JitterWeight * jitter. f stays in [0,1].
type FrustrationConfig struct {
	Rise           float64 `yaml:"rise"`
	Relief         float64 `yaml:"relief"`
	Decay          float64 `yaml:"decay"`
	CorrectionRise float64 `yaml:"correction_rise"`
	JitterWeight   float64 `yaml:"jitter_weight"`
	LowSimilarity  float64 `yaml:"low_similarity"` // similarity below this counts as low
}

// DefaultFrustrationConfig returns the default rule weights.
func DefaultFrustrationConfig() FrustrationConfig {
	return FrustrationConfig{
		Rise:           0.15,
		Relief:         0.1,
		Decay:          0.05,
		CorrectionRise: 0.05,
		JitterWeight:   0.1,
		LowSimilarity:  0.5,
	}
}

// #endregion config

// #region input

// Observation is one event as the signal producer sees it.
type Observation struct {
	Record   event.Record
	Vector   quadvec.QuadVector
	Pattern  pattern.Report
	Baseline Baseline
	Jitter   JitterWindow
}

// Signals are the per-event measurements derived from an Observation.
type Signals struct {
	Engagement    float64
	Jitter        float64 // advisory micro-motion score in [0,1]
	LowSimilarity bool
	LowEngagement bool
}

// #endregion input
