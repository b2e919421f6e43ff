package signals

import (
	"math"

	"github.com/ixtech/aniota/lic-controller/internal/event"
	"github.com/ixtech/aniota/lic-controller/internal/quadvec"
)

// #region producer

// Producer computes heuristic learner signals. It is stateless; all history
// arrives in the Observation so callers can stage updates.
type Producer struct {
	config FrustrationConfig
}

// NewProducer creates a Producer.
func NewProducer(config FrustrationConfig) *Producer {
	return &Producer{config: config}
}

// Config returns the active rule weights.
func (p *Producer) Config() FrustrationConfig {
	return p.config
}

// #endregion producer

// #region produce

// Produce computes all signals for one event.
func (p *Producer) Produce(obs Observation) Signals {
	engagement := Engagement(obs.Vector)
	return Signals{
		Engagement:    engagement,
		Jitter:        obs.Jitter.Add(obs.Record).Score(),
		LowSimilarity: !obs.Pattern.Recognized && obs.Pattern.Similarity < p.config.LowSimilarity,
		LowEngagement: obs.Baseline.N > 0 && engagement < obs.Baseline.Mean,
	}
}

// #endregion produce

// #region frustration

// NextFrustration applies the update rule documented on FrustrationConfig.
func (p *Producer) NextFrustration(current float64, obs Observation, s Signals) float64 {
	f := current
	switch {
	case obs.Pattern.Recognized:
		f -= p.config.Relief
	case s.LowSimilarity && s.LowEngagement:
		f += p.config.Rise
	default:
		f *= 1 - p.config.Decay
	}
	if obs.Record.Kind == event.KindKey && obs.Record.Key.HadCorrection {
		f += p.config.CorrectionRise
	}
	f += p.config.JitterWeight * s.Jitter
	return clamp(f)
}

// #endregion frustration

// #region engagement

// Engagement is the mean strength of an event's four components.
func Engagement(v quadvec.QuadVector) float64 {
	c := v.Components()
	return clamp((c[0] + c[1] + c[2] + c[3]) / 4)
}

// Baseline is a running mean of engagement. Value type; Add returns a copy.
type Baseline struct {
	Mean float64 `json:"mean"`
	N    int     `json:"n"`
}

// Add folds one more engagement sample into the mean.
func (b Baseline) Add(x float64) Baseline {
	n := b.N + 1
	return Baseline{Mean: b.Mean + (x-b.Mean)/float64(n), N: n}
}

// #endregion engagement

// #region jitter

const (
	jitterWindow   = 8
	jitterRadius   = 0.01 // max displacement that still counts as a micro-motion
	jitterMinSpeed = 0.5
)

// JitterWindow keeps the last few pointer samples. It is an advisory signal
// about unsteady pointer control and feeds frustration only.
type JitterWindow struct {
	Samples []event.Pointer `json:"samples"`
}

// Add returns a copy of w with rec appended if it is a pointer event.
func (w JitterWindow) Add(rec event.Record) JitterWindow {
	if rec.Kind != event.KindPointer {
		return w
	}
	samples := make([]event.Pointer, 0, jitterWindow)
	start := 0
	if len(w.Samples) >= jitterWindow {
		start = len(w.Samples) - jitterWindow + 1
	}
	samples = append(samples, w.Samples[start:]...)
	samples = append(samples, rec.Pointer)
	return JitterWindow{Samples: samples}
}

// Score is the share of consecutive sample pairs that moved, but only by a
// tiny amount. 0 with fewer than two samples.
func (w JitterWindow) Score() float64 {
	if len(w.Samples) < 2 {
		return 0
	}
	micro := 0
	for i := 1; i < len(w.Samples); i++ {
		a, b := w.Samples[i-1], w.Samples[i]
		d := math.Hypot(b.X-a.X, b.Y-a.Y)
		if d > 0 && d <= jitterRadius && b.Velocity >= jitterMinSpeed {
			micro++
		}
	}
	return float64(micro) / float64(len(w.Samples)-1)
}

// #endregion jitter

// #region helpers

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
