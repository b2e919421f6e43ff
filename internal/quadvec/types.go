package quadvec

import (
	"fmt"
	"math"
	"strings"
)

// #region label

// Label is one of the four learning actions.
type Label string

const (
	Expand  Label = "Expand"
	Explore Label = "Explore"
	Extend  Label = "Extend"
	Review  Label = "Review"
)

// Labels returns the four labels in canonical order.
func Labels() []Label {
	return []Label{Expand, Explore, Extend, Review}
}

// Valid reports whether l is one of the four labels.
func (l Label) Valid() bool {
	switch l {
	case Expand, Explore, Extend, Review:
		return true
	}
	return false
}

// ParseLabel accepts any casing of a label name.
func ParseLabel(s string) (Label, error) {
	for _, l := range Labels() {
		if strings.EqualFold(s, string(l)) {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown label %q", s)
}

// #endregion label

// #region point

// Point is a (relatedness, difficulty) coordinate.
type Point struct {
	Relatedness float64 `json:"relatedness"`
	Difficulty  float64 `json:"difficulty"`
}

// Distance is the Euclidean distance between two points.
func (p Point) Distance(q Point) float64 {
	dr := p.Relatedness - q.Relatedness
	dd := p.Difficulty - q.Difficulty
	return math.Sqrt(dr*dr + dd*dd)
}

// anchors are indexed by label. Relatedness first, difficulty second.
var anchors = map[Label]Point{
	Expand:  {Relatedness: 0.75, Difficulty: 0.75},
	Explore: {Relatedness: 0.25, Difficulty: 0.75},
	Extend:  {Relatedness: 0.75, Difficulty: 0.25},
	Review:  {Relatedness: 0.25, Difficulty: 0.25},
}

// Anchor returns the canonical coordinate of a label.
func Anchor(l Label) Point {
	return anchors[l]
}

// #endregion point

// #region quad-vector

// QuadVector is the pedagogical signature of one learner event.
// Components and coordinates lie in [0,1].
type QuadVector struct {
	Expand      float64 `json:"expand"`
	Explore     float64 `json:"explore"`
	Extend      float64 `json:"extend"`
	Review      float64 `json:"review"`
	Relatedness float64 `json:"relatedness"`
	Difficulty  float64 `json:"difficulty"`
}

// New builds a QuadVector and derives its coordinates from the components.
func New(expand, explore, extend, review float64) QuadVector {
	v := QuadVector{
		Expand:  clamp(expand),
		Explore: clamp(explore),
		Extend:  clamp(extend),
		Review:  clamp(review),
	}
	v.Relatedness = clamp((v.Expand + v.Review) / 2)
	v.Difficulty = clamp((v.Expand + v.Extend) / 2)
	return v
}

// NewWithCoordinates builds a QuadVector whose coordinates are authoritative.
func NewWithCoordinates(expand, explore, extend, review float64, at Point) QuadVector {
	v := New(expand, explore, extend, review)
	v.Relatedness = clamp(at.Relatedness)
	v.Difficulty = clamp(at.Difficulty)
	return v
}

// Components returns the 4-tuple in canonical label order.
func (v QuadVector) Components() [4]float64 {
	return [4]float64{v.Expand, v.Explore, v.Extend, v.Review}
}

// Point returns the (relatedness, difficulty) coordinate.
func (v QuadVector) Point() Point {
	return Point{Relatedness: v.Relatedness, Difficulty: v.Difficulty}
}

// Strength returns the component for a label.
func (v QuadVector) Strength(l Label) float64 {
	switch l {
	case Expand:
		return v.Expand
	case Explore:
		return v.Explore
	case Extend:
		return v.Extend
	case Review:
		return v.Review
	}
	return 0
}

// IsZero reports whether every component is zero.
func (v QuadVector) IsZero() bool {
	return v.Expand == 0 && v.Explore == 0 && v.Extend == 0 && v.Review == 0
}

// #endregion quad-vector

// #region nearest

const tieEpsilon = 1e-9

// Nearest returns the label whose anchor is closest to p and that distance.
// usage breaks exact ties in favour of the least used label; remaining ties
// fall back to canonical order. usage may be nil.
func Nearest(p Point, usage func(Label) int, allowed ...Label) (Label, float64) {
	candidates := allowed
	if len(candidates) == 0 {
		candidates = Labels()
	}
	var best Label
	bestDist := math.Inf(1)
	for _, l := range candidates {
		d := p.Distance(anchors[l])
		switch {
		case d < bestDist-tieEpsilon:
			best, bestDist = l, d
		case math.Abs(d-bestDist) <= tieEpsilon && usage != nil && usage(l) < usage(best):
			best, bestDist = l, d
		}
	}
	return best, bestDist
}

// #endregion nearest

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
