package orchestrator

// #region imports
import (
	"errors"
	"time"

	"github.com/ixtech/aniota/lic-controller/internal/event"
	"github.com/ixtech/aniota/lic-controller/internal/gate"
	"github.com/ixtech/aniota/lic-controller/internal/knowledge"
	"github.com/ixtech/aniota/lic-controller/internal/pattern"
	"github.com/ixtech/aniota/lic-controller/internal/quadvec"
)

// #endregion

// ErrSelectorFailure means the cascade ended without a label. It indicates a
// broken validator and is never papered over with a substitute label.
var ErrSelectorFailure = errors.New("selector failure")

// #region tier

// Tier is a level of the selection cascade. Lower tiers are tried first.
type Tier int

const (
	TierExplicitTrigger   Tier = 1
	TierMomentum          Tier = 2
	TierProximity         Tier = 3
	TierHistoricalSuccess Tier = 4
	TierCommonSense       Tier = 5
	TierEscape            Tier = 6
	TierEscapeForced      Tier = 7
)

var tierNames = map[Tier]string{
	TierExplicitTrigger:   "explicit_trigger",
	TierMomentum:          "momentum",
	TierProximity:         "proximity",
	TierHistoricalSuccess: "historical_success",
	TierCommonSense:       "common_sense",
	TierEscape:            "escape",
	TierEscapeForced:      "escape_forced",
}

func (t Tier) String() string {
	if n, ok := tierNames[t]; ok {
		return n
	}
	return "unknown"
}

// IsEscape reports whether t is one of the emergency tiers.
func (t Tier) IsEscape() bool {
	return t == TierEscape || t == TierEscapeForced
}

// Tiers returns the cascade order. TierEscapeForced is not a step of its own.
func Tiers() []Tier {
	return []Tier{
		TierExplicitTrigger, TierMomentum, TierProximity,
		TierHistoricalSuccess, TierCommonSense, TierEscape,
	}
}

// #endregion

// #region triggers

// Trigger names a reason recorded in the selection rationale.
const (
	TriggerClipboardBurst = "clipboard_burst"
	TriggerRequest        = "learner_request"
	TriggerFrustration    = "frustration"
	TriggerReviewMomentum = "review_momentum"
	TriggerNearestAnchor  = "nearest_anchor"
	TriggerSuccessRate    = "success_rate"
	TriggerRecommendation = "rule_recommendation"
	TriggerEscape         = "escape"
	TriggerTimeout        = "timeout"
)

// #endregion

// #region recent

// Recent is one previous selection as the selector sees it. Outcome is the
// engagement of the event that followed it; Completed is false until then.
type Recent struct {
	Label     quadvec.Label
	Tier      Tier
	Completed bool
	Success   bool
	Outcome   float64
}

// #endregion

// #region input

// Input is everything the cascade needs for one event. It is a snapshot;
// the selector never mutates it.
type Input struct {
	Record  event.Record
	Vector  quadvec.QuadVector
	Pattern pattern.Report

	Goals          []gate.Goal
	AgeTier        knowledge.GradeLevel
	Subject        string
	SubjectCovered bool

	Recent       []Recent // oldest first, bounded window
	Frustration  float64
	PatternsSeen int
	Pastes       []time.Time // earlier external-origin pastes
	Success      SuccessMemory
}

// #endregion

// #region selection

// Selection is the selector's decision for one event.
type Selection struct {
	Label       quadvec.Label
	Tier        Tier
	Message     gate.Message
	Triggers    []string
	Coordinate  quadvec.Point
	FollowUp    bool
	Degraded    bool // a higher tier was vetoed
	VetoedTiers []Tier
	Report      gate.Report
}

// #endregion

// #region prompt

// Prompt tells a Renderer what to phrase.
type Prompt struct {
	Label    quadvec.Label
	Tier     Tier
	Triggers []string
	AgeTier  knowledge.GradeLevel
	Subject  string
}

// Renderer turns a label into the follow-up message shown to the learner.
type Renderer interface {
	Render(p Prompt) gate.Message
}

// #endregion
