package session

import (
	"context"
	"errors"
	"time"

	"github.com/ixtech/aniota/lic-controller/internal/codec"
	"github.com/ixtech/aniota/lic-controller/internal/knowledge"
	"github.com/ixtech/aniota/lic-controller/internal/orchestrator"
	"github.com/ixtech/aniota/lic-controller/internal/quadvec"
	"github.com/ixtech/aniota/lic-controller/internal/signals"
	"github.com/ixtech/aniota/lic-controller/internal/state"
	"github.com/ixtech/aniota/lic-controller/internal/truth"
)

var (
	ErrUnknownSession = errors.New("unknown session")
	ErrSessionClosed  = errors.New("session closed")
	ErrInvalidProfile = errors.New("invalid learner profile")
)

// #region config

// SessionConfig tunes one session. Zero fields take the controller defaults.
type SessionConfig struct {
	RecognitionThreshold float64 `yaml:"recognition_threshold"`
	RecentWindow         int     `yaml:"recent_window"`
	Seed                 uint64  `yaml:"seed"` // 0 draws a fresh seed
}

// Config holds controller-wide settings.
type Config struct {
	Session       SessionConfig
	HandleTimeout time.Duration // 0 disables the per-event budget
	OracleTimeout time.Duration
}

// DefaultConfig returns the default controller settings.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RecognitionThreshold: 0.75,
			RecentWindow:         10,
		},
		OracleTimeout: 5 * time.Second,
	}
}

// #endregion config

// #region collaborators

// Recorder persists what the controller decides. *state.Store implements it.
// RecordSelection is where an in-flight event may be cancelled.
type Recorder interface {
	StartSession(ctx context.Context, rec state.SessionRecord) error
	RecordSelection(ctx context.Context, rec state.SelectionRecord) error
	EndSession(ctx context.Context, sum state.Summary) error
}

// Oracle answers free learner questions. *codec.OracleClient implements it.
type Oracle interface {
	Ask(ctx context.Context, q codec.Question) (codec.Answer, error)
}

// Deps are the shared components a controller wires together. Knowledge is
// required; everything else has a default or may be nil.
type Deps struct {
	Knowledge *knowledge.Base
	Scorer    *truth.Scorer
	Selector  *orchestrator.Selector
	Signals   *signals.Producer
	Recorder  Recorder
	Oracle    Oracle
	Now       func() time.Time
	NewID     func() string
}

// #endregion collaborators

// #region response

// Rationale explains why a label was chosen.
type Rationale struct {
	Tier        int        `json:"tier"`
	TierName    string     `json:"tier_name"`
	Triggers    []string   `json:"triggers"`
	Coordinate  [2]float64 `json:"chosen_coordinate"`
	Degraded    bool       `json:"degraded,omitempty"`
	VetoedTiers []string   `json:"vetoed_tiers,omitempty"`
	Warnings    []string   `json:"warnings,omitempty"`
	Similarity  float64    `json:"similarity"`
	Recognized  bool       `json:"recognized"`
	Frustration float64    `json:"frustration"`
}

// Response is what HandleEvent returns for one event.
type Response struct {
	SelectionID string        `json:"selection_id,omitempty"` // empty for timeouts
	Label       quadvec.Label `json:"label"`
	Message     string        `json:"message"`
	Rationale   Rationale     `json:"rationale"`
	FollowUp    bool          `json:"follow_up_required"`
}

// Answer is the reply to a free question.
type Answer struct {
	Text       string              `json:"text"`
	Source     string              `json:"source"` // "oracle" | "offline"
	Confidence float64             `json:"confidence"`
	Offline    *knowledge.Response `json:"-"`
}

// #endregion response
