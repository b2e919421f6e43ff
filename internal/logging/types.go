package logging

import "time"

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table.
type ProvenanceEntry struct {
	SelectionID string
	SessionID   string
	Tier        string
	Label       string
	Decision    string // "approved" | "degraded" | "forced"
	Reason      string // first vetoing rule, if any
	Record      *DecisionRecord
	CreatedAt   time.Time
}

// #endregion provenance-entry

// #region decision-record
// DecisionRecord captures the selector inputs for a single event.
// Serialized as JSON into provenance_log.record_json for replay.
type DecisionRecord struct {
	Seq        int        `json:"seq"`
	Vector     [4]float64 `json:"vector"`
	Coordinate [2]float64 `json:"coordinate"`

	// Signals as evaluated at runtime
	Similarity  float64 `json:"similarity"`
	Recognized  bool    `json:"recognized"`
	Engagement  float64 `json:"engagement"`
	Frustration float64 `json:"frustration"`

	// Cascade output
	Triggers    []string `json:"triggers"`
	VetoedTiers []string `json:"vetoed_tiers,omitempty"`
	Vetoes      []string `json:"vetoes,omitempty"`
	FollowUp    bool     `json:"follow_up"`
}

// #endregion decision-record
