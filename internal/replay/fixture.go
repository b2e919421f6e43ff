package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ixtech/aniota/lic-controller/internal/event"
	"github.com/ixtech/aniota/lic-controller/internal/state"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string                `json:"description"`
	Profile     state.Profile         `json:"profile"`
	Config      FixtureConfig         `json:"config"`
	Events      []event.RawEvent      `json:"events"`
	Expected    []FixtureExpectedStep `json:"expected"`
}

// FixtureConfig holds the knobs a fixture may pin. Zero fields keep the
// controller defaults; Seed is always applied so escapes replay the same.
type FixtureConfig struct {
	Seed                 uint64  `json:"seed"`
	RecognitionThreshold float64 `json:"recognition_threshold,omitempty"`
	FrustrationThreshold float64 `json:"frustration_threshold,omitempty"`
	ConsecutiveLabelCap  int     `json:"consecutive_label_cap,omitempty"`
	RecentWindow         int     `json:"recent_window,omitempty"`
}

// FixtureExpectedStep is the expected outcome of one event. Only the fields
// that are set are compared.
type FixtureExpectedStep struct {
	Seq      int    `json:"seq"`
	Label    string `json:"label,omitempty"`
	Tier     string `json:"tier,omitempty"`
	FollowUp *bool  `json:"follow_up,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if len(f.Events) == 0 {
		return nil, fmt.Errorf("fixture %s: no events", path)
	}
	return &f, nil
}

// LoadDir loads every *.json fixture in dir, sorted by file name.
func LoadDir(dir string) ([]*Fixture, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list fixtures %s: %w", dir, err)
	}
	sort.Strings(paths)
	out := make([]*Fixture, 0, len(paths))
	for _, p := range paths {
		f, err := LoadFixture(p)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// #endregion fixture-loader

// #region fixture-export

// FromSelections builds a fixture from a recorded session. Every recorded
// selection becomes an expected step so a replay detects any drift.
func FromSelections(rec state.SessionRecord, rows []state.SelectionRow, seed uint64) *Fixture {
	f := &Fixture{
		Description: fmt.Sprintf("exported from session %s", rec.ID),
		Profile:     rec.Profile,
		Config:      FixtureConfig{Seed: seed},
		Events:      make([]event.RawEvent, 0, len(rows)),
		Expected:    make([]FixtureExpectedStep, 0, len(rows)),
	}
	for i, row := range rows {
		f.Events = append(f.Events, event.ToRaw(row.Event))
		followUp := row.FollowUp
		f.Expected = append(f.Expected, FixtureExpectedStep{
			Seq:      i,
			Label:    string(row.Label),
			Tier:     row.Tier.String(),
			FollowUp: &followUp,
		})
	}
	return f
}

// Write saves f as indented JSON.
func (f *Fixture) Write(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// ToReplayConfig applies the fixture's overrides to the defaults.
func (fc FixtureConfig) ToReplayConfig() ReplayConfig {
	cfg := DefaultReplayConfig()
	cfg.Session.Session.Seed = fc.Seed
	if fc.RecognitionThreshold > 0 {
		cfg.Session.Session.RecognitionThreshold = fc.RecognitionThreshold
	}
	if fc.RecentWindow > 0 {
		cfg.Session.Session.RecentWindow = fc.RecentWindow
	}
	if fc.FrustrationThreshold > 0 {
		cfg.Selector.FrustrationThreshold = fc.FrustrationThreshold
	}
	if fc.ConsecutiveLabelCap > 0 {
		cfg.Gate.ConsecutiveLabelCap = fc.ConsecutiveLabelCap
	}
	return cfg
}

// #endregion fixture-export
