package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ixtech/aniota/lic-controller/internal/gate"
	"github.com/ixtech/aniota/lic-controller/internal/logging"
	"github.com/ixtech/aniota/lic-controller/internal/orchestrator"
	"github.com/ixtech/aniota/lic-controller/internal/session"
	"github.com/ixtech/aniota/lic-controller/internal/signals"
	"github.com/ixtech/aniota/lic-controller/internal/truth"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// #region types

// Config is the controller configuration file.
type Config struct {
	Core        CoreConfig                `yaml:"core"`
	Frustration signals.FrustrationConfig `yaml:"frustration"`
	Store       StoreConfig               `yaml:"store"`
	Oracle      OracleConfig              `yaml:"oracle"`
	Knowledge   KnowledgeConfig           `yaml:"knowledge"`
	Logging     logging.Config            `yaml:"logging"`
}

// CoreConfig holds the thresholds of the selection pipeline.
type CoreConfig struct {
	RecognitionThreshold float64       `yaml:"recognition_threshold"`
	FrustrationThreshold float64       `yaml:"frustration_threshold"`
	ConsecutiveLabelCap  int           `yaml:"consecutive_label_cap"`
	TruthDirectPenalty   int           `yaml:"truth_direct_contradiction_penalty"`
	TruthCategoryPenalty int           `yaml:"truth_category_penalty"`
	RecentWindow         int           `yaml:"recent_window"`
	HandleTimeout        time.Duration `yaml:"handle_timeout"` // 0 disables
	Seed                 uint64        `yaml:"seed"`           // 0 seeds each session randomly
}

// StoreConfig locates the sqlite database. An empty path keeps sessions in memory.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// OracleConfig locates the external model oracle. An empty address answers
// every question offline.
type OracleConfig struct {
	Addr    string        `yaml:"addr"`
	Timeout time.Duration `yaml:"timeout"`
}

// KnowledgeConfig selects the knowledge table. An empty path uses the
// embedded default table.
type KnowledgeConfig struct {
	Path string `yaml:"path"`
}

// #endregion types

// #region defaults

// Default returns the built-in configuration.
func Default() *Config {
	sel := orchestrator.DefaultSelectorConfig()
	g := gate.DefaultGateConfig()
	tr := truth.DefaultConfig()
	sc := session.DefaultConfig()
	return &Config{
		Core: CoreConfig{
			RecognitionThreshold: sc.Session.RecognitionThreshold,
			FrustrationThreshold: sel.FrustrationThreshold,
			ConsecutiveLabelCap:  g.ConsecutiveLabelCap,
			TruthDirectPenalty:   tr.DirectPenalty,
			TruthCategoryPenalty: tr.CategoryPenalty,
			RecentWindow:         sc.Session.RecentWindow,
		},
		Frustration: signals.DefaultFrustrationConfig(),
		Store:       StoreConfig{Path: "lic.db"},
		Oracle:      OracleConfig{Timeout: sc.OracleTimeout},
		Logging:     logging.Config{Level: "info"},
	}
}

// #endregion defaults

// #region load

// Load reads a YAML file over the defaults, applies environment overrides,
// and validates the result. A missing file or empty path yields defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LIC_DB"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("LIC_ORACLE_ADDR"); v != "" {
		c.Oracle.Addr = v
	}
	if v := os.Getenv("LIC_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LIC_KNOWLEDGE"); v != "" {
		c.Knowledge.Path = v
	}
}

// #endregion load

// #region validate

// Validate checks ranges.
func (c *Config) Validate() error {
	core := c.Core
	switch {
	case core.RecognitionThreshold <= 0 || core.RecognitionThreshold > 1:
		return fmt.Errorf("%w: recognition_threshold %v not in (0,1]", ErrInvalidConfig, core.RecognitionThreshold)
	case core.FrustrationThreshold <= 0 || core.FrustrationThreshold > 1:
		return fmt.Errorf("%w: frustration_threshold %v not in (0,1]", ErrInvalidConfig, core.FrustrationThreshold)
	case core.ConsecutiveLabelCap < 1:
		return fmt.Errorf("%w: consecutive_label_cap must be at least 1", ErrInvalidConfig)
	case core.TruthDirectPenalty < 0 || core.TruthCategoryPenalty < 0:
		return fmt.Errorf("%w: truth penalties must not be negative", ErrInvalidConfig)
	case core.RecentWindow < 1:
		return fmt.Errorf("%w: recent_window must be at least 1", ErrInvalidConfig)
	case core.HandleTimeout < 0:
		return fmt.Errorf("%w: handle_timeout must not be negative", ErrInvalidConfig)
	}

	f := c.Frustration
	for name, v := range map[string]float64{
		"rise": f.Rise, "relief": f.Relief, "decay": f.Decay,
		"correction_rise": f.CorrectionRise, "jitter_weight": f.JitterWeight, "low_similarity": f.LowSimilarity,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: frustration.%s %v not in [0,1]", ErrInvalidConfig, name, v)
		}
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// #endregion validate

// #region converters

// SelectorConfig returns the cascade thresholds.
func (c *Config) SelectorConfig() orchestrator.SelectorConfig {
	sel := orchestrator.DefaultSelectorConfig()
	sel.FrustrationThreshold = c.Core.FrustrationThreshold
	return sel
}

// GateConfig returns the validator thresholds.
func (c *Config) GateConfig() gate.GateConfig {
	g := gate.DefaultGateConfig()
	g.ConsecutiveLabelCap = c.Core.ConsecutiveLabelCap
	return g
}

// TruthConfig returns the scorer parameters.
func (c *Config) TruthConfig() truth.Config {
	tr := truth.DefaultConfig()
	tr.DirectPenalty = c.Core.TruthDirectPenalty
	tr.CategoryPenalty = c.Core.TruthCategoryPenalty
	return tr
}

// SessionConfig returns the controller settings.
func (c *Config) SessionConfig() session.Config {
	return session.Config{
		Session: session.SessionConfig{
			RecognitionThreshold: c.Core.RecognitionThreshold,
			RecentWindow:         c.Core.RecentWindow,
			Seed:                 c.Core.Seed,
		},
		HandleTimeout: c.Core.HandleTimeout,
		OracleTimeout: c.Oracle.Timeout,
	}
}

// #endregion converters
