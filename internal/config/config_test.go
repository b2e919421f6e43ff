package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"LIC_DB", "LIC_ORACLE_ADDR", "LIC_LOG_LEVEL", "LIC_KNOWLEDGE"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lic.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.yaml")} {
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 0.75, cfg.Core.RecognitionThreshold)
		assert.Equal(t, 0.7, cfg.Core.FrustrationThreshold)
		assert.Equal(t, 3, cfg.Core.ConsecutiveLabelCap)
		assert.Equal(t, 60, cfg.Core.TruthDirectPenalty)
		assert.Equal(t, 20, cfg.Core.TruthCategoryPenalty)
		assert.Equal(t, "lic.db", cfg.Store.Path)
		assert.Empty(t, cfg.Oracle.Addr)
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
core:
  recognition_threshold: 0.8
  consecutive_label_cap: 4
  handle_timeout: 250ms
  seed: 42
frustration:
  rise: 0.2
oracle:
  addr: localhost:50051
  timeout: 2s
logging:
  level: debug
  json: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.8, cfg.Core.RecognitionThreshold)
	assert.Equal(t, 0.7, cfg.Core.FrustrationThreshold, "unset keys keep defaults")
	assert.Equal(t, 250*time.Millisecond, cfg.Core.HandleTimeout)
	assert.Equal(t, 0.2, cfg.Frustration.Rise)
	assert.Equal(t, 0.1, cfg.Frustration.Relief)
	assert.Equal(t, "localhost:50051", cfg.Oracle.Addr)
	assert.True(t, cfg.Logging.JSON)

	sc := cfg.SessionConfig()
	assert.Equal(t, uint64(42), sc.Session.Seed)
	assert.Equal(t, 250*time.Millisecond, sc.HandleTimeout)
	assert.Equal(t, 2*time.Second, sc.OracleTimeout)
	assert.Equal(t, 4, cfg.GateConfig().ConsecutiveLabelCap)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LIC_DB", "/tmp/other.db")
	t.Setenv("LIC_ORACLE_ADDR", "oracle:9000")
	t.Setenv("LIC_LOG_LEVEL", "warn")
	t.Setenv("LIC_KNOWLEDGE", "/etc/lic/knowledge.yaml")

	cfg, err := Load(writeConfig(t, "store:\n  path: file.db\n"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", cfg.Store.Path)
	assert.Equal(t, "oracle:9000", cfg.Oracle.Addr)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "/etc/lic/knowledge.yaml", cfg.Knowledge.Path)
}

func TestLoadInvalid(t *testing.T) {
	clearEnv(t)
	cases := map[string]string{
		"threshold above one": "core:\n  recognition_threshold: 1.5\n",
		"zero cap":            "core:\n  consecutive_label_cap: 0\n",
		"negative penalty":    "core:\n  truth_category_penalty: -5\n",
		"frustration weight":  "frustration:\n  decay: 2\n",
		"log level":           "logging:\n  level: loud\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, "core: [unclosed"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}

func TestTruthAndSelectorConfig(t *testing.T) {
	cfg := Default()
	cfg.Core.TruthDirectPenalty = 50
	cfg.Core.FrustrationThreshold = 0.6
	assert.Equal(t, 50, cfg.TruthConfig().DirectPenalty)
	assert.Equal(t, 3, cfg.TruthConfig().TopK)
	assert.Equal(t, 0.6, cfg.SelectorConfig().FrustrationThreshold)
	assert.Equal(t, 3, cfg.SelectorConfig().PasteBurst)
}
