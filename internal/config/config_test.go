package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultServerLogLevel, cfg.Server.LogLevel)
	assert.Equal(t, DefaultModelDefault, cfg.Models.Default)
	assert.Equal(t, DefaultModelFallback, cfg.Models.Fallback)
	assert.Equal(t, DefaultRoutingStrategy, cfg.Routing.Strategy)
	assert.InDelta(t, DefaultRoutingMinConfidence, cfg.Routing.MinConfidence, 0.0001)
	assert.Equal(t, DefaultEngineHistoryLimit, cfg.Engine.HistoryLimit)
	assert.Equal(t, DefaultAggregatorSchedule, cfg.Aggregator.Schedule)
	assert.NotEmpty(t, cfg.Store.Path)
	require.Len(t, cfg.Models.Registry, 2)
	assert.Equal(t, "openai", cfg.Models.Registry[0].Provider)
	assert.Equal(t, DefaultASIOneBaseURL, cfg.Models.Registry[0].BaseURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TELLERLINE_SERVER_PORT", "9999")
	t.Setenv("TELLERLINE_BANK_NAME", "First National")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "First National", cfg.Bank.Name)
}

func TestLoad_GlobalConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".tellerline")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(
		"bank:\n  name: Harborview Credit Union\nrouting:\n  min_confidence: 0.5\n"), 0o644))

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "Harborview Credit Union", cfg.Bank.Name)
	assert.InDelta(t, 0.5, cfg.Routing.MinConfidence, 0.0001)
}

func TestLoad_InjectsAPIKeysFromEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ASI_ONE_API_KEY", "asi-key")
	t.Setenv("ANTHROPIC_API_KEY", "ant-key")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "asi-key", cfg.Models.Registry[0].APIKey)
	assert.Equal(t, "ant-key", cfg.Models.Registry[1].APIKey)
}

func TestDurationOrDefault(t *testing.T) {
	d, err := DurationOrDefault("2s", "5s")
	require.NoError(t, err)
	assert.Equal(t, "2s", d.String())

	d, err = DurationOrDefault("", "5s")
	require.NoError(t, err)
	assert.Equal(t, "5s", d.String())

	_, err = DurationOrDefault("bogus", "5s")
	assert.Error(t, err)
}
