package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv(DefaultAPIKeyEnv, "")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"), "")
	require.NoError(t, err)

	def := DefaultAppConfig()
	assert.Equal(t, def.AI, cfg.AI)
	assert.Equal(t, def.Network, cfg.Network)
	assert.Equal(t, "keyring", cfg.Credential.Backend)
	assert.Empty(t, cfg.Credential.EnvKey)
}

func TestLoadConfig_PartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ai:
  max_retries: 5
  probe_backoff_base: 2s
  models: [only-model]
  timeouts:
    welcome: 1500ms
network:
  enabled: false
`), 0o644))

	cfg, err := LoadConfig(path, "")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.AI.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.AI.ProbeBackoffBase)
	assert.Equal(t, []string{"only-model"}, cfg.AI.Models)
	assert.Equal(t, 1500*time.Millisecond, cfg.AI.Timeouts.Welcome)
	assert.Equal(t, 10*time.Second, cfg.AI.Timeouts.Relevance)
	assert.Equal(t, 30*time.Minute, cfg.AI.ResurrectionDelay)
	assert.False(t, cfg.Network.Enabled)
}

func TestLoadConfig_EnvironmentKey(t *testing.T) {
	t.Setenv("SMARTONBOARD_TEST_KEY", "env-value")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"), "SMARTONBOARD_TEST_KEY")
	require.NoError(t, err)
	assert.Equal(t, "env-value", cfg.Credential.EnvKey)
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ai: [unclosed"), 0o644))

	_, err := LoadConfig(path, "")
	assert.Error(t, err)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	t.Setenv(DefaultAPIKeyEnv, "")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultAppConfig()
	cfg.AI.MaxRetries = 7
	cfg.AI.QuotaDelay = 4 * time.Second
	cfg.Credential.Backend = "sqlite"
	cfg.Credential.EnvKey = "must-not-be-written"
	require.NoError(t, SaveConfig(path, cfg))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "must-not-be-written")

	loaded, err := LoadConfig(path, "")
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.AI.MaxRetries)
	assert.Equal(t, 4*time.Second, loaded.AI.QuotaDelay)
	assert.Equal(t, "sqlite", loaded.Credential.Backend)
}

func TestParseSource(t *testing.T) {
	assert.Equal(t, SourceInstagram, ParseSource(" Instagram "))
	assert.Equal(t, SourceUnknown, ParseSource("tiktok"))
	assert.Equal(t, SourceUnknown, ParseSource(""))
}

func TestParseInteractionType(t *testing.T) {
	typ, ok := ParseInteractionType("share")
	assert.True(t, ok)
	assert.Equal(t, InteractionShare, typ)

	_, ok = ParseInteractionType("poke")
	assert.False(t, ok)
}
