package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/smart-onboard/internal/ai"
	"github.com/nhle/smart-onboard/internal/analytics"
	"github.com/nhle/smart-onboard/internal/model"
	"github.com/nhle/smart-onboard/internal/tracker"
)

// writeConfig creates an isolated configuration with local storage and no
// network access.
func writeConfig(t *testing.T) string {
	t.Helper()
	t.Setenv(model.DefaultAPIKeyEnv, "")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf(`
storage:
  path: %s
credential:
  backend: sqlite
network:
  enabled: false
log:
  level: error
ai:
  start_delay: 1h
  welcome_init_wait: 2s
`, filepath.Join(dir, "data.db"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func itemIDs(t *testing.T, out string) []string {
	t.Helper()
	var items []model.ContentItem
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

func TestKeyAndStatus(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "", "--config", cfg, "status", "--json")
	require.NoError(t, err)
	var report statusReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.False(t, report.Credential.HasKey)

	_, err = run(t, "", "--config", cfg, "key", "set", "too-short")
	assert.Error(t, err)

	out, err = run(t, "AIzaSyA1234567890abcdefghijklmnopqrstu\n", "--config", cfg, "key", "set")
	require.NoError(t, err)
	assert.Contains(t, out, "API key saved")

	out, err = run(t, "", "--config", cfg, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "configured (storage)")

	_, err = run(t, "", "--config", cfg, "key", "clear")
	require.NoError(t, err)

	out, err = run(t, "", "--config", cfg, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "not configured")
}

func TestWelcomeFallsBackWithoutKey(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "", "--config", cfg, "--source", "instagram", "welcome")
	require.NoError(t, err)
	assert.Equal(t, ai.DefaultWelcome(model.SourceInstagram)+"\n", out)
}

func TestRecommendAndPath(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "", "--config", cfg, "--source", "blog", "--json", "recommend")
	require.NoError(t, err)
	assert.Equal(t, []string{"5", "1", "4", "2", "3"}, itemIDs(t, out))

	out, err = run(t, "", "--config", cfg, "--json", "path")
	require.NoError(t, err)
	assert.Equal(t, []string{"5", "1", "4"}, itemIDs(t, out))

	out, err = run(t, "", "--config", cfg, "path")
	require.NoError(t, err)
	assert.Contains(t, out, "Data-Driven Design Decisions")
}

func TestTrackEngagementAnalytics(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "", "--config", cfg, "--source", "blog", "track", "1", "--duration", "1500")
	require.NoError(t, err)
	assert.Contains(t, out, "recorded view on 1")

	_, err = run(t, "", "--config", cfg, "track", "99")
	assert.ErrorContains(t, err, "unknown content")

	_, err = run(t, "", "--config", cfg, "track", "1", "--type", "poke")
	assert.ErrorContains(t, err, "invalid interaction type")

	out, err = run(t, "", "--config", cfg, "--json", "engagement")
	require.NoError(t, err)
	var eng tracker.Engagement
	require.NoError(t, json.Unmarshal([]byte(out), &eng))
	// Weight 1 plus a 0.15 duration bonus, out of 5.
	assert.Equal(t, 23, eng.Overall)
	assert.Equal(t, 90, eng.BySource[model.SourceBlog])

	out, err = run(t, "", "--config", cfg, "--json", "analytics", "show")
	require.NoError(t, err)
	var data analytics.Data
	require.NoError(t, json.Unmarshal([]byte(out), &data))
	assert.Equal(t, 1, data.SourceCounts[model.SourceBlog])
	assert.Equal(t, analytics.Engagement{Views: 1, TimeSpentMs: 1500}, data.EngagementBySource[model.SourceBlog])

	_, err = run(t, "", "--config", cfg, "analytics", "reset")
	require.NoError(t, err)
	out, err = run(t, "", "--config", cfg, "analytics", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "SOURCE")
	assert.NotContains(t, out, "1500ms")
}

func TestInterests(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "", "--config", cfg, "interests")
	require.NoError(t, err)
	assert.Contains(t, out, "no interests yet")

	for _, id := range []string{"2", "5"} {
		_, err = run(t, "", "--config", cfg, "track", id)
		require.NoError(t, err)
	}

	out, err = run(t, "", "--config", cfg, "--json", "interests")
	require.NoError(t, err)
	var interests []string
	require.NoError(t, json.Unmarshal([]byte(out), &interests))
	assert.Equal(t, "design", interests[0])
	assert.Len(t, interests, 5)

	out, err = run(t, "", "--config", cfg, "interests", "--set", "ux,data")
	require.NoError(t, err)
	assert.Equal(t, "ux, data\n", out)
}

func TestRelevanceAndSummaryFallbacks(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "", "--config", cfg, "--json", "relevance", "3")
	require.NoError(t, err)
	var scores map[model.Source]int
	require.NoError(t, json.Unmarshal([]byte(out), &scores))
	assert.Equal(t, model.SourceScores(50), scores)

	out, err = run(t, "", "--config", cfg, "summary", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "How digital platforms are reshaping")
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	out, err := run(t, "", "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote")
	assert.FileExists(t, path)

	_, err = run(t, "", "--config", path, "config", "init")
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, "", "--config", path, "config", "init", "--force")
	require.NoError(t, err)

	out, err = run(t, "", "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "probe_models:")
	assert.Contains(t, out, "gemini-2.0-flash")
	assert.NotContains(t, out, "api_key")
}
