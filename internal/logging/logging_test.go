package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/smart-onboard/internal/model"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(model.LogConfig{Level: "WARN"}, &buf)
	require.NoError(t, err)

	log.Info().Msg("hidden")
	log.Warn().Str("component", "ai").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "ai", entry["component"])
	assert.Equal(t, "shown", entry["message"])
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(model.LogConfig{Pretty: true}, &buf)
	require.NoError(t, err)

	log.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New(model.LogConfig{Level: "loud"}, nil)
	assert.Error(t, err)
}
