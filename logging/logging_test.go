package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := SetupWriter(Config{Level: "debug"}, &buf)
	require.NoError(t, err)

	logger.Debug().Str("game", "g1").Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "debug", line["level"])
	require.Equal(t, "g1", line["game"])
	require.Equal(t, "hello", line["message"])
}

func TestSetupWriter_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := SetupWriter(Config{Level: "WARN"}, &buf)
	require.NoError(t, err)

	logger.Info().Msg("dropped")
	require.Zero(t, buf.Len())
	logger.Warn().Msg("kept")
	require.Contains(t, buf.String(), "kept")
}

func TestSetupWriter_Pretty(t *testing.T) {
	var buf bytes.Buffer
	logger, err := SetupWriter(Config{Pretty: true}, &buf)
	require.NoError(t, err)

	logger.Info().Msg("pretty")
	require.Contains(t, buf.String(), "pretty")
	require.NotContains(t, buf.String(), `"message"`)
}

func TestSetupWriter_BadLevel(t *testing.T) {
	_, err := SetupWriter(Config{Level: "loud"}, &bytes.Buffer{})
	require.Error(t, err)
}
