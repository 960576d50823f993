package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	require.Equal(t, zerolog.WarnLevel, ParseLevel(" warn "))
	require.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	require.Equal(t, zerolog.InfoLevel, ParseLevel("chatty"))
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "warn", Format: "json", Output: &buf})

	logger.Info().Msg("dropped")
	logger.Warn().Str("device", "A1").Msg("kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "kept", entry["message"])
	require.Equal(t, "A1", entry["device"])
	require.Equal(t, "warn", entry["level"])
}

func TestNew_ConsoleInDevelopment(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Development: true, Output: &buf})
	logger.Info().Msg("hello")
	require.Contains(t, buf.String(), "hello")
	require.NotContains(t, buf.String(), `"message"`)
}
