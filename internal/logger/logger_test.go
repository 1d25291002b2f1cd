package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, zerolog.InfoLevel)
	t.Cleanup(func() { Init("info", false) })

	WithComponent("capture").Info().Int("slots", 3).Msg("ready")
	WithComponent("capture").Debug().Msg("filtered out")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "capture", entry["component"])
	assert.Equal(t, "ready", entry["message"])
	assert.EqualValues(t, 3, entry["slots"])
}
