package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_JSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := Component(New("debug", "json", &buf), "remote")
	l.Debug().Str("op", "list projects").Msg("request")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "remote", line["component"])
	require.Equal(t, "debug", line["level"])
	require.Contains(t, line, "time")
}

func TestNew_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New("loud", "json", &buf)
	l.Debug().Msg("hidden")
	require.Zero(t, buf.Len())

	l.Info().Msg("shown")
	require.NotZero(t, buf.Len())
}
