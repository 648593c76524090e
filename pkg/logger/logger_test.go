package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	dec := json.NewDecoder(buf)
	for dec.More() {
		var m map[string]interface{}
		require.NoError(t, dec.Decode(&m))
		out = append(out, m)
	}
	return out
}

func TestFieldsAreTyped(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.DebugLevel).With(Component("engine"))

	l.Info("analysis done",
		Ticker("2330"),
		Int("bars", 250),
		Float64("score", 81.5),
		Bool("model", true),
		Duration("duration_ms", 1500*time.Millisecond),
		Strings("modules", []string{"absorption", "elliott"}),
		Error(errors.New("boom")),
		Error(nil),
	)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	e := lines[0]
	assert.Equal(t, "engine", e["component"])
	assert.Equal(t, "2330", e["ticker"])
	assert.Equal(t, 250.0, e["bars"])
	assert.Equal(t, 81.5, e["score"])
	assert.Equal(t, true, e["model"])
	assert.Equal(t, 1500.0, e["duration_ms"])
	assert.Equal(t, "absorption, elliott", e["modules"])
	assert.Equal(t, "boom", e["error"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.WarnLevel)
	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown", Module("bb_squeeze"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "bb_squeeze", lines[0]["module"])
}

func TestNew(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	assert.ErrorContains(t, err, "invalid log level")

	path := filepath.Join(t.TempDir(), "pulse.log")
	l, err := New(&Config{Level: "INFO", Format: "json", Output: path})
	require.NoError(t, err)
	l.Info("written")

	Nop().Error("discarded", Error(errors.New("x")))
}
