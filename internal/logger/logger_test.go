package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWithFormat_JSON(t *testing.T) {
	var buf bytes.Buffer

	l := NewLoggerWithFormat("info", FormatJSON, &buf)
	l.With("source", "calix").Info("page fetched", "page", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "page fetched", entry["msg"])
	assert.Equal(t, "calix", entry["source"])
	assert.EqualValues(t, 2, entry["page"])
}

func TestNewLoggerWithFormat_LevelFilter(t *testing.T) {
	var buf bytes.Buffer

	l := NewLoggerWithFormat("warn", FormatText, &buf)
	l.Info("hidden")
	l.Debug("hidden")
	l.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")

	l.SetLevel("debug")
	l.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestNewLoggerWithFormat_AutoFallsBackToText(t *testing.T) {
	var buf bytes.Buffer

	NewLoggerWithFormat("info", FormatAuto, &buf).Info("hello")

	assert.True(t, strings.HasPrefix(buf.String(), "time="), buf.String())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
