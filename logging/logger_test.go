package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONRenamesErrorKey(t *testing.T) {
	var out bytes.Buffer
	logger, err := newLogger(slog.LevelInfo, FormatJSON, &out, nil)
	require.NoError(t, err)

	logger.Error("failed", "error", errors.New("boom"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &rec))
	assert.Equal(t, "boom", rec["err"])
	assert.NotContains(t, rec, "error")
}

func TestTextGoesToStderrAndFiltersLevel(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger, err := newLogger(slog.LevelWarn, FormatText, &stdout, &stderr)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "msg=shown")
	assert.NotContains(t, stderr.String(), "hidden")
}

func TestUnknownFormat(t *testing.T) {
	_, err := New(slog.LevelInfo, "xml")
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l)

	l, err = ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewNop(t *testing.T) {
	assert.NotPanics(t, func() { NewNop().Error("dropped", "error", errors.New("x")) })
}
