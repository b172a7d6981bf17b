package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newWithWriter(Options{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("assignment minted", zap.String("session_id", "s1"))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "assignment minted", entry["msg"])
	require.Equal(t, "INFO", entry["level"])
	require.Equal(t, "s1", entry["session_id"])
}

func TestNewWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiz.log")
	var buf bytes.Buffer
	logger, err := newWithWriter(Options{Level: "debug", Format: "console", File: path}, &buf)
	require.NoError(t, err)

	logger.Debug("to file")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"to file"`)
	require.Contains(t, buf.String(), "to file")
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	require.Error(t, err)

	_, err = New(Options{Level: "info", Format: "xml"})
	require.Error(t, err)
}
