package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "json", Output: &buf})
	require.NoError(t, err)

	logger.Info("reading stored", zap.String("sensor_id", "SENSOR_001"))
	logger.Debug("hidden")
	require.NoError(t, logger.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "reading stored", entry["message"])
	assert.Equal(t, "SENSOR_001", entry["sensor_id"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_ConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Output: &buf})
	require.NoError(t, err)

	logger.Debug("baseline computed")
	_ = logger.Sync()

	assert.Contains(t, buf.String(), "DEBUG")
	assert.Contains(t, buf.String(), "baseline computed")
}

func TestNew_FileTee(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitor.log")
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", File: path, MaxSizeMB: 1, Output: &buf})
	require.NoError(t, err)

	logger.Warn("anomaly detected")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"anomaly detected"`)
	assert.Contains(t, buf.String(), "anomaly detected")
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Options{Format: "xml"})
	assert.Error(t, err)
}
