package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("INFO"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" warn "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestNew_Text(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	logger, closer := New(config.Logging{Level: "info", Format: "text"}, &buf)
	defer closer.Close()

	logger.Debug("hidden")
	logger.With("component", "store").Info("task deleted", "id", "t1")
	logger.WithGroup("http").Warn("slow", "ms", 900)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INF task deleted component=store id=t1")
	assert.Contains(t, out, "WRN slow http.ms=900")
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := New(config.Logging{Level: "debug", Format: "json"}, &buf)
	defer closer.Close()

	logger.Debug("seeded", "path", "data/taskboard.json")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, "seeded", rec["msg"])
	assert.Equal(t, "data/taskboard.json", rec["path"])
}

func TestNew_File(t *testing.T) {
	color.NoColor = true
	path := filepath.Join(t.TempDir(), "logs", "taskboard.log")
	var buf bytes.Buffer
	logger, closer := New(config.Logging{Level: "info", Format: "text", File: path}, &buf)

	logger.Error("write failed", "error", "disk full")
	require.NoError(t, closer.Close())

	assert.Contains(t, buf.String(), "ERR write failed")
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "write failed", rec["msg"])
	assert.Equal(t, "disk full", rec["error"])
}
