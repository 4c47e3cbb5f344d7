package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/amirphl/viewiq/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"info":  slog.LevelInfo,
		"":      slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestInitWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l := Init(config.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: path,
		MaxSize:  1,
	})
	l.Info("export finished", "segment_id", 7)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"segment_id":7`)
	assert.Same(t, l, slog.Default())
}

func TestWritersByOutput(t *testing.T) {
	assert.Len(t, writers(config.LoggingConfig{Output: "stdout"}), 1)
	assert.Len(t, writers(config.LoggingConfig{Output: "both", FilePath: filepath.Join(t.TempDir(), "x.log")}), 2)
}
