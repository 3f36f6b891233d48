package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", discardLogger())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "letter_events", cfg.KafkaTopic)
	assert.Equal(t, 300*time.Second, cfg.Transit())
	assert.Equal(t, time.Second, cfg.Tick())
	assert.Equal(t, 10, cfg.OutboxMaxRetries)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_port: "9090"
transit_duration: 30s
tracker_interval: 250ms
kafka_topic: letters_test
`), 0o600))

	cfg, err := Load(path, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.Transit())
	assert.Equal(t, 250*time.Millisecond, cfg.Tick())
	assert.Equal(t, "letters_test", cfg.KafkaTopic)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), discardLogger())
	assert.Error(t, err)
}
