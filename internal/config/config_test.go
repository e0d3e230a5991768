package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), true)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 2*time.Second, cfg.Backend.Latency)
	assert.Equal(t, "creature-executor", cfg.Async.Name)
	assert.Equal(t, 4, cfg.Async.Workers)
	assert.Equal(t, 5*time.Second, cfg.Database.PingTimeout)
	assert.NotZero(t, cfg.Server.StartTime)
}

func TestLoadRequiredFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"), false)
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[database]
driver = "sqlite"
dsn = "file:bestiary.db"

[backend]
latency = "150ms"

[async]
workers = 2
queue_size = 8
`)
	cfg, err := Load(path, false)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file:bestiary.db", cfg.Database.DSN)
	assert.Equal(t, 150*time.Millisecond, cfg.Backend.Latency)
	assert.Equal(t, 2, cfg.Async.Workers)
	assert.Equal(t, 8, cfg.Async.QueueSize)
	// untouched sections keep their defaults
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.BindAddress)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
[async]
workers = 2
`)
	t.Setenv("BESTIARY_ASYNC_WORKERS", "6")
	t.Setenv("BESTIARY_BACKEND_LATENCY", "1s")
	t.Setenv("BESTIARY_LOGGING_FORMAT", "json")

	cfg, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Async.Workers)
	assert.Equal(t, time.Second, cfg.Backend.Latency)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadRejectsInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"driver":  "[database]\ndriver = \"oracle\"\n",
		"workers": "[async]\nworkers = 0\n",
		"syntax":  "[async\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body), false)
			assert.Error(t, err)
		})
	}
}
