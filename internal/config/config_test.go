package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoad_NormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("host: https://ical.example.com\npreview:\n  horizon_days: 7\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://ical.example.com", cfg.Host)
	assert.Equal(t, 7, cfg.Preview.HorizonDays)
	assert.Equal(t, defaultListen, cfg.Listen)
	assert.Equal(t, defaultCachePruneCron, cfg.CachePruneCron)
	assert.Equal(t, defaultFetchTimeoutSec, cfg.Preview.FetchTimeoutSeconds)
	assert.Nil(t, cfg.BasicAuth)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Host = "https://example.com"
	cfg.BasicAuth = &BasicAuthConfig{Username: "admin", Password: "secret"}

	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
	assert.True(t, got.BasicAuthEnabled())
}

func TestBasicAuthEnabled(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.BasicAuthEnabled())

	cfg.BasicAuth = &BasicAuthConfig{Username: "admin"}
	assert.False(t, cfg.BasicAuthEnabled())
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	_, err := Load(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) { changes <- c })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	updated := DefaultConfig()
	updated.Host = "https://reloaded.example.com"
	require.NoError(t, updated.Save(path))

	select {
	case c := <-changes:
		assert.Equal(t, "https://reloaded.example.com", c.Host)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	assert.NoError(t, <-done)
}
