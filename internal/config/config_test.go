package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsCreatedWhenMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	m, err := NewManager("")
	require.NoError(t, err)

	cfg := m.Get()
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "sim", cfg.Camera.Backend)
	assert.Equal(t, 60, cfg.Camera.FPS)
	assert.True(t, cfg.Analysis.Histogram)
	assert.False(t, cfg.Analysis.Peaking)

	_, err = os.Stat(m.GetConfigPath())
	assert.NoError(t, err)
}

func TestCustomPathRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")

	m, err := NewManager(path)
	require.NoError(t, err)
	require.NoError(t, m.SetPort(9090))
	require.NoError(t, m.SetBackend("gst"))

	reloaded, err := NewManager(path)
	require.NoError(t, err)
	cfg := reloaded.Get()
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "gst", cfg.Camera.Backend)
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_port: 9999\n"), 0o644))

	m, err := NewManager(path)
	require.NoError(t, err)

	cfg := m.Get()
	assert.Equal(t, 9999, cfg.ServerPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "sim", cfg.Camera.Backend)
}

func TestMalformedFileRejected(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o644))

	_, err := NewManager(path)
	assert.Error(t, err)
}

func TestGetReturnsCopy(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")

	m, err := NewManager(path)
	require.NoError(t, err)

	cfg := m.Get()
	cfg.ServerPort = 1
	assert.Equal(t, 8080, m.Get().ServerPort)
}
