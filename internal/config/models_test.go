package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	m, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, path, m.GetConfigPath())
	assert.Equal(t, Defaults(), m.Get())

	_, err = os.Stat(path)
	assert.NoError(t, err, "default config written")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := NewManager(path)
	require.NoError(t, err)

	cfg := m.Get()
	cfg.ServerPort = 9090
	cfg.Camera.Sensor = "ov5647"
	cfg.Camera.I2CAddr = 0x36
	cfg.Encoder.StreamQuality = 45
	cfg.Display.Enabled = true
	require.NoError(t, m.Update(cfg))

	reloaded, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, reloaded.Get())
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_port: 7000\ncamera:\n  fps: 15\n"), 0644))

	m, err := NewManager(path)
	require.NoError(t, err)

	cfg := m.Get()
	assert.Equal(t, 7000, cfg.ServerPort)
	assert.Equal(t, 15, cfg.Camera.FPS)
	assert.Equal(t, 3, cfg.Camera.Slots)
	assert.Equal(t, 80, cfg.Encoder.SnapshotQuality)
}

func TestMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_port: [nope\n"), 0644))

	_, err := NewManager(path)
	assert.Error(t, err)
}

func TestViperSetIsSaved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := NewManager(path)
	require.NoError(t, err)

	v := m.GetViper()
	assert.Equal(t, 8080, v.GetInt("server_port"))
	assert.Equal(t, "testpattern", v.GetString("camera.sensor"))

	v.Set("camera.fps", 12)
	v.Set("log_level", "debug")
	require.NoError(t, m.Save())
	assert.Equal(t, 12, m.Get().Camera.FPS)

	reloaded, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, 12, reloaded.Get().Camera.FPS)
	assert.Equal(t, "debug", reloaded.Get().LogLevel)
}

func TestGetReturnsCopy(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	m.Get().ServerPort = 1
	assert.Equal(t, 8080, m.Get().ServerPort)
}
