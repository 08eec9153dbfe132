package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-screendistance/pkg/capture"
	"github.com/teslashibe/go-screendistance/pkg/proximity"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "screendistance.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30.0, cfg.WarningThresholdCm)
	assert.Equal(t, ":8080", cfg.Web.Addr())
	assert.Equal(t, capture.FacingFront, cfg.Camera.Facing)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
warning_threshold_cm: 45
proximity:
  backend: serial
  device: /dev/ttyUSB0
  gate:
    debounce: 2
camera:
  framerate: 5
estimator:
  detect_timeout: 500ms
web:
  enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 45.0, cfg.WarningThresholdCm)
	assert.Equal(t, proximity.BackendSerial, cfg.Proximity.Backend)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Proximity.Device)
	assert.Equal(t, 115200, cfg.Proximity.BaudRate, "unset fields keep defaults")
	assert.Equal(t, 2, cfg.Proximity.Gate.Debounce)
	assert.Equal(t, 5, cfg.Camera.Framerate)
	assert.Equal(t, 640, cfg.Camera.Width)
	assert.Equal(t, 500*time.Millisecond, cfg.Estimator.DetectTimeout)
	assert.False(t, cfg.Web.Enabled)
	require.NoError(t, cfg.Validate())

	mon := cfg.Monitor()
	assert.Equal(t, 45.0, mon.WarningThresholdCm)
	assert.Equal(t, 2, mon.Gate.Debounce)
	assert.Equal(t, 500*time.Millisecond, mon.Estimator.DetectTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "log_level: debug\nwarning_threshold_cm: 45\n")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvWarningCm, "25.5")
	t.Setenv(EnvSensorDevice, "/dev/ttyACM1")
	t.Setenv(EnvWebPort, "9090")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 25.5, cfg.WarningThresholdCm)
	assert.Equal(t, "/dev/ttyACM1", cfg.Proximity.Device)
	assert.Equal(t, ":9090", cfg.Web.Addr())
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "warning_threshold_cm: [1, 2"))
		assert.Error(t, err)
	})

	t.Run("bad env number", func(t *testing.T) {
		t.Setenv(EnvWarningCm, "close")
		_, err := Load("")
		assert.ErrorContains(t, err, EnvWarningCm)
	})
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := Default()
	cfg.WarningThresholdCm = -1
	cfg.Proximity.Backend = proximity.BackendSerial
	cfg.Camera.Framerate = 0
	cfg.Web.Port = 70000

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "warning_threshold_cm")
	assert.Contains(t, msg, "proximity:")
	assert.Contains(t, msg, "camera:")
	assert.Contains(t, msg, "web:")
}
