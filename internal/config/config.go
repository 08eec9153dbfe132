// Package config loads go-screendistance settings from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-screendistance/pkg/capture"
	"github.com/teslashibe/go-screendistance/pkg/detection"
	"github.com/teslashibe/go-screendistance/pkg/estimator"
	"github.com/teslashibe/go-screendistance/pkg/monitor"
	"github.com/teslashibe/go-screendistance/pkg/proximity"
)

// Environment overrides. Each one, when set, wins over the file.
const (
	EnvLogLevel     = "SCREENDISTANCE_LOG_LEVEL"
	EnvWarningCm    = "SCREENDISTANCE_WARNING_CM"
	EnvSensorDevice = "SCREENDISTANCE_SENSOR_DEVICE"
	EnvWebPort      = "SCREENDISTANCE_WEB_PORT"
)

// DefaultWebPort is the HTTP port when none is configured.
const DefaultWebPort = 8080

// WebConfig configures the HTTP server.
type WebConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	Port    int  `yaml:"port" json:"port"`
}

// Addr returns the listen address.
func (w WebConfig) Addr() string {
	return fmt.Sprintf(":%d", w.Port)
}

// Config is the full application configuration.
type Config struct {
	LogLevel           string  `yaml:"log_level" json:"log_level"`
	WarningThresholdCm float64 `yaml:"warning_threshold_cm" json:"warning_threshold_cm"`

	Proximity proximity.Config `yaml:"proximity" json:"proximity"`
	Camera    capture.Config   `yaml:"camera" json:"camera"`
	Detector  detection.Config `yaml:"detector" json:"detector"`
	Estimator estimator.Config `yaml:"estimator" json:"estimator"`
	Web       WebConfig        `yaml:"web" json:"web"`
}

// Default returns a configuration that runs against the local webcam with
// a mock proximity sensor and the web server enabled.
func Default() Config {
	return Config{
		LogLevel:           "info",
		WarningThresholdCm: monitor.DefaultWarningThresholdCm,
		Proximity:          proximity.DefaultConfig(),
		Camera:             capture.DefaultConfig(),
		Detector:           detection.FastConfig(),
		Estimator:          estimator.DefaultConfig(),
		Web:                WebConfig{Enabled: true, Port: DefaultWebPort},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvWarningCm); v != "" {
		cm, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvWarningCm, err)
		}
		c.WarningThresholdCm = cm
	}
	if v := os.Getenv(EnvSensorDevice); v != "" {
		c.Proximity.Device = v
	}
	if v := os.Getenv(EnvWebPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvWebPort, err)
		}
		c.Web.Port = port
	}
	return nil
}

// Monitor returns the orchestrator settings.
func (c Config) Monitor() monitor.Config {
	m := monitor.DefaultConfig()
	m.WarningThresholdCm = c.WarningThresholdCm
	m.Gate = c.Proximity.Gate
	m.Facing = c.Camera.Facing
	m.Estimator = c.Estimator
	return m
}

// Validate checks every section and returns all problems at once.
func (c Config) Validate() error {
	var errs []error
	if c.WarningThresholdCm <= 0 {
		errs = append(errs, fmt.Errorf("warning_threshold_cm must be positive, got %v", c.WarningThresholdCm))
	}
	if err := c.Proximity.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("proximity: %w", err))
	}
	if err := c.Camera.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("camera: %w", err))
	}
	if err := c.Detector.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("detector: %w", err))
	}
	if err := c.Estimator.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("estimator: %w", err))
	}
	if c.Web.Enabled && (c.Web.Port <= 0 || c.Web.Port > 65535) {
		errs = append(errs, fmt.Errorf("web: port %d out of range", c.Web.Port))
	}
	return errors.Join(errs...)
}
