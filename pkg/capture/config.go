// Package capture owns the camera resource for the distance monitor: it binds
// a frame source only while the lifecycle is started, feeds frames to a
// single analysis consumer with keep-only-latest backpressure, and tags every
// frame with the generation of the activation that produced it.
package capture

import (
	"errors"
	"fmt"
)

// Facing selects which camera to bind.
type Facing string

// Camera facings.
const (
	// FacingFront is the user-facing camera.
	FacingFront Facing = "front"
	FacingBack  Facing = "back"
)

// Source backends.
const (
	BackendGoCV = "gocv"
	BackendMock = "mock"
)

// Config holds camera configuration.
type Config struct {
	// Backend selects the frame source ("gocv" or "mock").
	Backend string `yaml:"backend" json:"backend"`

	// DeviceID is the OpenCV capture device index.
	DeviceID int `yaml:"device_id" json:"device_id"`

	// Facing is the camera to bind. Only the front camera makes sense for
	// screen distance, but sources may expose both.
	Facing Facing `yaml:"facing" json:"facing"`

	Width     int `yaml:"width" json:"width"`         // Frame width in pixels
	Height    int `yaml:"height" json:"height"`       // Frame height in pixels
	Framerate int `yaml:"framerate" json:"framerate"` // Target FPS
	Quality   int `yaml:"quality" json:"quality"`     // JPEG quality 1-100
}

// Limits accepted by Validate.
const (
	MaxWidth     = 3840
	MaxHeight    = 2160
	MaxFramerate = 120
)

// DefaultConfig returns the standard front-camera configuration. Distance
// estimation only needs the face box height, so 640x480 is plenty.
func DefaultConfig() Config {
	return Config{
		Backend:   BackendGoCV,
		DeviceID:  0,
		Facing:    FacingFront,
		Width:     640,
		Height:    480,
		Framerate: 15,
		Quality:   80,
	}
}

// LowPowerConfig trades resolution and rate for battery life.
func LowPowerConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 320
	cfg.Height = 240
	cfg.Framerate = 5
	cfg.Quality = 70
	return cfg
}

// Preset names.
const (
	PresetDefault  = "default"
	PresetLowPower = "low_power"
)

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	var cfg Config
	switch name {
	case PresetDefault:
		cfg = DefaultConfig()
	case PresetLowPower:
		cfg = LowPowerConfig()
	default:
		return nil
	}
	return &cfg
}

// Validate checks that values are within supported ranges.
func (c Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendGoCV, BackendMock:
	default:
		errs = append(errs, fmt.Errorf("backend must be %s or %s, got %q", BackendGoCV, BackendMock, c.Backend))
	}
	if c.DeviceID < 0 {
		errs = append(errs, errors.New("device_id must not be negative"))
	}
	if c.Facing != FacingFront && c.Facing != FacingBack {
		errs = append(errs, fmt.Errorf("facing must be front or back, got %q", c.Facing))
	}
	if c.Width < 160 || c.Width > MaxWidth {
		errs = append(errs, fmt.Errorf("width must be between 160 and %d", MaxWidth))
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errs = append(errs, fmt.Errorf("height must be between 120 and %d", MaxHeight))
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errs = append(errs, fmt.Errorf("framerate must be between 1 and %d", MaxFramerate))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errs = append(errs, errors.New("quality must be between 1 and 100"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("capture config: %w", errors.Join(errs...))
	}
	return nil
}
