// Package detection provides face detection on JPEG frames.
package detection

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrEmptyImage is returned when the input decodes to an empty image.
var ErrEmptyImage = errors.New("detection: empty image")

// Detection represents a detected face. Coordinates are in pixels of the
// analyzed image, origin top-left.
type Detection struct {
	X, Y       float64 // Top-left corner
	W, H       float64 // Box width and height
	Confidence float64 // Detection confidence (0-1)
}

// Height returns the bounding box height in pixels.
func (d Detection) Height() float64 {
	return d.H
}

// Center returns the center point of the detection
func (d Detection) Center() (x, y float64) {
	return d.X + d.W/2, d.Y + d.H/2
}

// Area returns the area of the bounding box
func (d Detection) Area() float64 {
	return d.W * d.H
}

// Detector is the interface for face detection backends.
type Detector interface {
	// Detect finds faces in the image. Results are ordered as the backend
	// reports them; an empty slice means no face.
	Detect(jpeg []byte) ([]Detection, error)

	// Close releases resources
	Close() error
}

// Backends.
const (
	BackendYuNet = "yunet"
	BackendMock  = "mock"
)

// Config holds detector configuration.
type Config struct {
	Backend          string  `yaml:"backend" json:"backend"`
	ModelPath        string  `yaml:"model_path" json:"model_path"`               // Path to ONNX model
	ConfidenceThresh float64 `yaml:"confidence_thresh" json:"confidence_thresh"` // Minimum confidence (default 0.5)
	NMSThresh        float64 `yaml:"nms_thresh" json:"nms_thresh"`
	TopK             int     `yaml:"top_k" json:"top_k"`
	InputWidth       int     `yaml:"input_width" json:"input_width"`   // Model input width
	InputHeight      int     `yaml:"input_height" json:"input_height"` // Model input height

	// MaxWidth downscales wider images before detection. Boxes are mapped
	// back to the original resolution. 0 disables scaling.
	MaxWidth int `yaml:"max_width" json:"max_width"`
}

// DefaultConfig returns production defaults for YuNet
func DefaultConfig() Config {
	return Config{
		Backend:          BackendYuNet,
		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.5,
		NMSThresh:        0.3,
		TopK:             5000,
		InputWidth:       320,
		InputHeight:      320,
	}
}

// FastConfig favors latency over recall: small input, few candidates.
// Fine for a single face close to the camera.
func FastConfig() Config {
	cfg := DefaultConfig()
	cfg.TopK = 50
	cfg.MaxWidth = 320
	return cfg
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendYuNet:
		if c.ModelPath == "" {
			errs = append(errs, errors.New("model_path is required for yunet"))
		}
	case BackendMock:
	default:
		errs = append(errs, fmt.Errorf("backend must be %s or %s, got %q", BackendYuNet, BackendMock, c.Backend))
	}
	if c.ConfidenceThresh <= 0 || c.ConfidenceThresh >= 1 {
		errs = append(errs, errors.New("confidence_thresh must be in (0, 1)"))
	}
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		errs = append(errs, errors.New("input size must be positive"))
	}
	if c.MaxWidth < 0 {
		errs = append(errs, errors.New("max_width must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("detector config: %w", errors.Join(errs...))
	}
	return nil
}

// New creates a detector for the configured backend.
func New(cfg Config, logger *slog.Logger) (Detector, error) {
	switch cfg.Backend {
	case BackendYuNet:
		return NewYuNet(cfg, logger)
	case BackendMock:
		return &Mock{}, nil
	default:
		return nil, fmt.Errorf("detection: unknown backend %q", cfg.Backend)
	}
}

// Func adapts a plain function to the Detector interface.
type Func func(jpeg []byte) ([]Detection, error)

// Detect calls f(jpeg).
func (f Func) Detect(jpeg []byte) ([]Detection, error) { return f(jpeg) }

// Close is a no-op.
func (f Func) Close() error { return nil }

var _ Detector = Func(nil)
