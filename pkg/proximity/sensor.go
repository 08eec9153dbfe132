package proximity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedReading is returned when a sensor line cannot be parsed.
var ErrMalformedReading = errors.New("proximity: malformed reading")

// Reading is one raw sample from a proximity sensor.
type Reading struct {
	Distance float64   `json:"distance"`  // Raw value, cm
	MaxRange float64   `json:"max_range"` // Sensor max range, cm (0 = unknown)
	At       time.Time `json:"-"`
}

// Listener receives readings on the sensor's own goroutine.
type Listener func(Reading)

// Sensor is a proximity sensor that can be registered and unregistered.
type Sensor interface {
	// Register starts delivering readings to fn.
	// Registering an already registered sensor is a no-op.
	Register(ctx context.Context, fn Listener) error

	// Unregister stops delivery. It is safe to call when not registered.
	Unregister() error

	// Name returns the backend name (e.g., "serial", "websocket", "mock").
	Name() string
}

// Backend identifies a sensor implementation.
type Backend string

const (
	// BackendSerial reads line-oriented readings from a serial port.
	BackendSerial Backend = "serial"
	// BackendWebSocket reads JSON readings from a companion device.
	BackendWebSocket Backend = "websocket"
	// BackendMock is a scripted sensor for tests and demos.
	BackendMock Backend = "mock"
)

// Config selects and configures a sensor backend.
type Config struct {
	Backend  Backend `yaml:"backend" json:"backend"`
	Device   string  `yaml:"device" json:"device"`       // Serial device path
	BaudRate int     `yaml:"baud_rate" json:"baud_rate"` // Serial baud rate
	URL      string  `yaml:"url" json:"url"`             // WebSocket feed URL
	MaxRange float64 `yaml:"max_range" json:"max_range"` // Reported range when the feed omits it

	Gate GateConfig `yaml:"gate" json:"gate"`
}

// DefaultConfig returns a mock sensor with the default gate.
func DefaultConfig() Config {
	return Config{
		Backend:  BackendMock,
		BaudRate: 115200,
		Gate:     DefaultGateConfig(),
	}
}

// Validate checks backend-specific requirements.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSerial:
		if c.Device == "" {
			return errors.New("proximity: serial backend requires device")
		}
		if c.BaudRate <= 0 {
			return fmt.Errorf("proximity: baud_rate must be positive, got %d", c.BaudRate)
		}
	case BackendWebSocket:
		if c.URL == "" {
			return errors.New("proximity: websocket backend requires url")
		}
	case BackendMock:
	default:
		return fmt.Errorf("proximity: unsupported backend: %s", c.Backend)
	}
	if c.MaxRange < 0 {
		return fmt.Errorf("proximity: max_range must not be negative, got %v", c.MaxRange)
	}
	return nil
}

// NewSensor creates the sensor selected by cfg.Backend.
func NewSensor(cfg Config, logger *slog.Logger) (Sensor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("creating proximity sensor",
		"backend", cfg.Backend,
		"device", cfg.Device,
		"url", cfg.URL,
	)

	switch cfg.Backend {
	case BackendSerial:
		return NewSerialSensor(cfg, logger, nil), nil
	case BackendWebSocket:
		return NewWebSocketSensor(cfg, logger), nil
	default:
		return NewMockSensor(), nil
	}
}

// ParseLine parses "<distance>" or "<distance>,<max_range>" (centimeters).
// Whitespace around fields is ignored. A missing max range yields defaultMax.
func ParseLine(line string, defaultMax float64) (Reading, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Reading{}, fmt.Errorf("%w: empty line", ErrMalformedReading)
	}

	fields := strings.Split(line, ",")
	if len(fields) > 2 {
		return Reading{}, fmt.Errorf("%w: %q", ErrMalformedReading, line)
	}

	dist, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: %q", ErrMalformedReading, line)
	}

	r := Reading{Distance: dist, MaxRange: defaultMax, At: time.Now()}
	if len(fields) == 2 {
		max, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return Reading{}, fmt.Errorf("%w: %q", ErrMalformedReading, line)
		}
		r.MaxRange = max
	}
	return r, nil
}
