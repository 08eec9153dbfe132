package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Image is a raw frame as produced by a Source.
type Image struct {
	Data      []byte
	Width     int
	Height    int
	Timestamp time.Time

	// Release, if set, returns the image buffer to the source.
	Release func()
}

// Deliver receives images from a bound source. It must not block.
type Deliver func(Image)

// Source is a camera that can be bound to a single consumer.
type Source interface {
	// Bind acquires the camera with the given facing and starts delivering
	// images until Unbind is called or ctx is done. Binding an already bound
	// source replaces the consumer.
	Bind(ctx context.Context, facing Facing, deliver Deliver) error

	// Unbind stops delivery and releases the camera. It returns only after
	// the last deliver call has returned. Safe to call when not bound.
	Unbind() error

	// Name returns the backend name (e.g., "gocv", "mock").
	Name() string
}

// NewSource creates a source for the configured backend.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	switch cfg.Backend {
	case BackendGoCV:
		return NewGoCVSource(cfg, logger), nil
	case BackendMock:
		return NewMockSource(), nil
	default:
		return nil, fmt.Errorf("capture: unknown backend %q", cfg.Backend)
	}
}
