package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource is a programmable frame source for testing.
type MockSource struct {
	mu      sync.Mutex
	deliver Deliver
	facing  Facing
	bound   bool

	// BindErr, if set, is returned by Bind.
	BindErr error

	binds    atomic.Int64
	unbinds  atomic.Int64
	pushed   atomic.Int64
	released atomic.Int64
}

// NewMockSource creates an unbound mock source.
func NewMockSource() *MockSource {
	return &MockSource{}
}

// Bind installs deliver.
func (m *MockSource) Bind(_ context.Context, facing Facing, deliver Deliver) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.BindErr != nil {
		return m.BindErr
	}
	if deliver == nil {
		return errors.New("mock: nil deliver")
	}
	m.deliver = deliver
	m.facing = facing
	m.bound = true
	m.binds.Add(1)
	return nil
}

// Unbind drops the consumer.
func (m *MockSource) Unbind() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.bound {
		return nil
	}
	m.deliver = nil
	m.bound = false
	m.unbinds.Add(1)
	return nil
}

// Push delivers one image synchronously. It returns false when unbound.
func (m *MockSource) Push(data []byte, width, height int) bool {
	// Holding mu across deliver gives Unbind the same guarantee as the real
	// source: no deliver call is in progress once Unbind returns.
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.bound {
		return false
	}
	m.pushed.Add(1)
	m.deliver(Image{
		Data:      data,
		Width:     width,
		Height:    height,
		Timestamp: time.Now(),
		Release:   func() { m.released.Add(1) },
	})
	return true
}

// Bound reports whether a consumer is installed.
func (m *MockSource) Bound() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bound
}

// Facing returns the facing of the last successful Bind.
func (m *MockSource) Facing() Facing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.facing
}

// Binds returns the number of successful Bind calls.
func (m *MockSource) Binds() int64 { return m.binds.Load() }

// Unbinds returns the number of Unbind calls that released a binding.
func (m *MockSource) Unbinds() int64 { return m.unbinds.Load() }

// Pushed returns the number of images delivered.
func (m *MockSource) Pushed() int64 { return m.pushed.Load() }

// Released returns the number of delivered images that were released.
func (m *MockSource) Released() int64 { return m.released.Load() }

// Name returns "mock".
func (m *MockSource) Name() string { return BackendMock }

var _ Source = (*MockSource)(nil)
