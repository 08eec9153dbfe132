package proximity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MockSensor is a scripted sensor for testing. Emit delivers a reading
// synchronously to the registered listener, if any.
type MockSensor struct {
	mu         sync.Mutex
	fn         Listener
	registered bool

	registrations   atomic.Int64
	unregistrations atomic.Int64

	// RegisterErr, if set, is returned by Register.
	RegisterErr error
}

// NewMockSensor creates an unregistered mock sensor.
func NewMockSensor() *MockSensor {
	return &MockSensor{}
}

// Register stores the listener.
func (m *MockSensor) Register(ctx context.Context, fn Listener) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.RegisterErr != nil {
		return m.RegisterErr
	}
	if m.registered {
		return nil
	}
	m.fn = fn
	m.registered = true
	m.registrations.Add(1)
	return nil
}

// Unregister drops the listener.
func (m *MockSensor) Unregister() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.registered {
		return nil
	}
	m.fn = nil
	m.registered = false
	m.unregistrations.Add(1)
	return nil
}

// Emit delivers a reading. It returns false if no listener is registered.
func (m *MockSensor) Emit(distance, maxRange float64) bool {
	m.mu.Lock()
	fn := m.fn
	m.mu.Unlock()

	if fn == nil {
		return false
	}
	fn(Reading{Distance: distance, MaxRange: maxRange, At: time.Now()})
	return true
}

// Registered reports whether a listener is installed.
func (m *MockSensor) Registered() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registered
}

// Registrations returns how many times Register installed a listener.
func (m *MockSensor) Registrations() int64 {
	return m.registrations.Load()
}

// Unregistrations returns how many times Unregister removed a listener.
func (m *MockSensor) Unregistrations() int64 {
	return m.unregistrations.Load()
}

// Name returns "mock".
func (m *MockSensor) Name() string {
	return string(BackendMock)
}

var _ Sensor = (*MockSensor)(nil)
