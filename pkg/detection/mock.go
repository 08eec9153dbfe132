package detection

import (
	"sync"
	"sync/atomic"
	"time"
)

// Mock is a scripted detector for testing.
type Mock struct {
	mu         sync.Mutex
	detections []Detection
	err        error
	delay      time.Duration
	block      chan struct{}

	calls  atomic.Int64
	closed atomic.Bool
}

// NewMock creates a mock that reports dets on every call.
func NewMock(dets ...Detection) *Mock {
	return &Mock{detections: dets}
}

// SetResult replaces the scripted result.
func (m *Mock) SetResult(dets []Detection, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections = dets
	m.err = err
}

// SetDelay makes every call sleep for d first.
func (m *Mock) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Block makes calls wait until the returned function is called.
func (m *Mock) Block() (unblock func()) {
	ch := make(chan struct{})
	m.mu.Lock()
	m.block = ch
	m.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Detect returns the scripted result.
func (m *Mock) Detect(jpeg []byte) ([]Detection, error) {
	m.calls.Add(1)

	m.mu.Lock()
	dets, err, delay, block := m.detections, m.err, m.delay, m.block
	m.mu.Unlock()

	if block != nil {
		<-block
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return append([]Detection(nil), dets...), nil
}

// Calls returns the number of Detect calls.
func (m *Mock) Calls() int64 { return m.calls.Load() }

// Closed reports whether Close was called.
func (m *Mock) Closed() bool { return m.closed.Load() }

// Close marks the mock closed.
func (m *Mock) Close() error {
	m.closed.Store(true)
	return nil
}

var _ Detector = (*Mock)(nil)
