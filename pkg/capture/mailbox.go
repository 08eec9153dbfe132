package capture

import "sync"

// mailbox is a single-slot, keep-only-latest handoff between the frame
// source and the analysis loop. A frame published while another is waiting
// replaces it and the replaced frame is released immediately.
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frame  *Frame
	closed bool

	dropped uint64
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// put publishes f without blocking. It reports whether a waiting frame was
// overwritten. A closed mailbox releases f and reports false.
func (m *mailbox) put(f *Frame) (dropped bool) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		f.Release()
		return false
	}
	old := m.frame
	m.frame = f
	if old != nil {
		m.dropped++
	}
	m.cond.Signal()
	m.mu.Unlock()

	if old != nil {
		old.Release()
		return true
	}
	return false
}

// take blocks until a frame is available or the mailbox is closed. It
// returns nil after close.
func (m *mailbox) take() *Frame {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.frame == nil && !m.closed {
		m.cond.Wait()
	}
	if m.closed {
		return nil
	}
	f := m.frame
	m.frame = nil
	return f
}

// close wakes the consumer and releases any waiting frame. Safe to call more
// than once.
func (m *mailbox) close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	f := m.frame
	m.frame = nil
	m.cond.Broadcast()
	m.mu.Unlock()

	if f != nil {
		f.Release()
	}
}

func (m *mailbox) drops() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}
