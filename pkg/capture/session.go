package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/teslashibe/go-screendistance/pkg/distance"
	"github.com/teslashibe/go-screendistance/pkg/lifecycle"
	"github.com/teslashibe/go-screendistance/pkg/metrics"
)

// Analyzer consumes frames. Analyze must return promptly and release the
// frame exactly once, possibly later from another goroutine.
type Analyzer interface {
	Analyze(frame *Frame, sink distance.Sink)
}

// AnalyzerFunc adapts a function to the Analyzer interface.
type AnalyzerFunc func(frame *Frame, sink distance.Sink)

// Analyze calls f(frame, sink).
func (f AnalyzerFunc) Analyze(frame *Frame, sink distance.Sink) { f(frame, sink) }

// Options configures a Session.
type Options struct {
	// Facing is the camera to bind. Defaults to FacingFront.
	Facing Facing

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Stats is a point-in-time snapshot of session counters.
type Stats struct {
	Active       bool   `json:"active"`
	Generation   uint64 `json:"generation"`
	ActivationID string `json:"activation_id,omitempty"`
	Activations  uint64 `json:"activations"`
	BindFailures uint64 `json:"bind_failures"`
	Delivered    uint64 `json:"frames_delivered"`
	Dropped      uint64 `json:"frames_dropped"`
	Released     uint64 `json:"frames_released"`
}

// Session binds a Source to a single Analyzer for as long as it is active.
//
// Every Activate and every Deactivate advances the generation. Frames carry
// the generation they were issued under, so any result computed from a frame
// of an ended activation can be recognized and discarded.
type Session struct {
	owner    lifecycle.Owner
	src      Source
	analyzer Analyzer
	facing   Facing
	logger   *slog.Logger
	metrics  *metrics.Metrics

	// opMu serializes Activate, Deactivate and Close.
	opMu        sync.Mutex
	act         *activation
	closed      bool
	unsubscribe func()

	// genMu guards the generation. Guard holds it for reading while the
	// guarded function runs, so Deactivate cannot complete mid-delivery.
	genMu sync.RWMutex
	gen   uint64
	live  bool
	actID string

	activations  atomic.Uint64
	bindFailures atomic.Uint64
	delivered    atomic.Uint64
	dropped      atomic.Uint64
	released     atomic.Uint64
}

type activation struct {
	id   string
	gen  uint64
	mb   *mailbox
	seq  atomic.Uint64
	stop chan struct{}
	done chan struct{}
}

// NewSession creates an idle session and subscribes it to owner. The session
// deactivates itself when the owner reaches PhaseDestroyed.
func NewSession(owner lifecycle.Owner, src Source, analyzer Analyzer, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	facing := opts.Facing
	if facing == "" {
		facing = FacingFront
	}

	s := &Session{
		owner:    owner,
		src:      src,
		analyzer: analyzer,
		facing:   facing,
		logger:   logger.With("component", "capture", "source", src.Name()),
		metrics:  opts.Metrics,
	}
	s.unsubscribe = owner.Subscribe(func(p lifecycle.Phase) {
		if p == lifecycle.PhaseDestroyed {
			s.Deactivate()
		}
	})
	return s
}

// Activate binds the source and installs the analysis consumer. Results are
// delivered to sink. An active session is deactivated first.
//
// On failure the returned error matches ErrBindFailed and no binding is left
// behind.
func (s *Session) Activate(ctx context.Context, sink distance.Sink) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.closed {
		return s.bindFailed(ErrSessionClosed)
	}
	if s.act != nil {
		s.deactivateLocked("rebind")
	}
	if phase := s.owner.Phase(); phase != lifecycle.PhaseStarted {
		return s.bindFailed(fmt.Errorf("%w (phase %s)", ErrLifecycleNotStarted, phase))
	}

	id := uuid.NewString()
	act := &activation{
		id:   id,
		gen:  s.advance(id),
		mb:   newMailbox(),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	deliver := func(img Image) { s.publish(act, img) }
	if err := s.src.Bind(ctx, s.facing, deliver); err != nil {
		s.advance("")
		if uerr := s.src.Unbind(); uerr != nil {
			s.logger.Warn("unbind after failed bind", "error", uerr)
		}
		act.mb.close()
		return s.bindFailed(err)
	}

	s.act = act
	s.activations.Add(1)
	s.metrics.ObserveActivation(nil)
	go s.analyzeLoop(act, sink)

	s.logger.Info("capture activated",
		"activation_id", act.id,
		"generation", act.gen,
		"facing", s.facing,
	)
	return nil
}

func (s *Session) bindFailed(cause error) error {
	err := bindError(s.src.Name(), cause)
	s.bindFailures.Add(1)
	s.metrics.ObserveActivation(err)
	return err
}

// Deactivate invalidates the current generation, unbinds the source and
// waits for the analysis loop to exit. Any queued frame is released. It is
// idempotent and safe after a failed Activate.
func (s *Session) Deactivate() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.deactivateLocked("deactivate")
}

func (s *Session) deactivateLocked(reason string) {
	act := s.act
	if act == nil {
		return
	}
	s.act = nil

	// Invalidate first so nothing computed from this activation is applied
	// once the source is gone.
	gen := s.advance("")

	if err := s.src.Unbind(); err != nil {
		s.logger.Warn("unbind failed", "error", &CaptureError{Op: OpUnbind, Source: s.src.Name(), Err: err})
	}
	close(act.stop)
	act.mb.close()
	<-act.done

	s.logger.Info("capture deactivated",
		"activation_id", act.id,
		"reason", reason,
		"generation", gen,
	)
}

// Close deactivates the session and drops its lifecycle subscription.
// Activate fails after Close.
func (s *Session) Close() {
	s.Deactivate()

	s.opMu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.closed = true
	s.opMu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Guard runs fn only if gen is the live generation, and reports whether it
// ran. The generation cannot advance while fn runs, so fn must not call
// Activate or Deactivate.
func (s *Session) Guard(gen uint64, fn func()) bool {
	s.genMu.RLock()
	defer s.genMu.RUnlock()

	if !s.live || s.gen != gen {
		return false
	}
	fn()
	return true
}

// Generation returns the current generation.
func (s *Session) Generation() uint64 {
	s.genMu.RLock()
	defer s.genMu.RUnlock()
	return s.gen
}

// Active reports whether a generation is live.
func (s *Session) Active() bool {
	s.genMu.RLock()
	defer s.genMu.RUnlock()
	return s.live
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	s.genMu.RLock()
	st := Stats{Active: s.live, Generation: s.gen, ActivationID: s.actID}
	s.genMu.RUnlock()

	st.Activations = s.activations.Load()
	st.BindFailures = s.bindFailures.Load()
	st.Delivered = s.delivered.Load()
	st.Dropped = s.dropped.Load()
	st.Released = s.released.Load()
	return st
}

// advance starts a new generation. A non-empty id makes it live.
func (s *Session) advance(id string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.gen++
	s.live = id != ""
	s.actID = id
	return s.gen
}

func (s *Session) isCurrent(gen uint64) bool {
	s.genMu.RLock()
	defer s.genMu.RUnlock()
	return s.live && s.gen == gen
}

// publish wraps an image from the source and offers it to the mailbox.
func (s *Session) publish(act *activation, img Image) {
	f := &Frame{
		Data:       img.Data,
		Width:      img.Width,
		Height:     img.Height,
		Timestamp:  img.Timestamp,
		Seq:        act.seq.Add(1),
		Generation: act.gen,
		current:    s.isCurrent,
	}
	if img.Release != nil {
		f.onRelease(img.Release)
	}
	f.onRelease(func() { s.released.Add(1) })

	if act.mb.put(f) {
		s.dropped.Add(1)
		s.metrics.FrameDropped()
	}
}

// analyzeLoop is the single consumer of an activation. It hands the
// analyzer one frame at a time and waits for that frame to be released
// before taking the next.
func (s *Session) analyzeLoop(act *activation, sink distance.Sink) {
	defer close(act.done)

	for {
		f := act.mb.take()
		if f == nil {
			return
		}

		released := make(chan struct{})
		f.onRelease(func() { close(released) })

		s.delivered.Add(1)
		s.metrics.FrameDelivered()
		s.analyzer.Analyze(f, sink)

		select {
		case <-released:
		case <-act.stop:
			return
		}
	}
}
