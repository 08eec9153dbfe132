// Package monitor wires the proximity gate, the capture session, the distance
// estimator and the warning presenter into a background screen-distance
// monitor.
//
// Three goroutines own the mutable state:
//   - the control loop owns the proximity gate and the IDLE/MONITORING state
//     and issues every capture command;
//   - the capture session's analysis loop feeds frames to the estimator;
//   - the presentation loop owns every warning mutation.
//
// Sensor readings and distance samples cross between them only as typed
// messages. The capture generation is the sole cancellation primitive for
// in-flight results: a sample is applied only while its generation is live.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-screendistance/pkg/capture"
	"github.com/teslashibe/go-screendistance/pkg/detection"
	"github.com/teslashibe/go-screendistance/pkg/distance"
	"github.com/teslashibe/go-screendistance/pkg/estimator"
	"github.com/teslashibe/go-screendistance/pkg/lifecycle"
	"github.com/teslashibe/go-screendistance/pkg/metrics"
	"github.com/teslashibe/go-screendistance/pkg/proximity"
	"github.com/teslashibe/go-screendistance/pkg/warning"
)

// ErrShutdown is returned by Start after Shutdown.
var ErrShutdown = errors.New("monitor: service shut down")

// DefaultWarningThresholdCm is the distance below which the warning shows.
const DefaultWarningThresholdCm = 30.0

const (
	controlBuffer = 32
	uiBuffer      = 32
)

// State is the orchestrator state.
type State int32

const (
	// StateIdle: camera released, waiting for a NEAR edge.
	StateIdle State = iota
	// StateMonitoring: capture is active (or being activated).
	StateMonitoring
)

// String returns the state name.
func (s State) String() string {
	if s == StateMonitoring {
		return "MONITORING"
	}
	return "IDLE"
}

// Config holds orchestrator settings.
type Config struct {
	// WarningThresholdCm shows the warning when 0 < distance < threshold.
	WarningThresholdCm float64 `yaml:"warning_threshold_cm" json:"warning_threshold_cm"`

	Gate      proximity.GateConfig `yaml:"gate" json:"gate"`
	Facing    capture.Facing       `yaml:"facing" json:"facing"`
	Estimator estimator.Config     `yaml:"estimator" json:"estimator"`
}

// DefaultConfig returns the standard orchestrator settings.
func DefaultConfig() Config {
	return Config{
		WarningThresholdCm: DefaultWarningThresholdCm,
		Gate:               proximity.DefaultGateConfig(),
		Facing:             capture.FacingFront,
		Estimator:          estimator.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.WarningThresholdCm <= 0 {
		return fmt.Errorf("monitor config: warning_threshold_cm must be positive, got %v", c.WarningThresholdCm)
	}
	return c.Estimator.Validate()
}

// Components are the platform capabilities the service drives.
type Components struct {
	Sensor   proximity.Sensor
	Source   capture.Source
	Detector detection.Detector
	Surface  warning.Surface
}

// Options are optional service hooks.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// OnVisibility is called on the presentation loop after every warning
	// change.
	OnVisibility func(warning.Visibility)
}

// Status is a snapshot of the service for status endpoints.
type Status struct {
	State        string             `json:"state"`
	Lifecycle    string             `json:"lifecycle"`
	Proximity    string             `json:"proximity"`
	Sensor       string             `json:"sensor"`
	ThresholdCm  float64            `json:"threshold_cm"`
	LastDistance float64            `json:"last_distance_cm"`
	Warning      warning.Visibility `json:"warning"`
	Capture      capture.Stats      `json:"capture"`
}

// Service is the screen-distance monitor.
type Service struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	bridge    *lifecycle.Bridge
	sensor    proximity.Sensor
	gate      *proximity.Gate
	session   *capture.Session
	estimator *estimator.Estimator
	presenter *warning.Presenter

	controlCh chan controlMsg
	uiCh      chan uiMsg

	state        atomic.Int32
	threshold    atomic.Uint64 // math.Float64bits
	lastDistance atomic.Uint64 // math.Float64bits

	mu       sync.Mutex
	running  bool
	closing  bool
	loopCtx  context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	shutOnce sync.Once
	shutErr  error
}

type controlMsg interface{ control() }

type readingMsg struct{ reading proximity.Reading }

// stopMsg returns the control loop to IDLE. done is closed once capture has
// been deactivated. final makes the loop ignore any further readings.
type stopMsg struct {
	final bool
	done  chan struct{}
}

func (readingMsg) control() {}
func (stopMsg) control()    {}

type uiMsg interface{ ui() }

type sampleMsg struct{ sample distance.Sample }

// hideMsg hides the warning. done, if set, is closed after the hide.
type hideMsg struct{ done chan struct{} }

func (sampleMsg) ui() {}
func (hideMsg) ui()   {}

// New assembles a service from its components. Nothing runs until Create
// and Start are called.
func New(cfg Config, c Components, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WarningThresholdCm <= 0 {
		cfg.WarningThresholdCm = DefaultWarningThresholdCm
	}

	s := &Service{
		cfg:       cfg,
		logger:    logger.With("component", "monitor"),
		metrics:   opts.Metrics,
		bridge:    lifecycle.NewBridge(logger),
		sensor:    c.Sensor,
		gate:      proximity.NewGate(cfg.Gate),
		estimator: estimator.New(c.Detector, cfg.Estimator, logger, opts.Metrics),
		presenter: warning.NewPresenter(c.Surface, logger),
		controlCh: make(chan controlMsg, controlBuffer),
		uiCh:      make(chan uiMsg, uiBuffer),
	}
	s.session = capture.NewSession(s.bridge, c.Source, s.estimator, capture.Options{
		Facing:  cfg.Facing,
		Logger:  logger,
		Metrics: opts.Metrics,
	})
	s.presenter.OnChange = func(v warning.Visibility) {
		s.metrics.SetWarning(v.Shown, v.Distance)
		if opts.OnVisibility != nil {
			opts.OnVisibility(v)
		}
	}
	s.threshold.Store(math.Float64bits(cfg.WarningThresholdCm))
	return s
}

// WarningThreshold returns the distance below which the warning shows.
func (s *Service) WarningThreshold() float64 {
	return math.Float64frombits(s.threshold.Load())
}

// SetWarningThreshold changes the warning distance. It applies from the next
// sample on; a warning already shown stays until that sample arrives.
func (s *Service) SetWarningThreshold(cm float64) error {
	if cm <= 0 || math.IsNaN(cm) || math.IsInf(cm, 0) {
		return fmt.Errorf("monitor: warning threshold must be positive, got %v", cm)
	}
	old := math.Float64frombits(s.threshold.Swap(math.Float64bits(cm)))
	if old != cm {
		s.logger.Info("warning threshold changed", "from_cm", old, "to_cm", cm)
	}
	return nil
}

// Lifecycle returns the host lifecycle the capture session is bound to.
func (s *Service) Lifecycle() lifecycle.Owner { return s.bridge }

// Create reports that the host process was created.
func (s *Service) Create() error {
	if err := s.bridge.OnHostCreate(); err != nil {
		return fmt.Errorf("monitor: create: %w", err)
	}
	return nil
}

// Start handles a start command: it starts the lifecycle, launches the
// control and presentation loops on first use and registers the proximity
// sensor. Repeated start commands are accepted.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return ErrShutdown
	}
	s.mu.Unlock()

	if err := s.bridge.OnHostStart(); err != nil {
		return fmt.Errorf("monitor: start: %w", err)
	}

	s.mu.Lock()
	if !s.running {
		s.loopCtx, s.cancel = context.WithCancel(ctx)
		s.running = true
		s.wg.Add(2)
		go s.controlLoop(s.loopCtx)
		go s.uiLoop(s.loopCtx)
	}
	loopCtx := s.loopCtx
	s.mu.Unlock()

	if err := s.sensor.Register(loopCtx, s.listener(loopCtx)); err != nil {
		return fmt.Errorf("monitor: register sensor %s: %w", s.sensor.Name(), err)
	}

	s.logger.Info("monitoring started",
		"sensor", s.sensor.Name(),
		"threshold_cm", s.WarningThreshold(),
	)
	return nil
}

// StopMonitoring handles a stop command: the sensor is unregistered, capture
// is deactivated and the warning hidden. The service can be started again.
func (s *Service) StopMonitoring() error {
	err := s.sensor.Unregister()
	if err != nil {
		err = fmt.Errorf("monitor: unregister sensor: %w", err)
	}

	if !s.stopCapture(false) {
		s.session.Deactivate()
		s.hideNow()
	}

	s.logger.Info("monitoring stopped")
	return err
}

// Shutdown tears the service down in order: capture is deactivated, the
// warning hidden, the sensor unregistered, outstanding work cancelled, and
// finally DESTROYED is published. It waits for every goroutine the service
// started. Safe to call more than once.
func (s *Service) Shutdown() error {
	s.shutOnce.Do(func() {
		s.shutErr = s.shutdown()
	})
	return s.shutErr
}

func (s *Service) shutdown() error {
	s.mu.Lock()
	s.closing = true
	cancel := s.cancel
	s.mu.Unlock()

	var errs []error

	if !s.stopCapture(true) {
		s.session.Deactivate()
	}
	s.hideNow()

	if err := s.sensor.Unregister(); err != nil {
		errs = append(errs, fmt.Errorf("monitor: unregister sensor: %w", err))
	}

	if cancel != nil {
		cancel()
	}

	if s.bridge.Phase() != lifecycle.PhaseDestroyed {
		if err := s.bridge.OnHostDestroy(); err != nil {
			s.logger.Debug("destroy before create", "error", err)
		}
	}
	s.bridge.Close()
	s.session.Close()

	s.wg.Wait()
	s.estimator.Wait()

	s.logger.Info("monitor shut down")
	return errors.Join(errs...)
}

// stopCapture asks the control loop to go IDLE and waits for it. It reports
// false when the loops are not running.
func (s *Service) stopCapture(final bool) bool {
	s.mu.Lock()
	running, ctx := s.running, s.loopCtx
	s.mu.Unlock()
	if !running {
		return false
	}

	done := make(chan struct{})
	select {
	case s.controlCh <- stopMsg{final: final, done: done}:
	case <-ctx.Done():
		return false
	}
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// hideNow hides the warning on the presentation loop and waits, or hides
// directly when the loop is not running.
func (s *Service) hideNow() {
	s.mu.Lock()
	running, ctx := s.running, s.loopCtx
	s.mu.Unlock()

	if running {
		done := make(chan struct{})
		select {
		case s.uiCh <- hideMsg{done: done}:
			select {
			case <-done:
				return
			case <-ctx.Done():
			}
		case <-ctx.Done():
		}
	}
	if err := s.presenter.Hide(); err != nil {
		s.logger.Warn("hide warning failed", "error", err)
	}
}

// listener forwards sensor readings to the control loop. It never touches
// service state.
func (s *Service) listener(ctx context.Context) proximity.Listener {
	return func(r proximity.Reading) {
		select {
		case s.controlCh <- readingMsg{reading: r}:
		case <-ctx.Done():
		}
	}
}

// sink forwards distance samples to the presentation loop.
func (s *Service) sink(ctx context.Context) distance.Sink {
	return func(sample distance.Sample) {
		select {
		case s.uiCh <- sampleMsg{sample: sample}:
		case <-ctx.Done():
		}
	}
}

func (s *Service) controlLoop(ctx context.Context) {
	defer s.wg.Done()

	final := false
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.controlCh:
			switch m := msg.(type) {
			case readingMsg:
				if !final {
					s.handleReading(ctx, m.reading)
				}
			case stopMsg:
				final = final || m.final
				s.goIdle(ctx)
				s.gate.Reset()
				close(m.done)
			}
		}
	}
}

func (s *Service) handleReading(ctx context.Context, r proximity.Reading) {
	tr, ok := s.gate.Feed(r.Distance, r.MaxRange)
	if !ok {
		return
	}
	s.metrics.ObserveTransition(tr.To.String())
	s.logger.Debug("proximity edge", "from", tr.From, "to", tr.To, "raw", tr.Raw, "max_range", tr.MaxRange)

	switch tr.To {
	case proximity.Near:
		s.onNear(ctx)
	case proximity.Far:
		s.goIdle(ctx)
	}
}

func (s *Service) onNear(ctx context.Context) {
	if State(s.state.Load()) != StateIdle {
		return
	}
	s.state.Store(int32(StateMonitoring))

	if err := s.session.Activate(ctx, s.sink(ctx)); err != nil {
		s.state.Store(int32(StateIdle))
		s.logger.Warn("camera bind failed, waiting for next near edge", "error", err)
		return
	}
	s.logger.Info("monitoring", "generation", s.session.Generation())
}

// goIdle releases the camera and then hides the warning. The hide is queued
// behind any samples already on the presentation loop; those are stale by
// now and will be dropped.
func (s *Service) goIdle(ctx context.Context) {
	s.state.Store(int32(StateIdle))
	s.session.Deactivate()

	select {
	case s.uiCh <- hideMsg{}:
	case <-ctx.Done():
	}
}

func (s *Service) uiLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.uiCh:
			switch m := msg.(type) {
			case sampleMsg:
				s.present(m.sample)
			case hideMsg:
				if err := s.presenter.Hide(); err != nil {
					s.logger.Warn("hide warning failed", "error", err)
				}
				if m.done != nil {
					close(m.done)
				}
			}
		}
	}
}

func (s *Service) present(sample distance.Sample) {
	applied := s.session.Guard(sample.Generation, func() {
		var err error
		cm := sample.Centimeters
		if cm > 0 && cm < s.WarningThreshold() {
			err = s.presenter.Show(cm)
		} else {
			err = s.presenter.Hide()
		}
		if err != nil {
			s.logger.Warn("update warning failed", "error", err)
		}
		if sample.Valid() {
			s.lastDistance.Store(math.Float64bits(cm))
		}
	})
	if !applied {
		s.metrics.StaleDelivery()
		s.logger.Debug("dropping stale sample", "sample", sample.String())
	}
}

// State returns the orchestrator state.
func (s *Service) State() State {
	return State(s.state.Load())
}

// Status returns a snapshot for status endpoints.
func (s *Service) Status() Status {
	return Status{
		State:        s.State().String(),
		Lifecycle:    s.bridge.Phase().String(),
		Proximity:    s.gate.State().String(),
		Sensor:       s.sensor.Name(),
		ThresholdCm:  s.WarningThreshold(),
		LastDistance: math.Float64frombits(s.lastDistance.Load()),
		Warning:      s.presenter.Visibility(),
		Capture:      s.session.Stats(),
	}
}
