// Package estimator turns captured frames into face-to-screen distance
// samples. Detection runs off the capture goroutine; results from frames whose
// capture generation has ended are dropped.
package estimator

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-screendistance/pkg/capture"
	"github.com/teslashibe/go-screendistance/pkg/detection"
	"github.com/teslashibe/go-screendistance/pkg/distance"
	"github.com/teslashibe/go-screendistance/pkg/metrics"
)

// ErrDetectTimeout is reported when the detector exceeds Config.DetectTimeout.
var ErrDetectTimeout = errors.New("estimator: detection timed out")

// Config holds estimator parameters.
type Config struct {
	// DistanceConstant is K in distance_cm = K / face_height_px.
	DistanceConstant float64 `yaml:"distance_constant" json:"distance_constant"`

	// DetectTimeout bounds a single detector call. 0 disables the bound.
	DetectTimeout time.Duration `yaml:"detect_timeout" json:"detect_timeout"`
}

// DefaultConfig returns the standard estimator configuration.
func DefaultConfig() Config {
	return Config{
		DistanceConstant: distance.DefaultConstant,
		DetectTimeout:    2 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.DistanceConstant <= 0 {
		return fmt.Errorf("estimator config: distance_constant must be positive, got %v", c.DistanceConstant)
	}
	if c.DetectTimeout < 0 {
		return fmt.Errorf("estimator config: detect_timeout must not be negative")
	}
	return nil
}

// Estimator analyzes frames with a face detector.
type Estimator struct {
	detector detection.Detector
	config   Config
	logger   *slog.Logger
	metrics  *metrics.Metrics

	wg sync.WaitGroup
}

// New creates an estimator. A zero DistanceConstant uses the default.
func New(detector detection.Detector, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Estimator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DistanceConstant <= 0 {
		cfg.DistanceConstant = distance.DefaultConstant
	}
	return &Estimator{
		detector: detector,
		config:   cfg,
		logger:   logger.With("component", "estimator"),
		metrics:  m,
	}
}

// Analyze starts detection on frame and returns immediately. When detection
// completes, one sample is delivered to sink unless the frame's generation has
// ended. The frame is released exactly once whatever the outcome.
func (e *Estimator) Analyze(frame *capture.Frame, sink distance.Sink) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.analyze(frame, sink)
	}()
}

func (e *Estimator) analyze(frame *capture.Frame, sink distance.Sink) {
	defer frame.Release()

	dets, err := e.detect(frame.Data)

	if !frame.Current() {
		e.metrics.ObserveAnalysis(metrics.OutcomeStale)
		e.logger.Debug("discarding result from ended generation",
			"generation", frame.Generation,
			"seq", frame.Seq,
		)
		return
	}

	cm, outcome := e.measure(dets, err)
	if err != nil {
		e.logger.Warn("face detection failed", "seq", frame.Seq, "error", err)
	}
	e.metrics.ObserveAnalysis(outcome)

	if sink != nil {
		sink(distance.Sample{
			Centimeters: cm,
			Generation:  frame.Generation,
			Seq:         frame.Seq,
		})
	}
}

// measure maps a detector result to a distance. Only the first face counts.
func (e *Estimator) measure(dets []detection.Detection, err error) (float64, string) {
	if err != nil {
		return distance.Sentinel, metrics.OutcomeError
	}
	if len(dets) == 0 {
		return distance.Sentinel, metrics.OutcomeNoFace
	}
	cm := distance.Estimate(e.config.DistanceConstant, dets[0].Height())
	if cm == distance.Sentinel {
		return cm, metrics.OutcomeNoFace
	}
	return cm, metrics.OutcomeFace
}

func (e *Estimator) detect(data []byte) ([]detection.Detection, error) {
	if e.config.DetectTimeout <= 0 {
		return e.detector.Detect(data)
	}

	type result struct {
		dets []detection.Detection
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		dets, err := e.detector.Detect(data)
		ch <- result{dets, err}
	}()

	timer := time.NewTimer(e.config.DetectTimeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r.dets, r.err
	case <-timer.C:
		return nil, fmt.Errorf("%w after %s", ErrDetectTimeout, e.config.DetectTimeout)
	}
}

// EstimateImage runs detection synchronously on a single JPEG and returns the
// distance for the first face (or distance.Sentinel) with all detections.
func (e *Estimator) EstimateImage(jpeg []byte) (float64, []detection.Detection, error) {
	dets, err := e.detect(jpeg)
	if err != nil {
		return distance.Sentinel, nil, err
	}
	cm, _ := e.measure(dets, nil)
	return cm, dets, nil
}

// Wait blocks until every started analysis has finished.
func (e *Estimator) Wait() {
	e.wg.Wait()
}

var _ capture.Analyzer = (*Estimator)(nil)
