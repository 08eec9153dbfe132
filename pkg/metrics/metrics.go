// Package metrics exposes Prometheus instrumentation for the distance
// monitoring pipeline. A nil *Metrics is valid and records nothing, so
// components can be built without metrics in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "screendistance"

// Analysis outcomes recorded by ObserveAnalysis.
const (
	OutcomeFace   = "face"
	OutcomeNoFace = "no_face"
	OutcomeError  = "error"
	OutcomeStale  = "stale"
)

// Metrics groups all pipeline collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ProximityTransitions *prometheus.CounterVec
	Activations          *prometheus.CounterVec
	FramesDelivered      prometheus.Counter
	FramesDropped        prometheus.Counter
	Analyses             *prometheus.CounterVec
	StaleDeliveries      prometheus.Counter
	WarningVisible       prometheus.Gauge
	LastDistance         prometheus.Gauge
}

// New creates and registers the pipeline collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ProximityTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proximity_transitions_total",
			Help:      "Proximity gate edges, by new state",
		}, []string{"state"}),
		Activations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_activations_total",
			Help:      "Capture session activation attempts, by result",
		}, []string{"result"}),
		FramesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_delivered_total",
			Help:      "Frames handed to the analyzer",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Frames replaced in the latest-only mailbox before analysis",
		}),
		Analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Completed frame analyses, by outcome",
		}, []string{"outcome"}),
		StaleDeliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_deliveries_total",
			Help:      "Samples dropped at the presentation boundary because their generation ended",
		}),
		WarningVisible: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "warning_visible",
			Help:      "1 while the too-close warning is shown",
		}),
		LastDistance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_distance_cm",
			Help:      "Most recent valid distance estimate in centimeters",
		}),
	}

	m.registry.MustRegister(
		m.ProximityTransitions,
		m.Activations,
		m.FramesDelivered,
		m.FramesDropped,
		m.Analyses,
		m.StaleDeliveries,
		m.WarningVisible,
		m.LastDistance,
		collectors.NewGoCollector(),
	)

	return m
}

// Registry returns the private registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveTransition counts a proximity edge.
func (m *Metrics) ObserveTransition(state string) {
	if m == nil {
		return
	}
	m.ProximityTransitions.WithLabelValues(state).Inc()
}

// ObserveActivation counts an activation attempt.
func (m *Metrics) ObserveActivation(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Activations.WithLabelValues("failed").Inc()
		return
	}
	m.Activations.WithLabelValues("ok").Inc()
}

// FrameDelivered counts a frame handed to the analyzer.
func (m *Metrics) FrameDelivered() {
	if m == nil {
		return
	}
	m.FramesDelivered.Inc()
}

// FrameDropped counts a frame replaced before analysis.
func (m *Metrics) FrameDropped() {
	if m == nil {
		return
	}
	m.FramesDropped.Inc()
}

// ObserveAnalysis counts a completed analysis.
func (m *Metrics) ObserveAnalysis(outcome string) {
	if m == nil {
		return
	}
	m.Analyses.WithLabelValues(outcome).Inc()
}

// StaleDelivery counts a sample dropped at the presentation boundary.
func (m *Metrics) StaleDelivery() {
	if m == nil {
		return
	}
	m.StaleDeliveries.Inc()
}

// SetWarning records warning visibility and the displayed distance.
func (m *Metrics) SetWarning(visible bool, cm float64) {
	if m == nil {
		return
	}
	if visible {
		m.WarningVisible.Set(1)
	} else {
		m.WarningVisible.Set(0)
	}
	if cm > 0 {
		m.LastDistance.Set(cm)
	}
}
