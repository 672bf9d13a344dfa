package telemetry

import (
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes run progress as Prometheus collectors on a private registry,
// so several simulations in one process never collide.
type Metrics struct {
	Registry *prometheus.Registry

	steps        prometheus.Counter
	nonFinite    prometheus.Counter
	events       *prometheus.CounterVec
	energy       prometheus.Gauge
	windStrength prometheus.Gauge
	stepDuration prometheus.Histogram
}

// NewMetrics creates and registers the run collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "squall_steps_total",
			Help: "Total number of completed simulation steps",
		}),
		nonFinite: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "squall_energy_non_finite_total",
			Help: "Steps whose energy was NaN or Inf",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "squall_events_total",
			Help: "Detected run events by type",
		}, []string{"type"}),
		energy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "squall_energy",
			Help: "Turbulent energy after the most recent step",
		}),
		windStrength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "squall_wind_strength",
			Help: "Wind strength applied in the most recent step",
		}),
		stepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "squall_step_duration_seconds",
			Help:    "Wall-clock duration of one simulation step",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
	}
	m.Registry.MustRegister(m.steps, m.nonFinite, m.events, m.energy, m.windStrength, m.stepDuration)
	return m
}

// ObserveStep records one completed step. Safe to call on a nil receiver.
func (m *Metrics) ObserveStep(energy, wind float64, took time.Duration) {
	if m == nil {
		return
	}
	m.steps.Inc()
	m.energy.Set(energy)
	m.windStrength.Set(wind)
	m.stepDuration.Observe(took.Seconds())
	if math.IsNaN(energy) || math.IsInf(energy, 0) {
		m.nonFinite.Inc()
	}
}

// ObserveEvent counts a detected event.
func (m *Metrics) ObserveEvent(e Event) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(string(e.Type)).Inc()
}

// WriteTextfile writes the current metric values in the text exposition
// format, for pickup by a node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
