// Package metrics exposes guidance-loop Prometheus metrics on a private
// registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/rockguide/pkg/feedback"
	"github.com/teslashibe/rockguide/pkg/sequencer"
	"github.com/teslashibe/rockguide/pkg/session"
	"github.com/teslashibe/rockguide/pkg/target"
)

const namespace = "rockguide"

// Metrics records sequencing and feedback activity. It implements
// sequencer.Observer, feedback.Observer and session.Publisher.
type Metrics struct {
	registry *prometheus.Registry

	ticks          *prometheus.CounterVec
	targetsReached prometheus.Counter
	completions    prometheus.Counter
	index          prometheus.Gauge
	length         prometheus.Gauge
	channel        *prometheus.GaugeVec
	pulseActive    prometheus.Gauge
	pulsesFired    prometheus.Counter
	distance       prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Guidance ticks by outcome.",
		}, []string{"outcome"}),
		targetsReached: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "targets_reached_total",
			Help:      "Targets touched in order.",
		}),
		completions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequences_completed_total",
			Help:      "Sequences in which every target was touched.",
		}),
		index: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sequence_index",
			Help:      "Index of the current target.",
		}),
		length: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sequence_length",
			Help:      "Number of targets in the sequence.",
		}),
		channel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feedback_value",
			Help:      "Last value applied on each feedback channel.",
		}, []string{"channel"}),
		pulseActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pulse_active",
			Help:      "1 while the pulse loop is running.",
		}),
		pulsesFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pulses_fired_total",
			Help:      "Pulse cues played.",
		}),
		distance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_distance",
			Help:      "Distance from the closer hand to the current target.",
		}),
	}

	m.registry.MustRegister(
		m.ticks,
		m.targetsReached,
		m.completions,
		m.index,
		m.length,
		m.channel,
		m.pulseActive,
		m.pulsesFired,
		m.distance,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// TickDone implements sequencer.Observer.
func (m *Metrics) TickDone(outcome sequencer.TickOutcome) {
	m.ticks.WithLabelValues(outcome.String()).Inc()
}

// TargetReached implements sequencer.Observer.
func (m *Metrics) TargetReached(index int, _ *target.Target) {
	m.targetsReached.Inc()
	m.index.Set(float64(index + 1))
}

// SequenceComplete implements sequencer.Observer.
func (m *Metrics) SequenceComplete() {
	m.completions.Inc()
}

// FeedbackApplied implements feedback.Observer.
func (m *Metrics) FeedbackApplied(ch feedback.Channel, value float64) {
	m.channel.WithLabelValues(string(ch)).Set(value)
}

// PulseChanged implements feedback.Observer.
func (m *Metrics) PulseChanged(active bool) {
	if active {
		m.pulseActive.Set(1)
	} else {
		m.pulseActive.Set(0)
	}
}

// PulseFired implements feedback.Observer.
func (m *Metrics) PulseFired() {
	m.pulsesFired.Inc()
}

// Publish implements session.Publisher.
func (m *Metrics) Publish(s session.Status) {
	m.index.Set(float64(s.Sequence.Index))
	m.length.Set(float64(s.Sequence.Len))
	if s.Sequence.BodyVisible {
		m.distance.Set(s.Sequence.Distance)
	}
}

var (
	_ sequencer.Observer = (*Metrics)(nil)
	_ feedback.Observer  = (*Metrics)(nil)
	_ session.Publisher  = (*Metrics)(nil)
)
