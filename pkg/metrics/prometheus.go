package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "coinpulse"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	observations *prometheus.CounterVec
	signals      *prometheus.CounterVec
	decisions    *prometheus.CounterVec
	throttle     *prometheus.CounterVec
	deliveries   *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a recorder registered on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		observations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "observations_total",
				Help:      "Observations received, by kind and result",
			},
			[]string{"kind", "result"},
		),
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_total",
				Help:      "Signals scored and persisted",
			},
			[]string{"kind"},
		),
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Threshold decisions by kind and reason",
			},
			[]string{"kind", "reason"},
		),
		throttle: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "throttle_results_total",
				Help:      "Dispatch throttler outcomes",
			},
			[]string{"result"},
		),
		deliveries: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deliveries_total",
				Help:      "Channel delivery attempts by channel and result",
			},
			[]string{"channel", "result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordObservation(kind, result string) {
	r.observations.WithLabelValues(kind, result).Inc()
}

func (r *Recorder) RecordSignal(kind string) {
	r.signals.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordDecision(kind, reason string) {
	r.decisions.WithLabelValues(kind, reason).Inc()
}

// RecordThrottle records admitted, suppressed, conflict or error.
func (r *Recorder) RecordThrottle(result string) {
	r.throttle.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordDelivery(channel, result string) {
	r.deliveries.WithLabelValues(channel, result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Noop discards everything.
type Noop struct{}

func (Noop) RecordObservation(string, string) {}
func (Noop) RecordSignal(string)              {}
func (Noop) RecordDecision(string, string)    {}
func (Noop) RecordThrottle(string)            {}
func (Noop) RecordDelivery(string, string)    {}
func (Noop) RecordError(string)               {}
func (Noop) RecordLatency(string, float64)    {}
