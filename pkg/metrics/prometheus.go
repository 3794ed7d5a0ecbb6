package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	messagesSent *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
	predictions  *prometheus.CounterVec
	panelRows    prometheus.Gauge
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		messagesSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantshield_messages_sent_total",
				Help: "Total number of messages sent to backend",
			},
			[]string{"backend", "symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantshield_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quantshield_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quantshield_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		predictions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantshield_predictions_total",
				Help: "Total number of risk predictions served, by class",
			},
			[]string{"risk_class"},
		),
		panelRows: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "quantshield_panel_rows",
				Help: "Row count of the most recent panel build",
			},
		),
	}
}

// RecordMessageSent records a message sent to a backend.
func (r *Recorder) RecordMessageSent(backend, symbol string) {
	r.messagesSent.WithLabelValues(backend, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordPrediction records a served prediction by risk class.
func (r *Recorder) RecordPrediction(riskClass string) {
	r.predictions.WithLabelValues(riskClass).Inc()
}

// RecordPanelRows records the size of the latest panel build.
func (r *Recorder) RecordPanelRows(n int) {
	r.panelRows.Set(float64(n))
}
