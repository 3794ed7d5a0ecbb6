package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	RiskLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "quantshield",
			Subsystem: "risk",
			Name:      "latency_seconds",
			Help:      "Latency of risk endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	RiskErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quantshield",
			Subsystem: "risk",
			Name:      "errors_total",
			Help:      "Errors by risk endpoint",
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(RiskLatency, RiskErrors)
	})
}
