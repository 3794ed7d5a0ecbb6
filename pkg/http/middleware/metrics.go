package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	applogger "QuantShield/pkg/logger"
)

var (
	metricsOnce sync.Once

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	httpInFlight      *prometheus.GaugeVec
	httpResponseSize  *prometheus.HistogramVec
)

func registerHTTPMetrics() {
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quantshield_http_requests_total",
		Help: "HTTP requests by route, method, and status",
	}, []string{"route", "method", "status"})
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quantshield_http_request_duration_seconds",
		Help:    "HTTP request duration",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"route", "method", "class"})
	httpInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quantshield_http_in_flight_requests",
		Help: "In-flight HTTP requests",
	}, []string{"route", "method"})
	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quantshield_http_response_size_bytes",
		Help:    "HTTP response size",
		Buckets: []float64{200, 500, 1_000, 5_000, 10_000, 50_000, 100_000, 500_000},
	}, []string{"route", "method", "class"})
}

// Metrics records per-route Prometheus metrics and logs 5xx and slow
// requests. Route labels come from echo's matched path template, which
// keeps cardinality bounded regardless of request URLs.
func Metrics(l *applogger.Logger, slowThreshold time.Duration) echo.MiddlewareFunc {
	metricsOnce.Do(registerHTTPMetrics)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			method := c.Request().Method

			httpInFlight.WithLabelValues(route, method).Inc()
			start := time.Now()

			err := next(c)

			elapsed := time.Since(start)
			status := c.Response().Status
			class := statusClass(status)

			httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
			httpDuration.WithLabelValues(route, method, class).Observe(elapsed.Seconds())
			httpResponseSize.WithLabelValues(route, method, class).Observe(float64(c.Response().Size))
			httpInFlight.WithLabelValues(route, method).Dec()

			if l != nil {
				switch {
				case status >= 500:
					l.Error("http request failed",
						applogger.String("route", route),
						applogger.String("method", method),
						applogger.Int("status", status),
						applogger.Duration("duration_ms", elapsed))
				case slowThreshold > 0 && elapsed >= slowThreshold:
					l.Warn("http request slow",
						applogger.String("route", route),
						applogger.String("method", method),
						applogger.Int("status", status),
						applogger.Duration("duration_ms", elapsed))
				}
			}
			return err
		}
	}
}

func statusClass(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
