package service

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the agent.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	capturesTotal       prometheus.Counter
	captureFailures     prometheus.Counter
	deliveriesTotal     *prometheus.CounterVec
	deliveryFailures    prometheus.Counter
	drainsTotal         prometheus.Counter
	pendingArtifacts    prometheus.Gauge
	connectivityOnline  prometheus.Gauge
	locationResolutions *prometheus.CounterVec
}

// NewMetricsService registers the agent's Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	capturesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "captures_total",
		Help: "Total successful photo captures",
	})

	captureFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "capture_failures_total",
		Help: "Total failed capture attempts",
	})

	deliveriesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deliveries_total",
		Help: "Total artifacts confirmed delivered",
	}, []string{"kind"})

	deliveryFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "delivery_failures_total",
		Help: "Total failed delivery attempts",
	})

	drainsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "drains_total",
		Help: "Total drain passes executed",
	})

	pendingArtifacts := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pending_artifacts",
		Help: "Artifacts currently queued for delivery",
	})

	connectivityOnline := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "connectivity_online",
		Help: "1 when the last connectivity probe succeeded",
	})

	locationResolutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "location_resolutions_total",
		Help: "Location resolutions by source",
	}, []string{"source"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, capturesTotal, captureFailures,
		deliveriesTotal, deliveryFailures, drainsTotal, pendingArtifacts,
		connectivityOnline, locationResolutions, goroutines)

	return &MetricsService{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		capturesTotal:       capturesTotal,
		captureFailures:     captureFailures,
		deliveriesTotal:     deliveriesTotal,
		deliveryFailures:    deliveryFailures,
		drainsTotal:         drainsTotal,
		pendingArtifacts:    pendingArtifacts,
		connectivityOnline:  connectivityOnline,
		locationResolutions: locationResolutions,
	}
}

// Handler serves the Prometheus exposition endpoint.
func (m *MetricsService) Handler() http.Handler {
	return m.handler
}

// ObserveHTTPRequest records one HTTP request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := prometheus.Labels{"method": method, "path": path, "status": statusLabel(status)}
	m.requestDuration.With(labels).Observe(duration.Seconds())
	m.requestTotal.With(labels).Inc()
}

// ObserveCapture records a capture attempt outcome.
func (m *MetricsService) ObserveCapture(ok bool) {
	if ok {
		m.capturesTotal.Inc()
		return
	}
	m.captureFailures.Inc()
}

// ObserveDelivery records a delivery attempt outcome.
func (m *MetricsService) ObserveDelivery(kind string, ok bool) {
	if ok {
		m.deliveriesTotal.WithLabelValues(kind).Inc()
		return
	}
	m.deliveryFailures.Inc()
}

// ObserveDrain records one drain pass.
func (m *MetricsService) ObserveDrain() {
	m.drainsTotal.Inc()
}

// SetPending updates the queued-artifact gauge.
func (m *MetricsService) SetPending(n int) {
	m.pendingArtifacts.Set(float64(n))
}

// SetOnline updates the connectivity gauge.
func (m *MetricsService) SetOnline(online bool) {
	if online {
		m.connectivityOnline.Set(1)
		return
	}
	m.connectivityOnline.Set(0)
}

// ObserveLocationResolution records which source produced a fix.
func (m *MetricsService) ObserveLocationResolution(source string) {
	m.locationResolutions.WithLabelValues(source).Inc()
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
