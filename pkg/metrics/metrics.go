package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Tracking pipeline metrics
	Extractions        *prometheus.CounterVec
	Validations        *prometheus.CounterVec
	ValidationWarnings *prometheus.CounterVec
	AnalyticsEvents    *prometheus.CounterVec
	ReadinessWaits     *prometheus.CounterVec
	AnalyticsReady     prometheus.Gauge
	SessionStoreOps    *prometheus.CounterVec
	AnalyticsQueued    prometheus.Gauge

	// External API metrics
	ExternalAPICalls    *prometheus.CounterVec
	ExternalAPIDuration *prometheus.HistogramVec
	ExternalAPIFailures *prometheus.CounterVec
}

// New registers the collectors on the default prometheus registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors on reg. Tests pass a fresh
// prometheus.NewRegistry() so instances do not collide.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		Extractions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracking_extractions_total",
				Help: "Total number of tracking parameter extractions",
			},
			[]string{"outcome"},
		),

		Validations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attribution_validations_total",
				Help: "Total number of attribution validations by result",
			},
			[]string{"result"},
		),

		ValidationWarnings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attribution_validation_warnings_total",
				Help: "Total number of attribution warnings raised by kind",
			},
			[]string{"kind"},
		),

		AnalyticsEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_events_total",
				Help: "Total number of analytics dispatch attempts by event kind and outcome",
			},
			[]string{"kind", "outcome"},
		),

		ReadinessWaits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_readiness_waits_total",
				Help: "Total number of analytics readiness waits by outcome",
			},
			[]string{"outcome"},
		),

		AnalyticsReady: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "analytics_ready",
				Help: "1 once the analytics binding has been observed ready",
			},
		),

		SessionStoreOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_store_operations_total",
				Help: "Total number of session attribution store operations",
			},
			[]string{"operation", "status"},
		),

		AnalyticsQueued: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "analytics_queue_depth",
				Help: "Number of analytics events waiting to be flushed",
			},
		),

		ExternalAPICalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "external_api_calls_total",
				Help: "Total number of external API calls",
			},
			[]string{"api", "status"},
		),

		ExternalAPIDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "external_api_duration_seconds",
				Help:    "External API call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"api"},
		),

		ExternalAPIFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "external_api_failures_total",
				Help: "Total number of external API failures",
			},
			[]string{"api", "error_type"},
		),
	}
}

// HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (m *Metrics) RecordExtraction(found int) {
	outcome := "empty"
	if found > 0 {
		outcome = "found"
	}
	m.Extractions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordValidation(complete bool) {
	result := "incomplete"
	if complete {
		result = "complete"
	}
	m.Validations.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordValidationWarning(kind string) {
	m.ValidationWarnings.WithLabelValues(kind).Inc()
}

// Dispatch outcome per event kind
func (m *Metrics) RecordAnalyticsEvent(kind, outcome string) {
	m.AnalyticsEvents.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) RecordReadinessWait(ready bool) {
	outcome := "timeout"
	if ready {
		outcome = "ready"
		m.AnalyticsReady.Set(1)
	}
	m.ReadinessWaits.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordSessionStoreOp(operation, status string) {
	m.SessionStoreOps.WithLabelValues(operation, status).Inc()
}

func (m *Metrics) SetAnalyticsQueued(n int) {
	m.AnalyticsQueued.Set(float64(n))
}

// External API call metrics
func (m *Metrics) RecordExternalAPICall(api, status string, duration time.Duration) {
	m.ExternalAPICalls.WithLabelValues(api, status).Inc()
	m.ExternalAPIDuration.WithLabelValues(api).Observe(duration.Seconds())
}

// External API failure metrics
func (m *Metrics) RecordExternalAPIFailure(api, errorType string) {
	m.ExternalAPIFailures.WithLabelValues(api, errorType).Inc()
}

// HTTP requests in flight counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// HTTP requests in flight counter
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}
