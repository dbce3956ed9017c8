package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight *prometheus.GaugeVec

	// Business metrics
	TasksTotal        *prometheus.CounterVec
	TaskDuration      *prometheus.HistogramVec
	RunningTasks      prometheus.Gauge
	ApplySubmissions  *prometheus.CounterVec
	ReportGenerations *prometheus.CounterVec

	// Error metrics
	ErrorsTotal *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	Namespace string `json:"namespace"`
	Enabled   bool   `json:"enabled"`
}

// DefaultConfig returns default metrics configuration
func DefaultConfig() *Config {
	return &Config{
		Namespace: "loadpress",
		Enabled:   true,
	}
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(config *Config) *Metrics {
	if config == nil {
		config = DefaultConfig()
	}

	if !config.Enabled {
		return &Metrics{}
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestsInFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
			[]string{"method", "path"},
		),
		TasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "tasks_total",
				Help:      "Total number of load-test task executions by outcome",
			},
			[]string{"status"},
		),
		TaskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Name:      "task_duration_seconds",
				Help:      "Load-test task execution duration in seconds",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"status"},
		),
		RunningTasks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Name:      "running_tasks",
				Help:      "Number of tasks currently executing",
			},
		),
		ApplySubmissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "apply_submissions_total",
				Help:      "Total number of apply request submissions and audits",
			},
			[]string{"operation", "outcome"},
		),
		ReportGenerations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "report_generations_total",
				Help:      "Total number of report generations by kind and outcome",
			},
			[]string{"kind", "status"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "errors_total",
				Help:      "Total number of errors by component and type",
			},
			[]string{"component", "error_type"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.TasksTotal,
		m.TaskDuration,
		m.RunningTasks,
		m.ApplySubmissions,
		m.ReportGenerations,
		m.ErrorsTotal,
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if m.HTTPRequestsTotal == nil {
		return
	}
	status := strconv.Itoa(statusCode)
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordTask records a completed task execution
func (m *Metrics) RecordTask(status string, duration time.Duration) {
	if m.TasksTotal == nil {
		return
	}
	m.TasksTotal.WithLabelValues(status).Inc()
	m.TaskDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// TaskStarted increments the running-task gauge
func (m *Metrics) TaskStarted() {
	if m.RunningTasks != nil {
		m.RunningTasks.Inc()
	}
}

// TaskFinished decrements the running-task gauge
func (m *Metrics) TaskFinished() {
	if m.RunningTasks != nil {
		m.RunningTasks.Dec()
	}
}

// RecordApply records an apply workflow operation
func (m *Metrics) RecordApply(operation, outcome string) {
	if m.ApplySubmissions != nil {
		m.ApplySubmissions.WithLabelValues(operation, outcome).Inc()
	}
}

// RecordReport records a report generation attempt
func (m *Metrics) RecordReport(kind, status string) {
	if m.ReportGenerations != nil {
		m.ReportGenerations.WithLabelValues(kind, status).Inc()
	}
}

// RecordError records an error occurrence
func (m *Metrics) RecordError(component, errorType string) {
	if m.ErrorsTotal != nil {
		m.ErrorsTotal.WithLabelValues(component, errorType).Inc()
	}
}

// PrometheusMiddleware creates a middleware for Prometheus metrics collection
func (m *Metrics) PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.HTTPRequestsInFlight != nil {
			m.HTTPRequestsInFlight.WithLabelValues(c.Request.Method, c.FullPath()).Inc()
			defer m.HTTPRequestsInFlight.WithLabelValues(c.Request.Method, c.FullPath()).Dec()
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		m.RecordHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), duration)
	}
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
