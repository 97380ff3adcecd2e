package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the pipeline.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	filesProcessed  *prometheus.CounterVec
	relayDuration   *prometheus.HistogramVec
	retryAttempts   prometheus.Counter
	telegramSent    prometheus.Counter
	bufferEntries   prometheus.Gauge
}

// NewMetricsService registers the pipeline collectors on a private registry.
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

	filesProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_files_processed_total",
		Help: "Files that finished the pipeline, by terminal status",
	}, []string{"status"})

	relayDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_relay_duration_seconds",
		Help:    "Duration of webhook relay calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	retryAttempts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_retry_attempts_total",
		Help: "Retry attempts beyond the first per-file attempt",
	})

	telegramSent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telegram_documents_sent_total",
		Help: "Documents delivered to the bot API, including chunks",
	})

	bufferEntries := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "buffer_store_entries",
		Help: "Entries currently held in the processed-byte store",
	})

	registry.MustRegister(requestDuration, requestTotal, filesProcessed, relayDuration, retryAttempts, telegramSent, bufferEntries)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		filesProcessed:  filesProcessed,
		relayDuration:   relayDuration,
		retryAttempts:   retryAttempts,
		telegramSent:    telegramSent,
		bufferEntries:   bufferEntries,
	}
}

// Handler exposes the scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest captures one request's method/path/status/duration.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if s == nil {
		return
	}
	labels := []string{method, path, strconv.Itoa(status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// RecordFileProcessed counts one terminal per-file outcome.
func (s *MetricsService) RecordFileProcessed(status string) {
	if s == nil {
		return
	}
	s.filesProcessed.WithLabelValues(status).Inc()
}

// ObserveRelay captures one relay call.
func (s *MetricsService) ObserveRelay(duration time.Duration, success bool) {
	if s == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "error"
	}
	s.relayDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordRetryAttempt counts one retry beyond the first attempt.
func (s *MetricsService) RecordRetryAttempt() {
	if s == nil {
		return
	}
	s.retryAttempts.Inc()
}

// RecordTelegramDocument counts one delivered document or chunk.
func (s *MetricsService) RecordTelegramDocument() {
	if s == nil {
		return
	}
	s.telegramSent.Inc()
}

// SetBufferEntries publishes the current buffer store size.
func (s *MetricsService) SetBufferEntries(n int) {
	if s == nil {
		return
	}
	s.bufferEntries.Set(float64(n))
}
