package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "casegen"

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// Generation metrics
	GenerationsTotal   *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec

	// Session metrics
	SessionsCreatedTotal  prometheus.Counter
	SessionsStored        prometheus.Gauge
	SnapshotWriteDuration prometheus.Histogram
	ExpiredSessionHits    prometheus.Counter

	// Delivery metrics
	DeliveryFallbacksTotal *prometheus.CounterVec
	ExportsTotal           *prometheus.CounterVec
	ExportFilesSweptTotal  prometheus.Counter

	// Telegram metrics
	TelegramMessagesSentTotal    prometheus.Counter
	TelegramUpdatesReceivedTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		GenerationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generations_total",
				Help:      "Total number of text generation calls by kind and status",
			},
			[]string{"kind", "status"},
		),
		GenerationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_duration_seconds",
				Help:      "Duration of text generation calls in seconds",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
			},
			[]string{"kind"},
		),

		SessionsCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_created_total",
				Help:      "Total number of sessions created",
			},
		),
		SessionsStored: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_stored",
				Help:      "Number of sessions currently held by the store",
			},
		),
		SnapshotWriteDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "snapshot_write_duration_seconds",
				Help:      "Duration of full session snapshot rewrites in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ExpiredSessionHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "expired_session_hits_total",
				Help:      "Total number of actions that referenced an unknown session",
			},
		),

		DeliveryFallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "delivery_fallbacks_total",
				Help:      "Total number of rich-text deliveries retried as plain text",
			},
			[]string{"kind"},
		),
		ExportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exports_total",
				Help:      "Total number of exported files by format",
			},
			[]string{"format"},
		),
		ExportFilesSweptTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "export_files_swept_total",
				Help:      "Total number of orphaned export files removed by the sweeper",
			},
		),

		TelegramMessagesSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telegram_messages_sent_total",
				Help:      "Total number of Telegram messages and documents sent",
			},
		),
		TelegramUpdatesReceivedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telegram_updates_received_total",
				Help:      "Total number of Telegram updates received by type",
			},
			[]string{"type"},
		),
	}

	m.registry.MustRegister(
		m.GenerationsTotal,
		m.GenerationDuration,
		m.SessionsCreatedTotal,
		m.SessionsStored,
		m.SnapshotWriteDuration,
		m.ExpiredSessionHits,
		m.DeliveryFallbacksTotal,
		m.ExportsTotal,
		m.ExportFilesSweptTotal,
		m.TelegramMessagesSentTotal,
		m.TelegramUpdatesReceivedTotal,
	)

	return m
}

// ObserveGeneration records one generation call
func (m *Metrics) ObserveGeneration(kind string, started time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.GenerationsTotal.WithLabelValues(kind, status).Inc()
	m.GenerationDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}

// ObserveSnapshotWrite records one snapshot rewrite and the resulting store size
func (m *Metrics) ObserveSnapshotWrite(started time.Time, stored int) {
	if m == nil {
		return
	}
	m.SnapshotWriteDuration.Observe(time.Since(started).Seconds())
	m.SessionsStored.Set(float64(stored))
}

// SessionCreated counts a newly stored session
func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreatedTotal.Inc()
}

// ExpiredSessionHit counts an action on an unknown session
func (m *Metrics) ExpiredSessionHit() {
	if m == nil {
		return
	}
	m.ExpiredSessionHits.Inc()
}

// DeliveryFallback counts a plain-text redelivery after rich text was rejected
func (m *Metrics) DeliveryFallback(kind string) {
	if m == nil {
		return
	}
	m.DeliveryFallbacksTotal.WithLabelValues(kind).Inc()
}

// Export counts a written export file
func (m *Metrics) Export(format string) {
	if m == nil {
		return
	}
	m.ExportsTotal.WithLabelValues(format).Inc()
}

// FilesSwept counts export files removed by the sweeper
func (m *Metrics) FilesSwept(n int) {
	if m == nil {
		return
	}
	m.ExportFilesSweptTotal.Add(float64(n))
}

// MessageSent counts an outbound Telegram message
func (m *Metrics) MessageSent() {
	if m == nil {
		return
	}
	m.TelegramMessagesSentTotal.Inc()
}

// UpdateReceived counts an inbound Telegram update by type
func (m *Metrics) UpdateReceived(kind string) {
	if m == nil {
		return
	}
	m.TelegramUpdatesReceivedTotal.WithLabelValues(kind).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
