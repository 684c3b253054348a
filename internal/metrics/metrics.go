package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mescon/Melodarr/internal/domain"
	"github.com/mescon/Melodarr/internal/eventbus"
	"github.com/mescon/Melodarr/internal/logger"
)

// MetricsService exposes Prometheus metrics for Melodarr
type MetricsService struct {
	eventBus eventbus.Publisher

	// Counters
	scansTotal         *prometheus.CounterVec
	tracksIndexedTotal *prometheus.CounterVec
	tracksRemovedTotal prometheus.Counter
	tracksSkippedTotal prometheus.Counter
	enrichmentsTotal   *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec

	// Gauges
	watcherUp       prometheus.Gauge
	watcherDegraded prometheus.Gauge

	// Histograms
	scanDuration prometheus.Histogram
}

// NewMetricsService creates metrics registered with the default registry.
func NewMetricsService(eb eventbus.Publisher) *MetricsService {
	return newMetricsService(eb, prometheus.DefaultRegisterer)
}

// newMetricsService allows tests to use a private registry.
func newMetricsService(eb eventbus.Publisher, reg prometheus.Registerer) *MetricsService {
	m := &MetricsService{
		eventBus: eb,

		scansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "melodarr_scans_total",
				Help: "Total number of scans by outcome",
			},
			[]string{"outcome"}, // completed, failed, rejected
		),

		tracksIndexedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "melodarr_tracks_indexed_total",
				Help: "Total number of tracks indexed by change type",
			},
			[]string{"change"}, // new, modified
		),

		tracksRemovedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "melodarr_tracks_removed_total",
				Help: "Total number of tracks removed from the index",
			},
		),

		tracksSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "melodarr_tracks_skipped_total",
				Help: "Total number of files skipped due to read or extraction errors",
			},
		),

		enrichmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "melodarr_enrichments_total",
				Help: "Total number of artist enrichment lookups by outcome",
			},
			[]string{"outcome"}, // completed, failed
		),

		notificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "melodarr_notifications_total",
				Help: "Total number of notifications by outcome",
			},
			[]string{"outcome"}, // sent, failed
		),

		watcherUp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "melodarr_watcher_up",
				Help: "Whether the filesystem watcher is running (1) or stopped (0)",
			},
		),

		watcherDegraded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "melodarr_watcher_degraded",
				Help: "Whether the filesystem watcher has lost subscriptions (1) or is healthy (0)",
			},
		),

		scanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "melodarr_scan_duration_seconds",
				Help:    "Duration of scans in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7min
			},
		),
	}

	reg.MustRegister(
		m.scansTotal,
		m.tracksIndexedTotal,
		m.tracksRemovedTotal,
		m.tracksSkippedTotal,
		m.enrichmentsTotal,
		m.notificationsTotal,
		m.watcherUp,
		m.watcherDegraded,
		m.scanDuration,
	)

	return m
}

// Start subscribes to events and updates metrics
func (m *MetricsService) Start() {
	m.eventBus.Subscribe(domain.ScanCompleted, m.handleScanCompleted)
	m.eventBus.Subscribe(domain.ScanFailed, m.handleScanFailed)
	m.eventBus.Subscribe(domain.ScanRejected, m.handleScanRejected)
	m.eventBus.Subscribe(domain.WatcherStarted, m.handleWatcherStarted)
	m.eventBus.Subscribe(domain.WatcherStopped, m.handleWatcherStopped)
	m.eventBus.Subscribe(domain.WatcherDegraded, m.handleWatcherDegraded)
	m.eventBus.Subscribe(domain.EnrichmentCompleted, m.handleEnrichmentCompleted)
	m.eventBus.Subscribe(domain.EnrichmentFailed, m.handleEnrichmentFailed)
	m.eventBus.Subscribe(domain.NotificationSent, m.handleNotificationSent)
	m.eventBus.Subscribe(domain.NotificationFailed, m.handleNotificationFailed)

	logger.Infof("Metrics service started")
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint
func (m *MetricsService) Handler() http.Handler {
	return promhttp.Handler()
}

// Event handlers

// handleScanCompleted derives all per-scan counters from the summary event,
// not from per-track events, to avoid double counting.
func (m *MetricsService) handleScanCompleted(event domain.Event) {
	m.scansTotal.WithLabelValues("completed").Inc()

	summary, ok := event.ParseScanSummaryEventData()
	if !ok {
		return
	}
	m.tracksIndexedTotal.WithLabelValues("new").Add(float64(summary.New))
	m.tracksIndexedTotal.WithLabelValues("modified").Add(float64(summary.Modified))
	m.tracksRemovedTotal.Add(float64(summary.Removed))
	m.tracksSkippedTotal.Add(float64(summary.Skipped))
	m.scanDuration.Observe(float64(summary.Duration) / 1000.0)
}

func (m *MetricsService) handleScanFailed(event domain.Event) {
	m.scansTotal.WithLabelValues("failed").Inc()
}

func (m *MetricsService) handleScanRejected(event domain.Event) {
	m.scansTotal.WithLabelValues("rejected").Inc()
}

func (m *MetricsService) handleWatcherStarted(event domain.Event) {
	m.watcherUp.Set(1)
	m.watcherDegraded.Set(0)
}

func (m *MetricsService) handleWatcherStopped(event domain.Event) {
	m.watcherUp.Set(0)
}

func (m *MetricsService) handleWatcherDegraded(event domain.Event) {
	m.watcherDegraded.Set(1)
}

func (m *MetricsService) handleEnrichmentCompleted(event domain.Event) {
	m.enrichmentsTotal.WithLabelValues("completed").Inc()
}

func (m *MetricsService) handleEnrichmentFailed(event domain.Event) {
	m.enrichmentsTotal.WithLabelValues("failed").Inc()
}

func (m *MetricsService) handleNotificationSent(event domain.Event) {
	m.notificationsTotal.WithLabelValues("sent").Inc()
}

func (m *MetricsService) handleNotificationFailed(event domain.Event) {
	m.notificationsTotal.WithLabelValues("failed").Inc()
}
