package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric collectors for the crew calendar.
type Metrics struct {
	registry *prometheus.Registry

	// Live subscriptions.
	SubscriptionErrorsTotal *prometheus.CounterVec
	SnapshotsAppliedTotal   *prometheus.CounterVec
	StaleSnapshotsTotal     *prometheus.CounterVec
	ActiveSubscriptions     *prometheus.GaugeVec

	// Writes and scheduling.
	WritesTotal *prometheus.CounterVec
	DropsTotal  *prometheus.CounterVec

	// Dashboard sessions.
	ActiveSessions prometheus.Gauge

	// HTTP.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	ServerStartTime prometheus.Gauge
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		SubscriptionErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crewcal_subscription_errors_total",
			Help: "Live query failures, by collection.",
		}, []string{"collection"}),

		SnapshotsAppliedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crewcal_snapshots_applied_total",
			Help: "Collection snapshots applied to local state.",
		}, []string{"collection"}),

		StaleSnapshotsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crewcal_stale_snapshots_total",
			Help: "Snapshots dropped because their subscription had been superseded.",
		}, []string{"collection"}),

		ActiveSubscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "crewcal_active_subscriptions",
			Help: "Live queries currently open.",
		}, []string{"collection"}),

		WritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crewcal_writes_total",
			Help: "Store writes by action and result.",
		}, []string{"action", "result"}),

		DropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crewcal_calendar_drops_total",
			Help: "Calendar drop attempts by outcome.",
		}, []string{"outcome"}),

		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crewcal_active_sessions",
			Help: "Open dashboard sessions.",
		}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crewcal_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crewcal_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path_pattern"}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crewcal_server_start_time_seconds",
			Help: "Unix time the server started.",
		}),
	}

	reg.MustRegister(
		m.SubscriptionErrorsTotal,
		m.SnapshotsAppliedTotal,
		m.StaleSnapshotsTotal,
		m.ActiveSubscriptions,
		m.WritesTotal,
		m.DropsTotal,
		m.ActiveSessions,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ServerStartTime,
	)

	m.ServerStartTime.Set(float64(time.Now().Unix()))

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the private registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncSubscriptionError(collection string) {
	m.SubscriptionErrorsTotal.WithLabelValues(collection).Inc()
}

func (m *Metrics) IncSnapshotApplied(collection string) {
	m.SnapshotsAppliedTotal.WithLabelValues(collection).Inc()
}

func (m *Metrics) IncStaleSnapshot(collection string) {
	m.StaleSnapshotsTotal.WithLabelValues(collection).Inc()
}

func (m *Metrics) IncActiveSubscriptions(collection string) {
	m.ActiveSubscriptions.WithLabelValues(collection).Inc()
}

func (m *Metrics) DecActiveSubscriptions(collection string) {
	m.ActiveSubscriptions.WithLabelValues(collection).Dec()
}

// ObserveWrite counts one store write for action.
func (m *Metrics) ObserveWrite(action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.WritesTotal.WithLabelValues(action, result).Inc()
}

func (m *Metrics) IncDrop(outcome string) {
	m.DropsTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(method, pathPattern string, statusCode int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(elapsed.Seconds())
}
