package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the portal's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorCount      *prometheus.CounterVec

	ticketsCreated       *prometheus.CounterVec
	creationsBlocked     *prometheus.CounterVec
	statusTransitions    *prometheus.CounterVec
	transitionsRejected  *prometheus.CounterVec
	assignments          *prometheus.CounterVec
	notificationFailures prometheus.Counter
	mutationConflicts    prometheus.Counter
}

// NewMetrics registers every collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repair_portal",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "repair_portal",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repair_portal",
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "HTTP errors by domain error code.",
		}, []string{"path", "method", "code"}),
		ticketsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repair_portal",
			Subsystem: "tickets",
			Name:      "created_total",
			Help:      "Tickets created by service type and warranty status.",
		}, []string{"service_type", "warranty_status"}),
		creationsBlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repair_portal",
			Subsystem: "tickets",
			Name:      "creation_blocked_total",
			Help:      "Ticket submissions refused by policy.",
		}, []string{"service_type", "reason"}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repair_portal",
			Subsystem: "tickets",
			Name:      "status_transitions_total",
			Help:      "Applied status transitions.",
		}, []string{"from", "to", "role"}),
		transitionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repair_portal",
			Subsystem: "tickets",
			Name:      "status_transitions_rejected_total",
			Help:      "Status transitions refused by the guard.",
		}, []string{"from", "to", "role"}),
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repair_portal",
			Subsystem: "assignment",
			Name:      "decisions_total",
			Help:      "Technician assignment outcomes by pool.",
		}, []string{"pool"}),
		notificationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "repair_portal",
			Subsystem: "notifications",
			Name:      "failures_total",
			Help:      "Status notifications that could not be delivered.",
		}),
		mutationConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "repair_portal",
			Subsystem: "tickets",
			Name:      "version_conflicts_total",
			Help:      "Optimistic version conflicts retried while mutating tickets.",
		}),
	}
	m.registry.MustRegister(
		m.requestCount,
		m.requestDuration,
		m.errorCount,
		m.ticketsCreated,
		m.creationsBlocked,
		m.statusTransitions,
		m.transitionsRejected,
		m.assignments,
		m.notificationFailures,
		m.mutationConflicts,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(path, method, code).Inc()
}

// TicketCreated counts a persisted ticket by service type and warranty label.
func (m *Metrics) TicketCreated(serviceType, warrantyStatus string) {
	if m == nil {
		return
	}
	m.ticketsCreated.WithLabelValues(serviceType, warrantyStatus).Inc()
}

// CreationBlocked counts a ticket rejected by policy before it was stored.
func (m *Metrics) CreationBlocked(serviceType, reason string) {
	if m == nil {
		return
	}
	m.creationsBlocked.WithLabelValues(serviceType, reason).Inc()
}

// StatusTransition counts an applied status change.
func (m *Metrics) StatusTransition(from, to, role string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(from, to, role).Inc()
}

// TransitionRejected counts a status change refused by the transition table.
func (m *Metrics) TransitionRejected(from, to, role string) {
	if m == nil {
		return
	}
	m.transitionsRejected.WithLabelValues(from, to, role).Inc()
}

// Assignment records which pool served a ticket ("specialist", "general", "manual" or "none").
func (m *Metrics) Assignment(pool string) {
	if m == nil {
		return
	}
	m.assignments.WithLabelValues(pool).Inc()
}

// NotificationFailed counts a status notification that could not be delivered.
func (m *Metrics) NotificationFailed() {
	if m == nil {
		return
	}
	m.notificationFailures.Inc()
}

// MutationConflict counts an optimistic version conflict on a ticket update.
func (m *Metrics) MutationConflict() {
	if m == nil {
		return
	}
	m.mutationConflicts.Inc()
}
