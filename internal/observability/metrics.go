package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "ticketbot"

// Metrics holds the prometheus collectors for the bot and its ops surface.
type Metrics struct {
	registry *prometheus.Registry

	TicketsCreated     prometheus.Counter
	TicketsClosed      prometheus.Counter
	CreateFailures     *prometheus.CounterVec
	SideEffectFailures *prometheus.CounterVec
	OpenTickets        prometheus.Gauge
	PendingDeletions   prometheus.Gauge
	ChannelsDeleted    *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	httpErrors         *prometheus.CounterVec
}

// NewMetrics registers all collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		TicketsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "tickets_created_total",
			Help: "Tickets successfully created.",
		}),
		TicketsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "tickets_closed_total",
			Help: "Tickets moved to closing.",
		}),
		CreateFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "create_failures_total",
			Help: "Ticket creations aborted, by reason.",
		}, []string{"reason"}),
		SideEffectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "side_effect_failures_total",
			Help: "Best-effort lifecycle steps that failed, by step.",
		}, []string{"step"}),
		OpenTickets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "open_tickets",
			Help: "Tickets currently tracked by the registry.",
		}),
		PendingDeletions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pending_channel_deletions",
			Help: "Channel deletions scheduled but not yet run.",
		}),
		ChannelsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "channel_deletions_total",
			Help: "Deferred channel deletions, by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "Ops HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "Ops HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_errors_total",
			Help: "Ops HTTP requests that ended in a domain error, by code.",
		}, []string{"method", "path", "code"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.TicketsCreated, m.TicketsClosed, m.CreateFailures, m.SideEffectFailures,
		m.OpenTickets, m.PendingDeletions, m.ChannelsDeleted,
		m.httpRequests, m.httpDuration, m.httpErrors,
	)
	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordSideEffectFailure counts a failed best-effort step.
func (m *Metrics) RecordSideEffectFailure(step string) {
	if m == nil {
		return
	}
	m.SideEffectFailures.WithLabelValues(step).Inc()
}

// RecordCreateFailure counts an aborted creation.
func (m *Metrics) RecordCreateFailure(reason string) {
	if m == nil {
		return
	}
	m.CreateFailures.WithLabelValues(reason).Inc()
}

// RecordRequest observes one ops HTTP request.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError counts an ops HTTP request that failed with code.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(method, path, code).Inc()
}
