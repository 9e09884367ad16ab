// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reasons a submission is rejected before it reaches the store.
const (
	RejectEmpty       = "empty"
	RejectRateLimited = "rate_limited"
	RejectTooLarge    = "too_large"
	RejectMalformed   = "malformed"
)

// Metrics is safe to use through a nil pointer; every recorder is a no-op then.
type Metrics struct {
	registry *prometheus.Registry

	connections       prometheus.Gauge
	connectionsTotal  *prometheus.CounterVec
	messagesPersisted prometheus.Counter
	messagesRejected  *prometheus.CounterVec
	storeFailures     prometheus.Counter
	broadcastDrops    prometheus.Counter
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gophchat_connections_active",
			Help: "Current number of registered realtime connections.",
		}),
		connectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gophchat_connections_total",
			Help: "Realtime connections registered since start, by identity kind.",
		}, []string{"identity"}),
		messagesPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gophchat_messages_persisted_total",
			Help: "Chat messages appended to the message store.",
		}),
		messagesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gophchat_messages_rejected_total",
			Help: "Inbound submissions dropped before persistence, by reason.",
		}, []string{"reason"}),
		storeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gophchat_store_failures_total",
			Help: "Message store operations that failed.",
		}),
		broadcastDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gophchat_broadcast_drops_total",
			Help: "Connections disconnected because their outbound queue was full.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gophchat_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gophchat_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.connections,
		m.connectionsTotal,
		m.messagesPersisted,
		m.messagesRejected,
		m.storeFailures,
		m.broadcastDrops,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ConnectionOpened(anonymous bool) {
	if m == nil {
		return
	}
	kind := "subject"
	if anonymous {
		kind = "anonymous"
	}
	m.connections.Inc()
	m.connectionsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

func (m *Metrics) MessagePersisted() {
	if m == nil {
		return
	}
	m.messagesPersisted.Inc()
}

func (m *Metrics) MessageRejected(reason string) {
	if m == nil {
		return
	}
	m.messagesRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) StoreFailure() {
	if m == nil {
		return
	}
	m.storeFailures.Inc()
}

func (m *Metrics) BroadcastDropped() {
	if m == nil {
		return
	}
	m.broadcastDrops.Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
