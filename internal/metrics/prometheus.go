package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "expensync"

// PrometheusRecorder exports metrics through a dedicated registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	httpDuration      *prometheus.HistogramVec
	mutations         *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	broadcasts        *prometheus.CounterVec
	socketConnections prometheus.Gauge
	rateLimited       prometheus.Counter
}

// NewPrometheus creates a recorder with Go runtime and process collectors registered.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()

	p := &PrometheusRecorder{
		registry: reg,
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method, route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Successful list and expense mutations.",
		}, []string{"entity", "action"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification persist attempts by result.",
		}, []string{"result"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "events_total",
			Help:      "Broadcast events by topic and outcome.",
		}, []string{"topic", "outcome"}),
		socketConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "socket_connections",
			Help:      "Currently open websocket connections.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.httpDuration,
		p.mutations,
		p.notifications,
		p.broadcasts,
		p.socketConnections,
		p.rateLimited,
	)
	return p
}

// Handler serves the registry in Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry returns the underlying registry.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PrometheusRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	p.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) IncMutation(entity, action string) {
	p.mutations.WithLabelValues(entity, action).Inc()
}

func (p *PrometheusRecorder) IncNotificationPersisted() {
	p.notifications.WithLabelValues("persisted").Inc()
}

func (p *PrometheusRecorder) IncNotificationPersistFailed() {
	p.notifications.WithLabelValues("failed").Inc()
}

func (p *PrometheusRecorder) IncBroadcastPublished(topic string) {
	p.broadcasts.WithLabelValues(topic, "published").Inc()
}

func (p *PrometheusRecorder) IncBroadcastDropped(topic string) {
	p.broadcasts.WithLabelValues(topic, "dropped").Inc()
}

func (p *PrometheusRecorder) IncBroadcastRelayed(topic string) {
	p.broadcasts.WithLabelValues(topic, "relayed").Inc()
}

func (p *PrometheusRecorder) IncSocketConnected() {
	p.socketConnections.Inc()
}

func (p *PrometheusRecorder) IncSocketDisconnected() {
	p.socketConnections.Dec()
}

func (p *PrometheusRecorder) IncRateLimited() {
	p.rateLimited.Inc()
}
