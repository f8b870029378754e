package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors shared by the API and directory servers.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Requests        *prometheus.CounterVec
	LatencyMS       *prometheus.HistogramVec
	DependencyCalls *prometheus.CounterVec
	Checkouts       *prometheus.CounterVec
	StatusChanges   *prometheus.CounterVec
	registry        *prometheus.Registry
}

// New builds the collectors on a fresh registry for the given service.
func New(service string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tienda",
			Subsystem: service,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tienda",
			Subsystem: service,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		DependencyCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tienda",
			Subsystem: service,
			Name:      "dependency_calls_total",
			Help:      "Remote directory calls by dependency and outcome.",
		}, []string{"dependency", "outcome"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tienda",
			Subsystem: service,
			Name:      "checkouts_total",
			Help:      "Checkout attempts by result.",
		}, []string{"result"}),
		StatusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tienda",
			Subsystem: service,
			Name:      "order_status_changes_total",
			Help:      "Order status changes by target status.",
		}, []string{"status"}),
		registry: reg,
	}
	reg.MustRegister(m.Requests, m.LatencyMS, m.DependencyCalls, m.Checkouts, m.StatusChanges)
	return m
}

func (m *Metrics) ObserveDependency(dependency, outcome string) {
	if m == nil {
		return
	}
	m.DependencyCalls.WithLabelValues(dependency, outcome).Inc()
}

func (m *Metrics) ObserveCheckout(result string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveStatusChange(status string) {
	if m == nil {
		return
	}
	m.StatusChanges.WithLabelValues(status).Inc()
}

// Middleware records request counts and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
