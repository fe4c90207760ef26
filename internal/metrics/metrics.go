package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
	// OrdersCreated counts orders accepted by POST /orders.
	OrdersCreated prometheus.Counter
	// SpacesWrites counts lesson capacity writes by outcome (ok, conflict, not_found, error).
	SpacesWrites *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewServerMetrics registers the store's collectors on reg. A nil reg uses a
// fresh registry, which keeps tests from colliding on the global one.
func NewServerMetrics(service string, reg *prometheus.Registry) *ServerMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lessonshop",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lessonshop",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	orders := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lessonshop",
		Subsystem: service,
		Name:      "orders_created_total",
		Help:      "Orders persisted by the store.",
	})
	writes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lessonshop",
		Subsystem: service,
		Name:      "lesson_spaces_writes_total",
		Help:      "Lesson capacity writes by outcome.",
	}, []string{"outcome"})

	reg.MustRegister(requests, latency, orders, writes)
	return &ServerMetrics{Requests: requests, LatencyMS: latency, OrdersCreated: orders, SpacesWrites: writes, gatherer: reg}
}

// Middleware records request counts and latency keyed by the matched route.
func (m *ServerMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
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

func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
