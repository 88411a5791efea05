package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric the service exports.
type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	AuthzDecisions     *prometheus.CounterVec
	AccessRequests     *prometheus.CounterVec
	RecordMutations    *prometheus.CounterVec
	AssistantCalls     *prometheus.CounterVec
	AssistantCacheHits *prometheus.CounterVec
	EventsPublished    *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewCollector registers the metrics on reg. Pass prometheus.NewRegistry()
// in tests; the server uses its own registry too so /metrics only exposes
// what is listed here plus the Go and process collectors.
func NewCollector(namespace string, reg *prometheus.Registry) *Collector {
	f := promauto.With(reg)
	return &Collector{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 15.0},
		}, []string{"method", "route"}),

		InFlightGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		AuthzDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authz_decisions_total",
			Help:      "Authorization guard decisions by rule and outcome.",
		}, []string{"rule", "outcome"}),

		AccessRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "requests_total",
			Help:      "Access request lifecycle transitions by resulting status.",
		}, []string{"status"}),

		RecordMutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "records",
			Name:      "mutations_total",
			Help:      "Medical record writes by operation.",
		}, []string{"op"}),

		AssistantCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "calls_total",
			Help:      "Summarization assistant upstream calls by kind and outcome.",
		}, []string{"kind", "outcome"}),

		AssistantCacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "cache_lookups_total",
			Help:      "Summary cache lookups by result.",
		}, []string{"result"}),

		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Domain events handed to the broker by type and outcome.",
		}, []string{"type", "outcome"}),

		gatherer: reg,
	}
}

// Authz records one guard decision.
func (c *Collector) Authz(rule string, allowed bool) {
	if c == nil {
		return
	}
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	c.AuthzDecisions.WithLabelValues(rule, outcome).Inc()
}

// AccessRequest counts a request entering status.
func (c *Collector) AccessRequest(status string) {
	if c == nil {
		return
	}
	c.AccessRequests.WithLabelValues(status).Inc()
}

// RecordMutation counts a committed record write.
func (c *Collector) RecordMutation(op string) {
	if c == nil {
		return
	}
	c.RecordMutations.WithLabelValues(op).Inc()
}

// AssistantCall counts an upstream LLM call.
func (c *Collector) AssistantCall(kind string, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.AssistantCalls.WithLabelValues(kind, outcome).Inc()
}

// CacheLookup counts a summary cache hit or miss.
func (c *Collector) CacheLookup(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.AssistantCacheHits.WithLabelValues(result).Inc()
}

// EventPublished counts a publish attempt.
func (c *Collector) EventPublished(eventType string, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.EventsPublished.WithLabelValues(eventType, outcome).Inc()
}

// Middleware records request counts and latency keyed by the matched route
// rather than the raw path, keeping label cardinality bounded.
func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			c.InFlightGauge.Inc()
			defer c.InFlightGauge.Dec()

			start := time.Now()
			err := next(ctx)

			status := ctx.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}

			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			method := ctx.Request().Method
			c.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			c.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
