// ABOUTME: Prometheus collector for tool calls, HTTP requests and logged engagement events
// ABOUTME: Registers on a caller-supplied registry and exposes a scrape handler

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records fanpulse metrics.
type Collector struct {
	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	eventsLogged *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its series on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fanpulse_tool_calls_total",
			Help: "Tool calls by tool and outcome",
		}, []string{"tool", "outcome"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fanpulse_tool_call_duration_seconds",
			Help:    "Tool call latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fanpulse_http_requests_total",
			Help: "HTTP responses by method, route and status code",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fanpulse_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		eventsLogged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fanpulse_engagement_events_logged_total",
			Help: "Engagement events written, by event type",
		}, []string{"event_type"}),
	}

	reg.MustRegister(
		c.toolCalls,
		c.toolDuration,
		c.httpRequests,
		c.httpDuration,
		c.eventsLogged,
	)

	return c
}

// ObserveToolCall records one routed tool call.
func (c *Collector) ObserveToolCall(tool, outcome string, duration time.Duration) {
	c.toolCalls.WithLabelValues(tool, outcome).Inc()
	c.toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// ObserveHTTPRequest records one served HTTP request. route should be the
// matched route pattern, not the raw path, to bound label cardinality.
func (c *Collector) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordEventLogged counts a newly written engagement event.
func (c *Collector) RecordEventLogged(eventType string) {
	c.eventsLogged.WithLabelValues(eventType).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
