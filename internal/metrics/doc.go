// Package metrics collects Prometheus metrics for fanpulse.
//
// Collector registers its series on a caller-supplied prometheus.Registerer
// so tests can use a private registry. It implements packs.Recorder for tool
// calls and exposes ObserveHTTPRequest for the request middleware.
//
// # Series
//
//	fanpulse_tool_calls_total{tool,outcome}
//	fanpulse_tool_call_duration_seconds{tool}
//	fanpulse_http_requests_total{method,route,status}
//	fanpulse_http_request_duration_seconds{method,route}
//	fanpulse_engagement_events_logged_total{event_type}
//
// Handler serves the registry in the Prometheus text format.
package metrics
