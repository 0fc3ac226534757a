// Package middleware provides the HTTP middleware stack for fanpulse.
//
// # Overview
//
// All middleware uses the func(http.Handler) http.Handler shape so it can be
// mounted with chi's Use or wrapped around a single handler.
//
//   - Logging: one slog record per request with method, path, route,
//     status and duration_ms. 5xx logs at Error, 4xx at Warn.
//   - Recovery: converts a handler panic into a 500 JSON response and logs
//     the stack.
//   - RateLimiter: token bucket per caller using golang.org/x/time/rate.
//     Idle callers are swept periodically.
//
// # Caller Keys
//
// CallerKey identifies the caller for rate limiting. It prefers the
// authenticated subject, then a presented token (path segment after /mcp/,
// ?token= or bearer header), then the client IP.
package middleware
