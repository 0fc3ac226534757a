// Package gateway orchestrates the fanpulse server components.
//
// # Overview
//
// The gateway package owns the store, the insights service, the tool pack
// registry and router, the MCP server and the listeners. New builds every
// component from a config.Config; Run serves until its context is cancelled.
//
// # Endpoints
//
// One chi router serves everything over HTTP:
//
//	GET  /health                       liveness, always "OK"
//	GET  /health/ready                 store ping, 200 or 503
//	GET  /metrics                      Prometheus scrape (metrics.path)
//	POST /mcp, /mcp/<token>            MCP Streamable HTTP endpoint
//	GET  /api/fans/{id}                fan profile; {id} may be an email
//	GET  /api/fans/{id}/recommendations
//	GET  /api/metrics/engagement       ranked fans, or one fan with fan_id
//	GET  /api/merchandise              catalog search
//	GET  /api/segments                 segment breakdown, optional ?team
//	GET  /api/promotions               newest promotions first
//	GET  /api/reach/{segment}          reach estimate for a target keyword
//
// API errors are application/problem+json bodies. With auth.jwt_secret set,
// bearer tokens are verified; auth.require_api_auth makes them mandatory and
// checks the capability matching each route (fans, merch or marketing).
//
// The MCP endpoint sits behind the per-caller rate limiter when
// mcp.rate_limit is positive.
//
// # gRPC
//
// The gRPC listener carries only the standard grpc.health.v1 service. Its
// status is SERVING while Run is active, for both the empty service name and
// HealthServiceName.
//
// # Tailscale
//
// With tailscale.enabled the gateway joins the tailnet through tsnet and
// ignores server.http_addr and server.grpc_addr. HTTPS and Funnel listeners
// are supported; the advertised MCP endpoint follows the node's DNS name.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger, gateway.WithVersion(version))
//	if err != nil {
//	    return err
//	}
//	return gw.Run(ctx)
//
// Shutdown stops the servers, cancels in-flight tool calls and closes the
// store. Run calls it with server.shutdown_timeout after cancellation.
package gateway
