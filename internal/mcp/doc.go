// Package mcp implements the Model Context Protocol server for fanpulse tools.
//
// # Overview
//
// MCP (Model Context Protocol) is a standard for AI tool integration. This
// package exposes the registered tool packs to LLM clients over the
// Streamable HTTP transport: JSON-RPC 2.0 messages POSTed to one endpoint.
//
// # Protocol
//
//   - POST /mcp - JSON-RPC requests and notifications
//   - DELETE /mcp - terminate the session named by Mcp-Session-Id
//
// Supported methods are initialize, ping, tools/list and tools/call.
// Notifications (no id) are accepted with 202 and no body. initialize
// returns an Mcp-Session-Id header that every later request must carry.
// Sessions expire after DefaultSessionTTL without traffic.
//
// # Authentication
//
// The caller is resolved once, at initialize, from the first credential found:
//
//  1. Path token: POST /mcp/<token>
//  2. Query token: POST /mcp?token=<token>
//  3. Bearer JWT: Authorization: Bearer <jwt> with a "caps" claim
//
// Path and query tokens are opaque strings held in a TokenStore, loaded from
// configuration. A presented but unknown credential is always rejected. With
// no credential the session gets Config.DefaultCaps, unless RequireAuth is set.
//
// # Tool Discovery and Execution
//
// tools/list returns only tools whose required capabilities the session
// holds. tools/call runs the tool through packs.Router:
//
//	{
//	  "jsonrpc": "2.0",
//	  "method": "tools/call",
//	  "params": {"name": "get_fan_profile", "arguments": {"fan_id": 1}},
//	  "id": 2
//	}
//
// The tool output is returned as a single text content block. Tool failures
// are results with isError set; a structured payload such as
// {"error":"not_found","entity":"fan","id":1} is passed through as the text.
// Protocol failures (unknown tool, missing capability, timeout) are JSON-RPC
// errors.
//
// # Usage
//
//	server, err := mcp.NewServer(mcp.Config{
//	    Registry:      registry,
//	    Router:        router,
//	    TokenVerifier: auth.NewJWTVerifier(secret),
//	    TokenStore:    tokens,
//	    DefaultCaps:   []string{"fans", "merch", "marketing"},
//	})
//	server.RegisterRoutes(chiRouter)
package mcp
