// Package packs provides the tool pack system behind the MCP tool surface.
//
// # Overview
//
// Tool packs are collections of related tools. Every pack is built in: its
// tools run in-process as Go functions (see internal/builtins).
//
// # Architecture
//
// The pack system has three main components:
//
//   - Registry: Tracks registered packs and their tools
//   - Router: Runs a tool call with a timeout and records the outcome
//   - Built-in packs: fanpulse tools (see internal/builtins)
//
// # Built-in Packs
//
// fanpulse registers three packs with eight tools:
//
//	fans      - get_fan_profile, log_engagement_event,
//	            get_fan_engagement_metrics, get_merch_recommendations
//	merch     - search_merchandise
//	marketing - create_promotion, get_fan_segments, list_promotions
//
// Each tool requires the capability named after its pack.
//
// # Tool Routing
//
// When a client calls a tool, the router:
//
//  1. Looks up the tool by name in the registry
//  2. Derives a deadline from the tool's TimeoutSeconds or the default
//  3. Runs the handler, recovering panics
//  4. Reports ok, error or timeout to the Recorder
//
// Handler errors are returned inside ToolResult with IsError set. A handler
// can attach a structured payload by returning a ResultError.
//
// # Capabilities
//
// GetToolsForCapabilities and HasCapabilities filter tools by the caller's
// capabilities. A tool with no required capabilities is always visible.
//
// # Usage
//
//	registry := packs.NewRegistry(logger)
//	_ = registry.RegisterBuiltinPack(builtins.FanPack(svc))
//	router := packs.NewRouter(packs.RouterConfig{Registry: registry, Logger: logger})
//	result, err := router.RouteToolCall(ctx, "get_fan_segments", input, requestID, callerID)
package packs
