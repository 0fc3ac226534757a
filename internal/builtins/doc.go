// Package builtins provides the fanpulse tool packs.
//
// # Overview
//
// Each pack wraps an insights.Service and exposes its operations as MCP
// tools. Handlers decode and validate JSON input, call the service, and
// encode a JSON result with calendar dates rendered as YYYY-MM-DD.
//
// # Tool Packs
//
// The package provides 3 packs with 8 tools:
//
// Fans Pack (fans) - requires "fans" capability:
//
//   - get_fan_profile: Fan by fan_id or email with recent activity
//   - log_engagement_event: Append an engagement event
//   - get_fan_engagement_metrics: One fan's windowed summary or the ranked list
//   - get_merch_recommendations: Scored merchandise for a fan
//
// Merch Pack (merch) - requires "merch" capability:
//
//   - search_merchandise: Catalog search (in_stock_only defaults to true)
//
// Marketing Pack (marketing) - requires "marketing" capability:
//
//   - create_promotion: Store a promotion and estimate its reach
//   - get_fan_segments: Five segment groups, optionally for one team
//   - list_promotions: Newest promotions first
//
// # Errors
//
// A missing fan produces a structured error result:
//
//	{"error":"not_found","entity":"fan","id":42}
//
// Invalid input produces {"error":"invalid_input", ...} with the failing
// fields. Both reach the client as tool results with isError set, so an
// error is never confused with an empty result.
//
// # Usage
//
//	svc := insights.NewService(st, insights.Options{Logger: logger})
//	for _, pack := range builtins.All(svc) {
//	    if err := registry.RegisterBuiltinPack(pack); err != nil {
//	        return err
//	    }
//	}
package builtins
