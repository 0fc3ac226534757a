// ABOUTME: Tests for Gateway construction, health endpoints, metrics, MCP wiring and lifecycle
// ABOUTME: Builds gateways over an in-memory SQLite database seeded with the demo dataset

package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/2389/fanpulse/internal/auth"
	"github.com/2389/fanpulse/internal/config"
	"github.com/2389/fanpulse/internal/store"
)

var testNow = time.Date(2026, time.March, 15, 14, 30, 0, 0, time.UTC)

const testSecret = "0123456789abcdef0123456789abcdef"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default(t.TempDir())
	cfg.Database.Path = ":memory:"
	cfg.Database.Seed = true
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Server.GRPCAddr = "127.0.0.1:0"
	cfg.MCP.RateLimit = 0
	cfg.MCP.ToolTimeout = 5 * time.Second
	return cfg
}

// newTestGateway builds a seeded gateway; mutate may adjust the config first.
func newTestGateway(t *testing.T, mutate func(*config.Config)) (*Gateway, http.Handler) {
	t.Helper()
	cfg := testConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	gw, err := New(cfg, testLogger(), WithClock(func() time.Time { return testNow }), WithVersion("test"))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = gw.Shutdown(ctx)
	})
	return gw, gw.Handler()
}

func get(h http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func rpc(h http.Handler, path, session, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set("Mcp-Session-Id", session)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	_, h := newTestGateway(t, nil)

	rr := get(h, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())
}

func TestReady(t *testing.T) {
	gw, h := newTestGateway(t, nil)

	rr := get(h, "/health/ready", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var body readyResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, "ok", body.Store)

	// A closed store fails the ping
	require.NoError(t, gw.store.Close())
	rr = get(h, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "unavailable")
}

func TestNew_SeedsOnlyEmptyDatabase(t *testing.T) {
	st, err := store.NewSQLiteStore(":memory:", store.WithLogger(testLogger()))
	require.NoError(t, err)
	require.NoError(t, st.CreateFan(context.Background(), &store.Fan{Name: "Only Fan", Email: "only@example.com", JoinDate: testNow}))

	cfg := testConfig(t)
	gw, err := New(cfg, testLogger(), WithStore(st), WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	defer func() { _ = gw.Shutdown(context.Background()) }()

	fans, err := st.ListFans(context.Background())
	require.NoError(t, err)
	assert.Len(t, fans, 1)
}

func TestNew_InvalidDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "postgres"
	_, err := New(cfg, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initializing store")
}

func TestNew_RequireAuthWithoutCredentials(t *testing.T) {
	cfg := testConfig(t)
	cfg.MCP.RequireAuth = true
	cfg.MCP.Tokens = nil

	// TokenStore is always present, so the MCP server accepts the config; callers without a token are rejected
	gw, err := New(cfg, testLogger(), WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	defer func() { _ = gw.Shutdown(context.Background()) }()

	rr := rpc(gw.Handler(), "/mcp", "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	assert.Contains(t, rr.Body.String(), "authentication required")
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := newTestGateway(t, nil)

	get(h, "/api/segments", nil)
	rr := get(h, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `fanpulse_http_requests_total{method="GET",route="/api/segments",status="200"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestMetricsDisabled(t *testing.T) {
	_, h := newTestGateway(t, func(c *config.Config) { c.Metrics.Enabled = false })
	assert.Equal(t, http.StatusNotFound, get(h, "/metrics", nil).Code)
}

func TestMCPEndToEnd(t *testing.T) {
	_, h := newTestGateway(t, nil)

	rr := rpc(h, "/mcp", "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-11-25"}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	session := rr.Header().Get("Mcp-Session-Id")
	require.NotEmpty(t, session)
	assert.Contains(t, rr.Body.String(), `"name":"fanpulse"`)

	rr = rpc(h, "/mcp", session, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Len(t, list.Result.Tools, 8)

	rr = rpc(h, "/mcp", session, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"get_fan_segments","arguments":{}}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var call struct {
		Result struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &call))
	require.False(t, call.Result.IsError)
	require.Len(t, call.Result.Content, 1)

	var segments SegmentsResponse
	require.NoError(t, json.Unmarshal([]byte(call.Result.Content[0].Text), &segments))
	assert.Equal(t, 10, segments.TotalFans)

	// Tool calls are counted by the collector
	metrics := get(h, "/metrics", nil).Body.String()
	assert.Contains(t, metrics, `fanpulse_tool_calls_total{outcome="ok",tool="get_fan_segments"} 1`)
}

func TestMCPStaticToken(t *testing.T) {
	_, h := newTestGateway(t, func(c *config.Config) {
		c.MCP.RequireAuth = true
		c.MCP.Tokens = []config.MCPToken{{Name: "merch-bot", Token: "merch-token-0123456789", Capabilities: []string{"merch"}}}
	})

	rr := rpc(h, "/mcp/merch-token-0123456789", "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	session := rr.Header().Get("Mcp-Session-Id")
	require.NotEmpty(t, session)

	rr = rpc(h, "/mcp/merch-token-0123456789", session, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	assert.Contains(t, rr.Body.String(), "search_merchandise")
	assert.NotContains(t, rr.Body.String(), "get_fan_profile")
}

func TestMCPJWT(t *testing.T) {
	_, h := newTestGateway(t, func(c *config.Config) {
		c.Auth.JWTSecret = testSecret
		c.MCP.RequireAuth = true
	})

	token, err := auth.NewJWTVerifier([]byte(testSecret)).Generate("analyst", []string{"marketing"}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	session := rr.Header().Get("Mcp-Session-Id")
	require.NotEmpty(t, session)

	rr = rpc(h, "/mcp", session, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	body := rr.Body.String()
	assert.Contains(t, body, "create_promotion")
	assert.NotContains(t, body, "search_merchandise")
}

func TestMCPRateLimit(t *testing.T) {
	_, h := newTestGateway(t, func(c *config.Config) {
		c.MCP.RateLimit = 0.001
		c.MCP.RateBurst = 1
	})

	initReq := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`
	assert.Equal(t, http.StatusOK, rpc(h, "/mcp", "", initReq).Code)
	assert.Equal(t, http.StatusTooManyRequests, rpc(h, "/mcp", "", initReq).Code)

	// The REST API is not rate limited
	assert.Equal(t, http.StatusOK, get(h, "/api/segments", nil).Code)
}

func TestDetermineMCPEndpoint(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Server.HTTPAddr = "localhost:9000"
	assert.Equal(t, "http://localhost:9000/mcp", determineMCPEndpoint(cfg))

	cfg.Tailscale.Enabled = true
	cfg.Tailscale.Hostname = "fans"
	assert.Equal(t, "http://fans/mcp", determineMCPEndpoint(cfg))

	cfg.Tailscale.HTTPS = true
	assert.Equal(t, "https://fans/mcp", determineMCPEndpoint(cfg))

	t.Setenv("FANPULSE_MCP_ENDPOINT", "https://fanpulse.example.com/mcp")
	assert.Equal(t, "https://fanpulse.example.com/mcp", determineMCPEndpoint(cfg))
}

func TestResolveTailscaleAuthKey(t *testing.T) {
	key, err := resolveTailscaleAuthKey("tskey-config")
	require.NoError(t, err)
	assert.Equal(t, "tskey-config", key)

	t.Setenv("TS_AUTHKEY", "tskey-env")
	key, err = resolveTailscaleAuthKey("")
	require.NoError(t, err)
	assert.Equal(t, "tskey-env", key)

	t.Setenv("TS_AUTHKEY", "")
	_, err = resolveTailscaleAuthKey("")
	assert.Error(t, err)
}

func TestGRPCHealthStatus(t *testing.T) {
	gw, _ := newTestGateway(t, nil)
	ctx := context.Background()

	resp, err := gw.healthServer.Check(ctx, &healthpb.HealthCheckRequest{Service: HealthServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())

	gw.setServing(true)
	resp, err = gw.healthServer.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestRunAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	gw, err := New(cfg, testLogger(), WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx) }()

	// Let the listeners come up before cancelling
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_ListenError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.HTTPAddr = "256.0.0.1:99999"
	gw, err := New(cfg, testLogger(), WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	defer func() { _ = gw.Shutdown(context.Background()) }()

	err = gw.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on HTTP address")
}
