// ABOUTME: Tests for the MCP HTTP server including sessions, tool listing and execution.
// ABOUTME: Validates token auth, capability filtering, and error responses.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/fanpulse/internal/auth"
	"github.com/2389/fanpulse/internal/packs"
)

var testSecret = []byte("mcp-test-secret-0123456789abcdef")

func testTool(name, capability string, h packs.ToolHandler) *packs.BuiltinTool {
	var caps []string
	if capability != "" {
		caps = []string{capability}
	}
	return &packs.BuiltinTool{
		Definition: &packs.ToolDefinition{
			Name:                 name,
			Description:          name + " tool",
			InputSchemaJSON:      `{"type":"object"}`,
			RequiredCapabilities: caps,
		},
		Handler: h,
	}
}

func echoHandler(_ context.Context, callerID string, input json.RawMessage) (json.RawMessage, error) {
	return json.Marshal(map[string]any{"caller": callerID, "input": input})
}

// setupServer creates a server with fans and marketing tools mounted on a chi router.
func setupServer(t *testing.T, mutate func(*Config)) (*Server, http.Handler) {
	t.Helper()
	registry := packs.NewRegistry(slog.Default())
	err := registry.RegisterBuiltinPack(&packs.BuiltinPack{
		ID: "test",
		Tools: []*packs.BuiltinTool{
			testTool("get_fan_profile", "fans", echoHandler),
			testTool("get_fan_segments", "marketing", echoHandler),
			testTool("lookup_missing", "fans", func(context.Context, string, json.RawMessage) (json.RawMessage, error) {
				return nil, packs.NewResultError(errors.New("fan 9 not found"),
					map[string]any{"error": "not_found", "entity": "fan", "id": 9})
			}),
			testTool("plain_failure", "fans", func(context.Context, string, json.RawMessage) (json.RawMessage, error) {
				return nil, errors.New("database is locked")
			}),
		},
	})
	require.NoError(t, err)

	tokens := NewTokenStore()
	tokens.Add("fans-token", "fan-desk", []string{"fans"})

	cfg := Config{
		Registry:      registry,
		Router:        packs.NewRouter(packs.RouterConfig{Registry: registry, Timeout: 5 * time.Second}),
		Logger:        slog.Default(),
		TokenVerifier: auth.NewJWTVerifier(testSecret),
		TokenStore:    tokens,
		DefaultCaps:   []string{"fans", "marketing"},
		Version:       "test",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	server, err := NewServer(cfg)
	require.NoError(t, err)

	r := chi.NewRouter()
	server.RegisterRoutes(r)
	return server, r
}

type rpcCall struct {
	path    string
	session string
	header  http.Header
	body    string
}

func post(h http.Handler, c rpcCall) *httptest.ResponseRecorder {
	path := c.path
	if path == "" {
		path = "/mcp"
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(c.body))
	req.Header.Set("Content-Type", "application/json")
	if c.session != "" {
		req.Header.Set("Mcp-Session-Id", c.session)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeRPC(t *testing.T, rr *httptest.ResponseRecorder) JSONRPCResponse {
	t.Helper()
	var resp JSONRPCResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return resp
}

const initBody = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-11-25"}}`

// initialize opens a session and returns its ID.
func initialize(t *testing.T, h http.Handler, c rpcCall) string {
	t.Helper()
	c.body = initBody
	rr := post(h, c)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeRPC(t, rr)
	require.Nil(t, resp.Error)
	sessionID := rr.Header().Get("Mcp-Session-Id")
	require.NotEmpty(t, sessionID)
	return sessionID
}

func listToolNames(t *testing.T, h http.Handler, c rpcCall) []string {
	t.Helper()
	c.body = `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`
	rr := post(h, c)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Result MCPListToolsResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	names := make([]string, 0, len(resp.Result.Tools))
	for _, tool := range resp.Result.Tools {
		names = append(names, tool.Name)
		assert.JSONEq(t, `{"type":"object"}`, string(tool.InputSchema))
	}
	return names
}

func callTool(t *testing.T, h http.Handler, c rpcCall, name, args string) (MCPCallToolResult, *JSONRPCError) {
	t.Helper()
	c.body = `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"` + name + `","arguments":` + args + `}}`
	rr := post(h, c)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Result MCPCallToolResult `json:"result"`
		Error  *JSONRPCError     `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Result, resp.Error
}

func TestInitialize(t *testing.T) {
	server, h := setupServer(t, nil)

	rr := post(h, rpcCall{body: initBody})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.NotEmpty(t, rr.Header().Get("Mcp-Session-Id"))

	resp := decodeRPC(t, rr)
	assert.JSONEq(t, `1`, string(resp.ID))
	result := resp.Result.(map[string]any)
	assert.Equal(t, latestProtocolVersion, result["protocolVersion"])
	assert.Equal(t, map[string]any{"name": "fanpulse", "version": "test"}, result["serverInfo"])
	assert.Equal(t, 1, server.SessionCount())
}

func TestPingAndNotifications(t *testing.T) {
	_, h := setupServer(t, nil)
	session := initialize(t, h, rpcCall{})

	rr := post(h, rpcCall{session: session, body: `{"jsonrpc":"2.0","method":"notifications/initialized"}`})
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Empty(t, rr.Body.String())

	rr = post(h, rpcCall{session: session, body: `{"jsonrpc":"2.0","id":"p1","method":"ping"}`})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"p1","result":{}}`, rr.Body.String())

	rr = post(h, rpcCall{session: session, body: `{"jsonrpc":"2.0","id":4,"method":"resources/list"}`})
	resp := decodeRPC(t, rr)
	require.NotNil(t, resp.Error)
	assert.Equal(t, JSONRPCMethodNotFound, resp.Error.Code)
}

func TestToolsList_Capabilities(t *testing.T) {
	_, h := setupServer(t, nil)

	t.Run("default capabilities", func(t *testing.T) {
		session := initialize(t, h, rpcCall{})
		names := listToolNames(t, h, rpcCall{session: session})
		assert.Equal(t, []string{"get_fan_profile", "get_fan_segments", "lookup_missing", "plain_failure"}, names)
	})

	t.Run("path token", func(t *testing.T) {
		session := initialize(t, h, rpcCall{path: "/mcp/fans-token"})
		names := listToolNames(t, h, rpcCall{path: "/mcp/fans-token", session: session})
		assert.Equal(t, []string{"get_fan_profile", "lookup_missing", "plain_failure"}, names)
	})

	t.Run("query token", func(t *testing.T) {
		session := initialize(t, h, rpcCall{path: "/mcp?token=fans-token"})
		names := listToolNames(t, h, rpcCall{session: session})
		assert.NotContains(t, names, "get_fan_segments")
	})

	t.Run("bearer jwt caps claim", func(t *testing.T) {
		token, err := auth.NewJWTVerifier(testSecret).Generate("dashboard", []string{"marketing"}, time.Hour)
		require.NoError(t, err)
		header := http.Header{"Authorization": {"Bearer " + token}}

		session := initialize(t, h, rpcCall{header: header})
		names := listToolNames(t, h, rpcCall{session: session})
		assert.Equal(t, []string{"get_fan_segments"}, names)
	})
}

func TestInitialize_AuthFailures(t *testing.T) {
	_, h := setupServer(t, nil)

	tests := []struct {
		name string
		call rpcCall
	}{
		{"unknown path token", rpcCall{path: "/mcp/bogus"}},
		{"nested path token", rpcCall{path: "/mcp/fans-token/extra"}},
		{"unknown query token", rpcCall{path: "/mcp?token=bogus"}},
		{"bad bearer", rpcCall{header: http.Header{"Authorization": {"Bearer not-a-jwt"}}}},
		{"non-bearer scheme", rpcCall{header: http.Header{"Authorization": {"Basic Zm9vOmJhcg=="}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.call.body = initBody
			rr := post(h, tt.call)
			resp := decodeRPC(t, rr)
			require.NotNil(t, resp.Error)
			assert.Equal(t, "invalid or expired token", resp.Error.Message)
			assert.Empty(t, rr.Header().Get("Mcp-Session-Id"))
		})
	}

	t.Run("auth required without credentials", func(t *testing.T) {
		_, strict := setupServer(t, func(c *Config) { c.RequireAuth = true })
		resp := decodeRPC(t, post(strict, rpcCall{body: initBody}))
		require.NotNil(t, resp.Error)
		assert.Equal(t, "authentication required", resp.Error.Message)
	})
}

func TestToolsCall(t *testing.T) {
	_, h := setupServer(t, nil)
	session := initialize(t, h, rpcCall{path: "/mcp/fans-token"})
	c := rpcCall{path: "/mcp/fans-token", session: session}

	t.Run("success", func(t *testing.T) {
		result, rpcErr := callTool(t, h, c, "get_fan_profile", `{"fan_id":1}`)
		require.Nil(t, rpcErr)
		assert.False(t, result.IsError)
		require.Len(t, result.Content, 1)
		assert.Equal(t, "text", result.Content[0].Type)
		assert.JSONEq(t, `{"caller":"fan-desk","input":{"fan_id":1}}`, result.Content[0].Text)
	})

	t.Run("null arguments become empty object", func(t *testing.T) {
		result, rpcErr := callTool(t, h, c, "get_fan_profile", `null`)
		require.Nil(t, rpcErr)
		assert.JSONEq(t, `{"caller":"fan-desk","input":{}}`, result.Content[0].Text)
	})

	t.Run("structured error result", func(t *testing.T) {
		result, rpcErr := callTool(t, h, c, "lookup_missing", `{}`)
		require.Nil(t, rpcErr)
		assert.True(t, result.IsError)
		assert.JSONEq(t, `{"error":"not_found","entity":"fan","id":9}`, result.Content[0].Text)
	})

	t.Run("plain error result", func(t *testing.T) {
		result, rpcErr := callTool(t, h, c, "plain_failure", `{}`)
		require.Nil(t, rpcErr)
		assert.True(t, result.IsError)
		assert.Equal(t, "database is locked", result.Content[0].Text)
	})

	t.Run("insufficient capabilities", func(t *testing.T) {
		_, rpcErr := callTool(t, h, c, "get_fan_segments", `{}`)
		require.NotNil(t, rpcErr)
		assert.Equal(t, JSONRPCInvalidRequest, rpcErr.Code)
	})

	t.Run("unknown tool", func(t *testing.T) {
		_, rpcErr := callTool(t, h, c, "drop_tables", `{}`)
		require.NotNil(t, rpcErr)
		assert.Equal(t, JSONRPCInvalidParams, rpcErr.Code)
		assert.Equal(t, "tool not found", rpcErr.Message)
	})

	t.Run("missing tool name", func(t *testing.T) {
		rr := post(h, rpcCall{session: session, body: `{"jsonrpc":"2.0","id":9,"method":"tools/call","params":{}}`})
		resp := decodeRPC(t, rr)
		require.NotNil(t, resp.Error)
		assert.Equal(t, JSONRPCInvalidParams, resp.Error.Code)
	})
}

func TestSessionValidation(t *testing.T) {
	server, h := setupServer(t, nil)

	rr := post(h, rpcCall{body: `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = post(h, rpcCall{session: "no-such-session", body: `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	session := initialize(t, h, rpcCall{})
	rr = post(h, rpcCall{
		session: session,
		header:  http.Header{"Mcp-Protocol-Version": {"1999-01-01"}},
		body:    `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`,
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	t.Run("idle sessions expire", func(t *testing.T) {
		start := time.Now()
		server.sessions.now = func() time.Time { return start }
		session := initialize(t, h, rpcCall{})

		server.sessions.now = func() time.Time { return start.Add(DefaultSessionTTL + time.Minute) }
		rr := post(h, rpcCall{session: session, body: `{"jsonrpc":"2.0","id":1,"method":"ping"}`})
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestMalformedRequests(t *testing.T) {
	_, h := setupServer(t, nil)

	resp := decodeRPC(t, post(h, rpcCall{body: `{not json`}))
	require.NotNil(t, resp.Error)
	assert.Equal(t, JSONRPCParseError, resp.Error.Code)

	resp = decodeRPC(t, post(h, rpcCall{body: `{"jsonrpc":"1.0","id":1,"method":"initialize"}`}))
	require.NotNil(t, resp.Error)
	assert.Equal(t, JSONRPCInvalidRequest, resp.Error.Code)

	big := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"pad":"` + strings.Repeat("x", MaxRequestBodySize) + `"}}`
	resp = decodeRPC(t, post(h, rpcCall{body: big}))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "request body too large", resp.Error.Message)

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestDeleteSession(t *testing.T) {
	server, h := setupServer(t, nil)
	session := initialize(t, h, rpcCall{path: "/mcp/fans-token"})

	del := func(path, id string) int {
		req := httptest.NewRequest(http.MethodDelete, path, nil)
		if id != "" {
			req.Header.Set("Mcp-Session-Id", id)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusBadRequest, del("/mcp", ""))
	assert.Equal(t, http.StatusForbidden, del("/mcp", session))
	assert.Equal(t, http.StatusNoContent, del("/mcp/fans-token", session))
	assert.Equal(t, http.StatusNotFound, del("/mcp/fans-token", session))
	assert.Equal(t, 0, server.SessionCount())
}

func TestNewServer_Validation(t *testing.T) {
	registry := packs.NewRegistry(nil)
	router := packs.NewRouter(packs.RouterConfig{Registry: registry})

	_, err := NewServer(Config{Router: router})
	assert.Error(t, err)
	_, err = NewServer(Config{Registry: registry})
	assert.Error(t, err)
	_, err = NewServer(Config{Registry: registry, Router: router, RequireAuth: true})
	assert.Error(t, err)
	_, err = NewServer(Config{Registry: registry, Router: router, RequireAuth: true, TokenStore: NewTokenStore()})
	assert.NoError(t, err)
}
