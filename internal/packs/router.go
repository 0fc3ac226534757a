// ABOUTME: Routes tool calls to built-in handlers with per-call timeouts.
// ABOUTME: Tracks in-flight requests and reports call outcomes to a metrics recorder.

package packs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrToolNotFound indicates the requested tool is not registered.
var ErrToolNotFound = errors.New("tool not found")

// ErrDuplicateRequestID indicates the request ID is already in use.
var ErrDuplicateRequestID = errors.New("duplicate request ID")

// ErrRouterClosed indicates the router is shutting down.
var ErrRouterClosed = errors.New("router closed")

// DefaultTimeout is the default timeout for tool execution.
const DefaultTimeout = 30 * time.Second

// Call outcomes reported to the Recorder
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Recorder receives one observation per routed tool call.
type Recorder interface {
	ObserveToolCall(tool, outcome string, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveToolCall(string, string, time.Duration) {}

// ToolResult is the outcome of a tool call. When IsError is set, Output holds
// a structured error payload if the handler supplied one, and Error holds the message.
type ToolResult struct {
	RequestID string
	Output    json.RawMessage
	Error     string
	IsError   bool
}

// Router routes tool calls to builtin handlers.
type Router struct {
	registry *Registry
	logger   *slog.Logger
	timeout  time.Duration
	recorder Recorder

	// pending tracks in-flight requests; cancelling one aborts its handler
	mu      sync.Mutex
	pending map[string]context.CancelFunc
	closed  bool
}

// RouterConfig contains configuration options for the Router.
type RouterConfig struct {
	Registry *Registry
	Logger   *slog.Logger
	Timeout  time.Duration
	Recorder Recorder
}

// NewRouter creates a new Router with the given configuration.
func NewRouter(cfg RouterConfig) *Router {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &Router{
		registry: cfg.Registry,
		logger:   logger.With("component", "router"),
		timeout:  timeout,
		recorder: recorder,
		pending:  make(map[string]context.CancelFunc),
	}
}

// RouteToolCall runs a builtin tool. Handler failures are returned inside the
// ToolResult; the error return is reserved for routing failures (unknown tool,
// duplicate request ID, timeout or cancellation).
func (r *Router) RouteToolCall(ctx context.Context, toolName string, input json.RawMessage, requestID, callerID string) (*ToolResult, error) {
	builtin := r.registry.GetBuiltinTool(toolName)
	if builtin == nil {
		r.logger.Debug("tool not found in registry",
			"tool_name", toolName,
			"request_id", requestID,
		)
		return nil, ErrToolNotFound
	}

	timeout := r.timeout
	if builtin.Definition.TimeoutSeconds > 0 {
		timeout = time.Duration(builtin.Definition.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := r.createPendingRequest(requestID, cancel); err != nil {
		return nil, err
	}
	defer r.closePendingRequest(requestID)

	r.logger.Debug("dispatching to builtin",
		"tool_name", toolName,
		"request_id", requestID,
		"caller_id", callerID,
	)

	start := time.Now()
	type handlerResult struct {
		out json.RawMessage
		err error
	}
	done := make(chan handlerResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- handlerResult{err: fmt.Errorf("tool %s panicked: %v", toolName, p)}
			}
		}()
		out, err := builtin.Handler(ctx, callerID, input)
		done <- handlerResult{out: out, err: err}
	}()

	select {
	case res := <-done:
		elapsed := time.Since(start)
		if res.err != nil {
			r.recorder.ObserveToolCall(toolName, OutcomeError, elapsed)
			r.logger.Warn("builtin tool error",
				"tool_name", toolName,
				"request_id", requestID,
				"error", res.err,
			)
			result := &ToolResult{RequestID: requestID, Error: res.err.Error(), IsError: true}
			var resErr *ResultError
			if errors.As(res.err, &resErr) {
				result.Output = resErr.Output
			}
			return result, nil
		}

		r.recorder.ObserveToolCall(toolName, OutcomeOK, elapsed)
		r.logger.Info("tool call completed",
			"tool_name", toolName,
			"request_id", requestID,
			"duration_ms", elapsed.Milliseconds(),
		)
		return &ToolResult{RequestID: requestID, Output: res.out}, nil

	case <-ctx.Done():
		r.recorder.ObserveToolCall(toolName, OutcomeTimeout, time.Since(start))
		r.logger.Warn("tool call timed out or cancelled",
			"tool_name", toolName,
			"request_id", requestID,
			"timeout", timeout,
			"error", ctx.Err(),
		)
		return nil, ctx.Err()
	}
}

// HasTool checks if a tool with the given name exists in the registry.
func (r *Router) HasTool(toolName string) bool {
	return r.registry.IsBuiltin(toolName)
}

// GetToolDefinition returns the tool definition for a given tool name.
// Returns nil if the tool is not found.
func (r *Router) GetToolDefinition(toolName string) *ToolDefinition {
	if builtin := r.registry.GetBuiltinTool(toolName); builtin != nil {
		return builtin.Definition
	}
	return nil
}

// createPendingRequest registers an in-flight request.
// Returns ErrDuplicateRequestID if a request with the same ID is already pending.
func (r *Router) createPendingRequest(requestID string, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRouterClosed
	}
	if _, exists := r.pending[requestID]; exists {
		return ErrDuplicateRequestID
	}
	r.pending[requestID] = cancel
	return nil
}

// closePendingRequest removes an in-flight request.
func (r *Router) closePendingRequest(requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, requestID)
}

// PendingCount returns the number of in-flight tool requests (for testing/monitoring).
func (r *Router) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Close cancels all in-flight requests and rejects new ones.
// This should be called during graceful shutdown to unblock any waiting callers.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cancelled := len(r.pending)
	for requestID, cancel := range r.pending {
		cancel()
		delete(r.pending, requestID)
	}
	r.closed = true

	r.logger.Info("router closed", "pending_cancelled", cancelled)
}
