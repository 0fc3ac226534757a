// ABOUTME: Tool definition and handler types for tools that execute in-process.
// ABOUTME: Handlers can return a structured error payload via ResultError.

package packs

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolDefinition describes a tool to MCP clients.
type ToolDefinition struct {
	Name                 string
	Description          string
	InputSchemaJSON      string   // JSON Schema for the tool input
	RequiredCapabilities []string // caller must hold all of these
	TimeoutSeconds       int      // zero uses the router default
}

// ToolHandler is a function that executes a built-in tool.
// It receives the caller's ID and the tool input as JSON.
// Returns the result as JSON or an error.
type ToolHandler func(ctx context.Context, callerID string, input json.RawMessage) (json.RawMessage, error)

// BuiltinTool represents a tool that executes in the server process.
type BuiltinTool struct {
	Definition *ToolDefinition
	Handler    ToolHandler
}

// BuiltinPack is a collection of built-in tools with a pack ID.
type BuiltinPack struct {
	ID    string
	Tools []*BuiltinTool
}

// builtinEntry stores a builtin tool with its pack ID for registry lookup.
type builtinEntry struct {
	Tool   *BuiltinTool
	PackID string
}

// ResultError is returned by a handler whose failure should reach the caller
// as a structured result rather than a bare message.
type ResultError struct {
	Output json.RawMessage
	Err    error
}

func (e *ResultError) Error() string {
	return e.Err.Error()
}

func (e *ResultError) Unwrap() error {
	return e.Err
}

// NewResultError marshals payload as the error output of a tool call.
func NewResultError(err error, payload any) error {
	out, mErr := json.Marshal(payload)
	if mErr != nil {
		return fmt.Errorf("marshaling error payload: %w", mErr)
	}
	return &ResultError{Output: out, Err: err}
}
