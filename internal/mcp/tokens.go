// ABOUTME: MCP token store mapping opaque access tokens to caller identities.
// ABOUTME: Tokens come from configuration or are minted at runtime and carry capabilities.

package mcp

import (
	"sync"

	"github.com/google/uuid"

	"github.com/2389/fanpulse/internal/auth"
)

type tokenEntry struct {
	name string
	caps []string
}

// TokenStore manages opaque MCP access tokens and their associated capabilities.
// These tokens are accepted in the URL path (/mcp/<token>) or the ?token= parameter.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[string]tokenEntry
}

// NewTokenStore creates a new token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		tokens: make(map[string]tokenEntry),
	}
}

// CreateToken generates a new token for name with the given capabilities.
// Returns the token string that should be included in MCP URLs.
func (s *TokenStore) CreateToken(name string, capabilities []string) string {
	token := uuid.New().String()
	s.Add(token, name, capabilities)
	return token
}

// Add registers a pre-shared token, replacing any previous entry.
func (s *TokenStore) Add(token, name string, capabilities []string) {
	// Copy capabilities to avoid aliasing
	caps := make([]string, len(capabilities))
	copy(caps, capabilities)

	s.mu.Lock()
	s.tokens[token] = tokenEntry{name: name, caps: caps}
	s.mu.Unlock()
}

// Lookup returns the identity for a token.
func (s *TokenStore) Lookup(token string) (*auth.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.tokens[token]
	if !ok {
		return nil, false
	}

	// Return a copy to prevent modification
	caps := make([]string, len(entry.caps))
	copy(caps, entry.caps)
	return &auth.Identity{Subject: entry.name, Capabilities: caps}, true
}

// InvalidateToken removes a token from the store.
func (s *TokenStore) InvalidateToken(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

// TokenCount returns the number of active tokens (for monitoring).
func (s *TokenStore) TokenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}
