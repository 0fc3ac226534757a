// ABOUTME: Tests for the MCP token store
// ABOUTME: Covers minting, pre-shared tokens, copies and invalidation

package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenStore(t *testing.T) {
	s := NewTokenStore()
	caps := []string{"fans", "merch"}

	token := s.CreateToken("kiosk", caps)
	require.NotEmpty(t, token)
	caps[0] = "mutated"

	id, ok := s.Lookup(token)
	require.True(t, ok)
	assert.Equal(t, "kiosk", id.Subject)
	assert.Equal(t, []string{"fans", "merch"}, id.Capabilities)

	id.Capabilities[0] = "changed"
	again, _ := s.Lookup(token)
	assert.Equal(t, "fans", again.Capabilities[0])

	s.Add("static", "ops", []string{"marketing"})
	assert.Equal(t, 2, s.TokenCount())

	s.InvalidateToken(token)
	_, ok = s.Lookup(token)
	assert.False(t, ok)
	assert.Equal(t, 1, s.TokenCount())
}
