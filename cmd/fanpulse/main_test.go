// ABOUTME: Tests for the fanpulse CLI helpers
// ABOUTME: Covers capability parsing, token minting, segment printing and the log handler

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/fanpulse/internal/auth"
	"github.com/2389/fanpulse/internal/config"
	"github.com/2389/fanpulse/internal/insights"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func TestParseCapabilities(t *testing.T) {
	caps, err := parseCapabilities(" fans, marketing ,")
	require.NoError(t, err)
	assert.Equal(t, []string{"fans", "marketing"}, caps)

	_, err = parseCapabilities("fans,admin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown capability "admin"`)

	_, err = parseCapabilities(" , ")
	assert.Error(t, err)
}

func writeConfig(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fanpulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	t.Setenv("FANPULSE_CONFIG", path)
}

func TestRunToken(t *testing.T) {
	writeConfig(t, "auth:\n  jwt_secret: \""+testSecret+"\"\n")

	var out bytes.Buffer
	require.NoError(t, runToken([]string{"--name", "dashboard", "--caps", "merch", "--ttl", "1h"}, &out))

	identity, err := auth.NewJWTVerifier([]byte(testSecret)).Verify(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "dashboard", identity.Subject)
	assert.Equal(t, []string{"merch"}, identity.Capabilities)
}

func TestRunToken_Errors(t *testing.T) {
	writeConfig(t, "logging:\n  level: debug\n")

	tests := []struct {
		args []string
		want string
	}{
		{nil, "--name flag is required"},
		{[]string{"--name", "x", "extra"}, "unexpected argument"},
		{[]string{"--name", "x", "--ttl", "-1h"}, "must not be negative"},
		{[]string{"--name", "x", "--caps", "root"}, "unknown capability"},
		{[]string{"--name", "x"}, "auth.jwt_secret not configured"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			err := runToken(tt.args, &bytes.Buffer{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("FANPULSE_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, path, err := loadConfig()
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.HTTPAddr)
}

func TestPrintSegments(t *testing.T) {
	groups := []insights.SegmentGroup{
		{Segment: insights.SegmentSuperfans, Count: 2, Members: []insights.SegmentMember{{Name: "Maya Chen"}, {Name: "Tom Becker"}}},
		{Segment: insights.SegmentDormantFans, Count: 0},
	}

	var out bytes.Buffer
	require.NoError(t, printSegments(&out, groups))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "SEGMENT"))
	assert.Contains(t, lines[1], "Maya Chen, Tom Becker")
	assert.True(t, strings.HasPrefix(lines[3], "total"))
	assert.Contains(t, lines[3], "2")
}

func TestNewLogger_JSON(t *testing.T) {
	var out bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &out)

	logger.Info("hidden")
	logger.Warn("shown", "fan_id", 7)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.InDelta(t, 7, entry["fan_id"], 0)
}

func TestColorHandler(t *testing.T) {
	var out bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "debug"}, &out)

	logger.With("component", "gateway").WithGroup("req").Debug("tool call", "tool", "get_fan_profile")

	line := out.String()
	assert.Contains(t, line, "DBG tool call")
	assert.Contains(t, line, "component=gateway")
	assert.Contains(t, line, "req.tool=get_fan_profile")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel("DEBUG").String())
	assert.Equal(t, "INFO", parseLevel("").String())
	assert.Equal(t, "ERROR", parseLevel("error").String())
}
