package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temp dir and returns the focusd config dir inside it.
func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".config", "focusd")
	require.NoError(t, os.MkdirAll(dir, 0700))
	return dir
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "osascript", cfg.Bridge.Kind)
	assert.True(t, cfg.Bridge.Serialize)
	assert.Equal(t, 200, cfg.Batch.MaxOperations)
	assert.Equal(t, "focusd.batches", cfg.Events.SubjectPrefix)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := setupTestHome(t)

	cfg, err := Load(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Batch, cfg.Batch)
	assert.Equal(t, Default().Bridge, cfg.Bridge)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `
server:
  http_enabled: true
  http_port: 8088
bridge:
  kind: memory
  call_timeout: 5s
  min_interval: 0s
batch:
  max_operations: 25
events:
  enabled: true
  url: nats://events:4222
  token: s3cret
`, 0600)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Server.HTTPEnabled)
	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host, "unset fields keep defaults")
	assert.Equal(t, "memory", cfg.Bridge.Kind)
	assert.Equal(t, 5*time.Second, cfg.Bridge.CallTimeout)
	assert.Equal(t, time.Duration(0), cfg.Bridge.MinInterval)
	assert.Equal(t, 25, cfg.Batch.MaxOperations)
	assert.Equal(t, "nats://events:4222", cfg.Events.URL)
	assert.Equal(t, "s3cret", cfg.Events.Token.Value())
	assert.Equal(t, "[REDACTED]", cfg.Events.Token.String())
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "batch:\n  max_operations: 25\n", 0600)

	t.Setenv("FOCUSD_BATCH_MAX_OPERATIONS", "7")
	t.Setenv("FOCUSD_BRIDGE_KIND", "memory")
	t.Setenv("FOCUSD_BATCH_REQUEST_TIMEOUT", "30s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Batch.MaxOperations)
	assert.Equal(t, "memory", cfg.Bridge.Kind)
	assert.Equal(t, 30*time.Second, cfg.Batch.RequestTimeout)
}

func TestLoad_RejectsInsecurePermissions(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "bridge:\n  kind: memory\n", 0644)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoad_RejectsPathOutsideAllowedDirs(t *testing.T) {
	setupTestHome(t)
	outside := filepath.Join(t.TempDir(), "config.yaml")

	_, err := Load(outside)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config path validation failed")
}

func TestLoad_InvalidValuesFailValidation(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "bridge:\n  kind: carrier-pigeon\n", 0600)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown bridge kind")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Server.HTTPEnabled = true; c.Server.Port = 0 }, "invalid server port"},
		{"port ignored when http disabled", func(c *Config) { c.Server.Port = 0 }, ""},
		{"zero max operations", func(c *Config) { c.Batch.MaxOperations = 0 }, "max_operations"},
		{"zero call timeout", func(c *Config) { c.Bridge.CallTimeout = 0 }, "call_timeout"},
		{"events without url", func(c *Config) { c.Events.Enabled = true; c.Events.URL = "" }, "events url"},
		{"missing osascript path", func(c *Config) { c.Bridge.OSAScriptPath = "" }, "osascript_path"},
		{"memory bridge needs no path", func(c *Config) { c.Bridge.Kind = "memory"; c.Bridge.OSAScriptPath = "" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Section(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "logging:\n  format: console\n", 0600)

	cfg, err := Load(path)
	require.NoError(t, err)

	out := struct {
		Format string `koanf:"format"`
		Level  string `koanf:"level"`
	}{Format: "json", Level: "info"}

	require.NoError(t, cfg.Section("logging", &out))
	assert.Equal(t, "console", out.Format)
	assert.Equal(t, "info", out.Level, "absent keys keep caller defaults")

	require.NoError(t, cfg.Section("telemetry", &out), "missing section is a no-op")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.http_port", envKey("FOCUSD_SERVER_HTTP_PORT"))
	assert.Equal(t, "bridge.kind", envKey("FOCUSD_BRIDGE_KIND"))
	assert.Equal(t, "debug", envKey("FOCUSD_DEBUG"))
}
