package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SMARTSHEET_API_TOKEN", "token-123")
	t.Setenv("SMARTSHEET_WORKSPACE_ID", "7116448184769412")
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no ssync.yaml in scope
	setRequiredEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "token-123", cfg.APIToken)
	assert.Equal(t, int64(7116448184769412), cfg.WorkspaceID)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 1, cfg.Parallelism)
	assert.Equal(t, 240, cfg.RequestsPerMinute)
	assert.Equal(t, "enterprise", cfg.SecurityMode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.LogFile)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequiredEnv(t)
	t.Setenv("SSYNC_DATA_DIR", "/var/lib/ssync")
	t.Setenv("SSYNC_REQUEST_TIMEOUT", "45s")
	t.Setenv("SSYNC_MAX_RETRIES", "5")
	t.Setenv("SSYNC_PARALLELISM", "4")
	t.Setenv("SSYNC_SECURITY_MODE", "testing")
	t.Setenv("SSYNC_LOG_LEVEL", "debug")
	t.Setenv("SSYNC_LOG_FILE", "/var/log/ssync.log")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/var/lib/ssync", cfg.DataDir)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 4, cfg.Parallelism)
	assert.Equal(t, "testing", cfg.SecurityMode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/var/log/ssync.log", cfg.LogFile)
}

func TestLoadWorkspaceIDFallbackEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SMARTSHEET_API_TOKEN", "token-123")
	t.Setenv("WORKSPACE_ID", "42")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.WorkspaceID)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ssync.yaml")
	body := `api_token: file-token
workspace_id: 99
data_dir: /srv/mirror
max_retries: 7
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.APIToken)
	assert.Equal(t, int64(99), cfg.WorkspaceID)
	assert.Equal(t, "/srv/mirror", cfg.DataDir)
	assert.Equal(t, 7, cfg.MaxRetries)
	// Unset keys keep their defaults.
	assert.Equal(t, 1, cfg.Parallelism)
}

func TestLoadEnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ssync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /from/file\n"), 0o644))

	setRequiredEnv(t)
	t.Setenv("SSYNC_DATA_DIR", "/from/env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.DataDir)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			APIToken:       "tok",
			WorkspaceID:    1,
			DataDir:        "data",
			RequestTimeout: 30 * time.Second,
			MaxRetries:     3,
			Parallelism:    1,
			SecurityMode:   "enterprise",
			LogLevel:       "info",
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing token", func(c *Config) { c.APIToken = "" }},
		{"missing workspace", func(c *Config) { c.WorkspaceID = 0 }},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"zero retries", func(c *Config) { c.MaxRetries = 0 }},
		{"zero parallelism", func(c *Config) { c.Parallelism = 0 }},
		{"bad security mode", func(c *Config) { c.SecurityMode = "paranoid" }},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
