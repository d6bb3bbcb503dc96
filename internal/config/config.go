// Package config loads runtime configuration from the environment and an
// optional YAML file. Environment variables win over the file, the file
// wins over defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sheetsync/ssync/internal/smartsheet"
)

// DefaultConfigFile is looked for in the working directory when no
// explicit config file is given.
const DefaultConfigFile = "ssync.yaml"

// Config is the resolved runtime configuration.
type Config struct {
	// APIToken authenticates against the Smartsheet API. Required.
	APIToken string

	// WorkspaceID is the workspace to mirror. Required.
	WorkspaceID int64

	// DataDir is the root of the local mirror.
	DataDir string

	RequestTimeout    time.Duration
	MaxRetries        int
	Parallelism       int
	RequestsPerMinute int

	// SecurityMode is "enterprise" (full TLS verification) or "testing"
	// (certificate checks disabled, for lab endpoints only).
	SecurityMode string

	// LogLevel is "info" or "debug".
	LogLevel string

	// LogFile, when set, mirrors log output to a rotating file.
	LogFile string
}

// Load resolves configuration from defaults, the config file, and the
// environment. cfgFile may be empty, in which case ./ssync.yaml is used if
// present.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("data_dir", "data")
	v.SetDefault("request_timeout", "30s")
	v.SetDefault("max_retries", 3)
	v.SetDefault("parallelism", 1)
	v.SetDefault("requests_per_minute", 240)
	v.SetDefault("security_mode", smartsheet.SecurityModeEnterprise)
	v.SetDefault("log_level", "info")

	// WORKSPACE_ID is accepted as a fallback for compatibility with
	// older deployments.
	v.BindEnv("api_token", "SMARTSHEET_API_TOKEN")
	v.BindEnv("workspace_id", "SMARTSHEET_WORKSPACE_ID", "WORKSPACE_ID")
	v.BindEnv("data_dir", "SSYNC_DATA_DIR")
	v.BindEnv("request_timeout", "SSYNC_REQUEST_TIMEOUT")
	v.BindEnv("max_retries", "SSYNC_MAX_RETRIES")
	v.BindEnv("parallelism", "SSYNC_PARALLELISM")
	v.BindEnv("requests_per_minute", "SSYNC_REQUESTS_PER_MINUTE")
	v.BindEnv("security_mode", "SSYNC_SECURITY_MODE")
	v.BindEnv("log_level", "SSYNC_LOG_LEVEL")
	v.BindEnv("log_file", "SSYNC_LOG_FILE")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultConfigFile, ".yaml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	cfg := &Config{
		APIToken:          v.GetString("api_token"),
		WorkspaceID:       v.GetInt64("workspace_id"),
		DataDir:           v.GetString("data_dir"),
		RequestTimeout:    v.GetDuration("request_timeout"),
		MaxRetries:        v.GetInt("max_retries"),
		Parallelism:       v.GetInt("parallelism"),
		RequestsPerMinute: v.GetInt("requests_per_minute"),
		SecurityMode:      strings.ToLower(v.GetString("security_mode")),
		LogLevel:          strings.ToLower(v.GetString("log_level")),
		LogFile:           v.GetString("log_file"),
	}
	return cfg, nil
}

// Validate checks the configuration for use by commands that talk to the
// API. Commands that only read local state skip it.
func (c *Config) Validate() error {
	if c.APIToken == "" {
		return fmt.Errorf("api token is required (set SMARTSHEET_API_TOKEN)")
	}
	if c.WorkspaceID == 0 {
		return fmt.Errorf("workspace id is required (set SMARTSHEET_WORKSPACE_ID)")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism)
	}
	switch c.SecurityMode {
	case smartsheet.SecurityModeEnterprise, smartsheet.SecurityModeTesting:
	default:
		return fmt.Errorf("security mode must be %q or %q, got %q",
			smartsheet.SecurityModeEnterprise, smartsheet.SecurityModeTesting, c.SecurityMode)
	}
	switch c.LogLevel {
	case "info", "debug":
	default:
		return fmt.Errorf("log level must be info or debug, got %q", c.LogLevel)
	}
	return nil
}
