// Package config handles loading and validation of the bridge agent
// configuration: a YAML file plus ARIABRIDGE_* environment variable
// overrides, following the same viper-based convention as the teacher
// agent's configuration loader.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/ariabridge/bridge-client/internal/bridge"
)

const (
	// DefaultConfigPath is the default location for the agent configuration file.
	DefaultConfigPath = "/etc/ariabridge/agent.yaml"

	// DefaultDataDir is the default data_dir. Validate creates it; nothing
	// in the agent reads or writes files in it. The event buffer itself is
	// never persisted here — spec.md explicitly excludes buffer persistence.
	DefaultDataDir = "/var/lib/ariabridge"
)

// FileConfig mirrors the on-disk/env configuration surface, separate from
// bridge.Config so the wire-facing type stays free of mapstructure/yaml
// tags.
type FileConfig struct {
	URL                 string   `mapstructure:"url" yaml:"url"`
	Secret              string   `mapstructure:"secret" yaml:"secret"`
	ProjectID           string   `mapstructure:"project_id" yaml:"project_id"`
	Capabilities        []string `mapstructure:"capabilities" yaml:"capabilities"`
	HeartbeatIntervalMS int      `mapstructure:"heartbeat_interval_ms" yaml:"heartbeat_interval_ms"`
	HeartbeatTimeoutMS  int      `mapstructure:"heartbeat_timeout_ms" yaml:"heartbeat_timeout_ms"`
	BackoffInitialMS    int      `mapstructure:"backoff_initial_ms" yaml:"backoff_initial_ms"`
	BackoffMaxMS        int      `mapstructure:"backoff_max_ms" yaml:"backoff_max_ms"`
	BufferLimit         int      `mapstructure:"buffer_limit" yaml:"buffer_limit"`

	// DataDir is a reserved state directory; Validate creates it, and no
	// file is written to it.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`

	// LogLevel controls the logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// Load reads configuration from the given file path, falling back to
// DefaultConfigPath if configPath is empty. Environment variables under the
// ARIABRIDGE_ prefix override file values.
func Load(configPath string) (bridge.Config, FileConfig, error) {
	v := viper.New()

	// Set defaults.
	v.SetDefault("data_dir", DefaultDataDir)
	v.SetDefault("log_level", "info")
	v.SetDefault("capabilities", []string{"console", "error"})
	v.SetDefault("heartbeat_interval_ms", bridge.DefaultHeartbeatIntervalMS)
	v.SetDefault("heartbeat_timeout_ms", bridge.DefaultHeartbeatTimeoutMS)
	v.SetDefault("backoff_initial_ms", bridge.DefaultBackoffInitialMS)
	v.SetDefault("backoff_max_ms", bridge.DefaultBackoffMaxMS)
	v.SetDefault("buffer_limit", bridge.DefaultBufferLimit)

	// Configure file source.
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(DefaultConfigPath)
	}

	// Configure environment variable overrides.
	v.SetEnvPrefix("ARIABRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific environment variables to config keys.
	envBindings := map[string]string{
		"url":                   "ARIABRIDGE_URL",
		"secret":                "ARIABRIDGE_SECRET",
		"project_id":            "ARIABRIDGE_PROJECT_ID",
		"capabilities":          "ARIABRIDGE_CAPABILITIES",
		"heartbeat_interval_ms": "ARIABRIDGE_HEARTBEAT_INTERVAL_MS",
		"heartbeat_timeout_ms":  "ARIABRIDGE_HEARTBEAT_TIMEOUT_MS",
		"backoff_initial_ms":    "ARIABRIDGE_BACKOFF_INITIAL_MS",
		"backoff_max_ms":        "ARIABRIDGE_BACKOFF_MAX_MS",
		"buffer_limit":          "ARIABRIDGE_BUFFER_LIMIT",
		"data_dir":              "ARIABRIDGE_DATA_DIR",
		"log_level":             "ARIABRIDGE_LOG_LEVEL",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	// Read config file.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			// Config file not found; rely on env vars and defaults.
		} else {
			return bridge.Config{}, FileConfig{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return bridge.Config{}, FileConfig{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := fc.Validate(); err != nil {
		return bridge.Config{}, FileConfig{}, fmt.Errorf("config validation: %w", err)
	}

	return bridge.Config{
		URL:                 fc.URL,
		Secret:              fc.Secret,
		ProjectID:           fc.ProjectID,
		Capabilities:        fc.Capabilities,
		HeartbeatIntervalMS: fc.HeartbeatIntervalMS,
		HeartbeatTimeoutMS:  fc.HeartbeatTimeoutMS,
		BackoffInitialMS:    fc.BackoffInitialMS,
		BackoffMaxMS:        fc.BackoffMaxMS,
		BufferLimit:         fc.BufferLimit,
	}, fc, nil
}

// Validate checks that all required configuration fields are present and
// well-formed.
func (c *FileConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}

	if c.Secret == "" {
		return fmt.Errorf("secret is required")
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	// Ensure data directory exists.
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return fmt.Errorf("creating data directory %s: %w", c.DataDir, err)
	}

	return nil
}
