// Package config holds the client application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete client configuration
type Config struct {
	// Backend connection configuration
	Backend BackendConfig `yaml:"backend" json:"backend"`

	// Plugin UI configuration
	Plugins PluginConfig `yaml:"plugins" json:"plugins"`

	// Local settings store configuration
	Settings SettingsConfig `yaml:"settings" json:"settings"`

	// Host API configuration (consumed by the rendering layer)
	Host HostConfig `yaml:"host" json:"host"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// BackendConfig holds media backend connection settings
type BackendConfig struct {
	BaseURL            string        `yaml:"base_url" json:"base_url" env:"REELHAVEN_BACKEND_URL"`
	RequestTimeout     time.Duration `yaml:"request_timeout" json:"request_timeout" env:"REELHAVEN_REQUEST_TIMEOUT"`
	ScrapeStartTimeout time.Duration `yaml:"scrape_start_timeout" json:"scrape_start_timeout" env:"REELHAVEN_SCRAPE_START_TIMEOUT"`
	PollTimeout        time.Duration `yaml:"poll_timeout" json:"poll_timeout" env:"REELHAVEN_POLL_TIMEOUT"`
	InstalledCacheTTL  time.Duration `yaml:"installed_cache_ttl" json:"installed_cache_ttl" env:"REELHAVEN_INSTALLED_CACHE_TTL"`
}

// PluginConfig holds plugin UI manifest settings
type PluginConfig struct {
	PluginDir       string        `yaml:"plugin_dir" json:"plugin_dir" env:"REELHAVEN_PLUGIN_DIR"`
	ManifestName    string        `yaml:"manifest_name" json:"manifest_name" env:"REELHAVEN_MANIFEST_NAME"`
	EnableHotReload bool          `yaml:"enable_hot_reload" json:"enable_hot_reload" env:"REELHAVEN_PLUGIN_HOT_RELOAD"`
	DebounceDelay   time.Duration `yaml:"debounce_delay" json:"debounce_delay" env:"REELHAVEN_RELOAD_DEBOUNCE"`
	Locale          string        `yaml:"locale" json:"locale" env:"REELHAVEN_LOCALE"`
}

// SettingsConfig holds the local key-value store settings
type SettingsConfig struct {
	DatabasePath string `yaml:"database_path" json:"database_path" env:"REELHAVEN_SETTINGS_DB"`
}

// HostConfig holds the local host API settings
type HostConfig struct {
	Listen string `yaml:"listen" json:"listen" env:"REELHAVEN_HOST_LISTEN"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" env:"REELHAVEN_LOG_LEVEL"`
	Format string `yaml:"format" json:"format" env:"REELHAVEN_LOG_FORMAT"`
}

// Default returns a configuration with all default values set
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:            "http://localhost:8620",
			RequestTimeout:     30 * time.Second,
			ScrapeStartTimeout: 60 * time.Second,
			PollTimeout:        10 * time.Second,
			InstalledCacheTTL:  30 * time.Second,
		},
		Plugins: PluginConfig{
			PluginDir:       "./data/plugins",
			ManifestName:    "ui.yaml",
			EnableHotReload: true,
			DebounceDelay:   500 * time.Millisecond,
			Locale:          "en",
		},
		Settings: SettingsConfig{
			DatabasePath: "./data/reelhaven.db",
		},
		Host: HostConfig{
			Listen: "127.0.0.1:8621",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from an optional YAML file and applies
// environment overrides on top of the defaults. A missing file is not an
// error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	envString("REELHAVEN_BACKEND_URL", &c.Backend.BaseURL)
	envDuration("REELHAVEN_REQUEST_TIMEOUT", &c.Backend.RequestTimeout)
	envDuration("REELHAVEN_SCRAPE_START_TIMEOUT", &c.Backend.ScrapeStartTimeout)
	envDuration("REELHAVEN_POLL_TIMEOUT", &c.Backend.PollTimeout)
	envDuration("REELHAVEN_INSTALLED_CACHE_TTL", &c.Backend.InstalledCacheTTL)

	envString("REELHAVEN_PLUGIN_DIR", &c.Plugins.PluginDir)
	envString("REELHAVEN_MANIFEST_NAME", &c.Plugins.ManifestName)
	envBool("REELHAVEN_PLUGIN_HOT_RELOAD", &c.Plugins.EnableHotReload)
	envDuration("REELHAVEN_RELOAD_DEBOUNCE", &c.Plugins.DebounceDelay)
	envString("REELHAVEN_LOCALE", &c.Plugins.Locale)

	envString("REELHAVEN_SETTINGS_DB", &c.Settings.DatabasePath)
	envString("REELHAVEN_HOST_LISTEN", &c.Host.Listen)
	envString("REELHAVEN_LOG_LEVEL", &c.Logging.Level)
	envString("REELHAVEN_LOG_FORMAT", &c.Logging.Format)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}
