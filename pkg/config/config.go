package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

// Config holds all application configuration
type Config struct {
	// Plugin discovery configuration
	Plugins PluginsConfig

	// HTTP admin server configuration
	Server ServerConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// PluginsConfig holds plugin discovery and activation settings
type PluginsConfig struct {
	BaseDir        string // empty means the working directory
	PluginDir      string
	Locale         string
	Watch          bool
	WatchDebounce  time.Duration
	RescanSchedule string // cron spec, empty disables scheduled rescans
}

// ServerConfig holds HTTP admin server configuration
type ServerConfig struct {
	Addr            string // empty disables the server
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel  string
	LogFormat string

	// OpenTelemetry
	OTelEndpoint       string // empty disables tracing
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables and validates it
func LoadConfig() (*Config, error) {
	cfg := FromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// FromEnv reads configuration from environment variables without
// validating it, so that command-line flags can still override bad values
func FromEnv() *Config {
	return &Config{
		Plugins:       loadPluginsConfig(),
		Server:        loadServerConfig(),
		Observability: loadObservabilityConfig(),
	}
}

// RegisterFlags binds the command-line overrides of c to fs. Call Validate
// after fs has been parsed.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Plugins.BaseDir, "base-dir", c.Plugins.BaseDir, "Base directory containing the plugin directory (default: working directory)")
	fs.StringVar(&c.Plugins.Locale, "locale", c.Plugins.Locale, "Locale passed to activateResources")
	fs.BoolVar(&c.Plugins.Watch, "watch", c.Plugins.Watch, "Keep running and rescan when the plugin directory changes")
	fs.StringVar(&c.Server.Addr, "addr", c.Server.Addr, "Admin server address (e.g. :9090), empty disables it")
}

// loadPluginsConfig loads plugin configuration from environment
func loadPluginsConfig() PluginsConfig {
	return PluginsConfig{
		BaseDir:        getEnv("PLUGHOST_BASE_DIR", ""),
		PluginDir:      getEnv("PLUGHOST_PLUGIN_DIR", "plugins"),
		Locale:         getEnv("PLUGHOST_LOCALE", "en"),
		Watch:          getEnvBool("PLUGHOST_WATCH", false),
		WatchDebounce:  getEnvDuration("PLUGHOST_WATCH_DEBOUNCE", 500*time.Millisecond),
		RescanSchedule: getEnv("PLUGHOST_RESCAN_SCHEDULE", ""),
	}
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            getEnv("PLUGHOST_METRICS_ADDR", ""),
		ReadTimeout:     getEnvDuration("PLUGHOST_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("PLUGHOST_WRITE_TIMEOUT", 15*time.Second),
		ShutdownTimeout: getEnvDuration("PLUGHOST_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           strings.ToLower(getEnv("PLUGHOST_LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("PLUGHOST_LOG_FORMAT", "text")),
		OTelEndpoint:       getEnv("PLUGHOST_OTEL_ENDPOINT", ""),
		OTelServiceName:    getEnv("PLUGHOST_OTEL_SERVICE_NAME", "plughost"),
		OTelServiceVersion: getEnv("PLUGHOST_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("PLUGHOST_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate plugin config
	if c.Plugins.PluginDir == "" {
		return fmt.Errorf("plugin directory name is required")
	}
	if strings.ContainsAny(c.Plugins.PluginDir, `/\`) || c.Plugins.PluginDir == "." || c.Plugins.PluginDir == ".." {
		return fmt.Errorf("plugin directory must be a plain name: %s", c.Plugins.PluginDir)
	}
	if _, err := language.Parse(c.Plugins.Locale); err != nil {
		return fmt.Errorf("invalid locale %q: %w", c.Plugins.Locale, err)
	}
	if c.Plugins.Watch && c.Plugins.WatchDebounce <= 0 {
		return fmt.Errorf("watch debounce must be positive")
	}
	if c.Plugins.RescanSchedule != "" {
		if _, err := cron.ParseStandard(c.Plugins.RescanSchedule); err != nil {
			return fmt.Errorf("invalid rescan schedule %q: %w", c.Plugins.RescanSchedule, err)
		}
	}

	// Validate observability config
	if _, err := logrus.ParseLevel(c.Observability.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Observability.LogLevel)
	}
	switch c.Observability.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Observability.LogFormat)
	}
	if c.Observability.OTelEndpoint != "" && c.Observability.OTelServiceName == "" {
		return fmt.Errorf("OpenTelemetry service name is required when an endpoint is set")
	}

	return nil
}

// Tag returns the configured activation locale
func (p PluginsConfig) Tag() language.Tag {
	tag, err := language.Parse(p.Locale)
	if err != nil {
		return language.English
	}
	return tag
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
