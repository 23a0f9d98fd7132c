// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Plugin settings:
//
//	PLUGHOST_BASE_DIR=""              # working directory when empty
//	PLUGHOST_PLUGIN_DIR="plugins"
//	PLUGHOST_LOCALE="en"              # BCP 47 tag passed to activateResources
//	PLUGHOST_WATCH="false"
//	PLUGHOST_WATCH_DEBOUNCE="500ms"
//	PLUGHOST_RESCAN_SCHEDULE=""       # cron spec, e.g. "*/5 * * * *"
//
// Server settings:
//
//	PLUGHOST_METRICS_ADDR=""          # e.g. ":9090", empty disables the admin server
//	PLUGHOST_READ_TIMEOUT="15s"
//	PLUGHOST_WRITE_TIMEOUT="15s"
//	PLUGHOST_SHUTDOWN_TIMEOUT="10s"
//
// Observability settings:
//
//	PLUGHOST_LOG_LEVEL="info"         # debug, info, warn, error
//	PLUGHOST_LOG_FORMAT="text"        # text, json
//	PLUGHOST_OTEL_ENDPOINT=""         # e.g. "localhost:4317"
//	PLUGHOST_OTEL_SERVICE_NAME="plughost"
//
// # Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
