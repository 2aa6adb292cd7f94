// Package config loads the relay configuration from an optional YAML file and
// the environment.
//
// Config fields:
//   - Server.Port: listen address (default ":8080")
//   - Server.AllowedOrigins: websocket Origin allow-list, "*" allows any
//   - Server.MaxMessageSize: largest inbound frame in bytes (default 4096)
//   - Server.SendTimeout: how long one outbound send may wait (default 5s)
//   - Server.SendBuffer: per-connection outbound queue depth (default 256)
//   - Server.ShutdownTimeout: graceful shutdown budget (default 10s)
//   - Server.RateLimit: per-connection token bucket (default 5 per 1s)
//   - Log.Level, Log.Format: zap level and "console" | "json"
//   - Metrics.Enabled, .Path: Prometheus endpoint (default on, "/metrics")
//
// Load(path) applies defaults, then the file (if path is not empty), then
// environment overrides, then validates. Watch reloads on file changes.
package config
