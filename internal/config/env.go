package config

import (
	"strconv"
	"strings"
	"time"
)

// applyEnv overrides cfg from environment variables. Unparseable values are
// ignored and the previous value kept.
func applyEnv(cfg *Config, getenv func(string) string) {
	if port := getenv("SERVER_PORT"); port != "" {
		cfg.Server.Port = port
	}

	if origins := getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.Server.AllowedOrigins = parseOrigins(origins)
	}

	if maxSize := getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.Server.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.Server.MaxMessageSize)
	}

	if burst := getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.Server.RateLimit.Burst = parseIntValue(burst, cfg.Server.RateLimit.Burst)
	}

	// Whole seconds.
	if interval := getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.Server.RateLimit.RefillInterval = parseRefillInterval(interval, cfg.Server.RateLimit.RefillInterval)
	}

	if timeout := getenv("SEND_TIMEOUT"); timeout != "" {
		cfg.Server.SendTimeout = parseDuration(timeout, cfg.Server.SendTimeout)
	}

	if buf := getenv("SEND_BUFFER"); buf != "" {
		cfg.Server.SendBuffer = parseIntValue(buf, cfg.Server.SendBuffer)
	}

	if level := getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	if format := getenv("LOG_FORMAT"); format != "" {
		cfg.Log.Format = format
	}
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseRefillInterval(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
