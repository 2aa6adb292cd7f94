// Package server holds the runtime settings of the websocket front end. They
// can be swapped while the server runs (config hot reload); connections pick
// up the new values when they are created.
package server

import (
	"sync"
	"time"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the runtime settings applied to new connections.
type Config struct {
	Port           string
	AllowedOrigins []string
	MaxMessageSize int64
	RateLimit      RateLimitConfig
	SendTimeout    time.Duration
	SendBuffer     int
}

type runtimeState struct {
	cfg     Config
	origins originPolicy
}

var (
	stateMu sync.RWMutex
	state   runtimeState
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: 4096,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		SendTimeout: 5 * time.Second,
		SendBuffer:  256,
	}
}

func sanitizeConfig(cfg Config) Config {
	def := defaultConfig()

	if cfg.Port == "" {
		cfg.Port = def.Port
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = def.RateLimit.Burst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}

	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}

	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}

	return cfg
}

// SetConfig applies the provided configuration. Passing nil resets to defaults.
func SetConfig(cfg *Config) {
	next := defaultConfig()
	if cfg != nil {
		next = *cfg
		next.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	}
	next = sanitizeConfig(next)

	policy := newOriginPolicy(next.AllowedOrigins)
	next.AllowedOrigins = policy.list()

	stateMu.Lock()
	defer stateMu.Unlock()
	state = runtimeState{cfg: next, origins: policy}
}

func currentConfig() Config {
	stateMu.RLock()
	defer stateMu.RUnlock()

	cfg := state.cfg
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

func currentOrigins() originPolicy {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return state.origins
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}
