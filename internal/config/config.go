package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Default values.
const (
	DefaultPort            = ":8080"
	DefaultMaxMessageSize  = 4096
	DefaultSendTimeout     = 5 * time.Second
	DefaultSendBuffer      = 256
	DefaultShutdownTimeout = 10 * time.Second
	DefaultRateBurst       = 5
	DefaultRefillInterval  = time.Second
	DefaultMetricsPath     = "/metrics"
)

// Config is the whole relay configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds the transport and per-connection settings.
type ServerConfig struct {
	Port            string          `yaml:"port"`
	AllowedOrigins  []string        `yaml:"allowed_origins"`
	MaxMessageSize  int64           `yaml:"max_message_size"`
	SendTimeout     time.Duration   `yaml:"send_timeout"`
	SendBuffer      int             `yaml:"send_buffer"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig is a token bucket: Burst frames, refilled over RefillInterval.
type RateLimitConfig struct {
	Burst          int           `yaml:"burst"`
	RefillInterval time.Duration `yaml:"refill_interval"`
}

// LogConfig selects the zap level and encoder.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            DefaultPort,
			AllowedOrigins:  []string{"http://localhost:8080"},
			MaxMessageSize:  DefaultMaxMessageSize,
			SendTimeout:     DefaultSendTimeout,
			SendBuffer:      DefaultSendBuffer,
			ShutdownTimeout: DefaultShutdownTimeout,
			RateLimit: RateLimitConfig{
				Burst:          DefaultRateBurst,
				RefillInterval: DefaultRefillInterval,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (skipped
// when path is empty), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "config: read %q", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "config: parse yaml")
		}
	}

	applyEnv(cfg, os.Getenv)

	if err := validate(cfg); err != nil {
		return nil, errors.Wrap(err, "config")
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	s := cfg.Server
	if strings.TrimSpace(s.Port) == "" {
		return errors.New("server.port must not be empty")
	}
	if s.MaxMessageSize <= 0 {
		return errors.Errorf("server.max_message_size %d must be positive", s.MaxMessageSize)
	}
	if s.SendTimeout <= 0 {
		return errors.Errorf("server.send_timeout %s must be positive", s.SendTimeout)
	}
	if s.SendBuffer <= 0 {
		return errors.Errorf("server.send_buffer %d must be positive", s.SendBuffer)
	}
	if s.ShutdownTimeout < 0 {
		return errors.New("server.shutdown_timeout must not be negative")
	}
	if s.RateLimit.Burst <= 0 || s.RateLimit.RefillInterval <= 0 {
		return errors.New("server.rate_limit burst and refill_interval must be positive")
	}
	switch cfg.Log.Format {
	case "console", "json", "":
	default:
		return errors.Errorf("log.format %q unknown: want console|json", cfg.Log.Format)
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return errors.Errorf("metrics.path %q must start with /", cfg.Metrics.Path)
	}
	return nil
}
