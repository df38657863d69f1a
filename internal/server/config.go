package server

import (
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the gateway settings including security controls and the
// per-connection transport limits.
type Config struct {
	Port           string
	AllowedOrigins []string
	MaxMessageSize int64
	RateLimit      RateLimitConfig
	// SendBufferSize is the number of frames a client may lag behind before
	// it is evicted.
	SendBufferSize int
	// WriteTimeout bounds every socket write; a stalled write closes the
	// connection.
	WriteTimeout time.Duration
	PongWait     time.Duration
}

const (
	defaultPort           = ":8080"
	defaultMaxMessageSize = 4096
	defaultSendBuffer     = 256
	defaultWriteTimeout   = 10 * time.Second
	defaultPongWait       = 60 * time.Second
)

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := Config{
		Port: defaultPort,
		AllowedOrigins: []string{
			"http://localhost:8080",
			"http://localhost:3000",
		},
		MaxMessageSize: defaultMaxMessageSize,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		SendBufferSize: defaultSendBuffer,
		WriteTimeout:   defaultWriteTimeout,
		PongWait:       defaultPongWait,
	}
	return &cfg
}

// Sanitize returns a copy of cfg with every unset or invalid value replaced
// by its default.
func (cfg Config) Sanitize() Config {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if !strings.Contains(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 5
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}

	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaultSendBuffer
	}

	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	if cfg.PongWait <= 0 {
		cfg.PongWait = defaultPongWait
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// Limiter returns a token bucket that holds Burst frames and refills all of
// them over RefillInterval.
func (rl RateLimitConfig) Limiter() *rate.Limiter {
	burst, interval := rl.Burst, rl.RefillInterval
	if burst <= 0 {
		burst = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	return rate.NewLimiter(rate.Every(interval/time.Duration(burst)), burst)
}

// PingPeriod is how often the write pump pings; it must stay below PongWait.
func (cfg Config) PingPeriod() time.Duration {
	return cfg.PongWait * 9 / 10
}
