// Package config loads process settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"

	"github.com/Tyrowin/roomchat/internal/account"
	"github.com/Tyrowin/roomchat/internal/server"
)

// Config is the full process configuration.
type Config struct {
	Port           string `env:"SERVER_PORT,default=:8080"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS"`
	MaxMessageSize int    `env:"MAX_MESSAGE_SIZE,default=4096"`

	RateLimitBurst          int           `env:"RATE_LIMIT_BURST,default=5"`
	RateLimitRefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s"`

	SendBufferSize  int           `env:"SEND_BUFFER_SIZE,default=256"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	PongWait        time.Duration `env:"PONG_WAIT,default=60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=console"`

	DatabaseURL string        `env:"DATABASE_URL"`
	DBMinConns  int           `env:"DB_MIN_CONNS,default=1"`
	DBMaxConns  int           `env:"DB_MAX_CONNS,default=10"`
	JWTSecret   string        `env:"JWT_SECRET"`
	JWTTTL      time.Duration `env:"JWT_TTL,default=24h"`
	BcryptCost  int           `env:"BCRYPT_COST,default=10"`
}

// Load reads the given .env files, skipping missing ones, and then decodes
// the process environment. Variables already set win over file values.
func Load(dotenvFiles ...string) (Config, error) {
	for _, file := range dotenvFiles {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}
	return FromEnviron(os.Environ())
}

// FromEnviron decodes a list of KEY=VALUE pairs.
func FromEnviron(environ []string) (Config, error) {
	es, err := env.EnvironToEnvSet(environ)
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.DatabaseURL != "" && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required when DATABASE_URL is set")
	}
	return nil
}

// Server returns the gateway settings. Unset values fall back to the gateway
// defaults.
func (c Config) Server() server.Config {
	cfg := *server.NewConfig()
	cfg.Port = c.Port
	if origins := splitList(c.AllowedOrigins); len(origins) > 0 {
		cfg.AllowedOrigins = origins
	}
	cfg.MaxMessageSize = int64(c.MaxMessageSize)
	cfg.RateLimit = server.RateLimitConfig{
		Burst:          c.RateLimitBurst,
		RefillInterval: c.RateLimitRefillInterval,
	}
	cfg.SendBufferSize = c.SendBufferSize
	cfg.WriteTimeout = c.WriteTimeout
	cfg.PongWait = c.PongWait
	return cfg.Sanitize()
}

// Account returns the account service settings.
func (c Config) Account() account.Config {
	return account.Config{
		DatabaseURL: c.DatabaseURL,
		MinConns:    c.DBMinConns,
		MaxConns:    c.DBMaxConns,
		JWTSecret:   c.JWTSecret,
		TokenTTL:    c.JWTTTL,
		BcryptCost:  c.BcryptCost,
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
