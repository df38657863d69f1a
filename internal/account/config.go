package account

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Config holds the settings of the account service.
type Config struct {
	DatabaseURL string
	MinConns    int
	MaxConns    int
	JWTSecret   string
	TokenTTL    time.Duration
	BcryptCost  int
}

// Enabled reports whether a database is configured.
func (c Config) Enabled() bool {
	return c.DatabaseURL != ""
}

func (c Config) bcryptCost() int {
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return c.BcryptCost
}

func (c Config) tokenTTL() time.Duration {
	if c.TokenTTL <= 0 {
		return 24 * time.Hour
	}
	return c.TokenTTL
}
