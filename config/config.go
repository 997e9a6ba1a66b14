package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
)

// MinKeyLength is the shortest HMAC key accepted for signing tokens.
const MinKeyLength = 32

type Config struct {
	Addr           string        `env:"ADDR" envDefault:":8080"`
	DBDriver       string        `env:"DB_DRIVER" envDefault:"postgres"`
	DBSource       string        `env:"DB_SOURCE"`
	RedisAddr      string        `env:"REDIS_ADDR"`
	JWTKey         string        `env:"JWT_KEY"`
	JWTIssuer      string        `env:"JWT_ISSUER" envDefault:"task-api"`
	JWTAudience    string        `env:"JWT_AUDIENCE" envDefault:"task-api-clients"`
	TokenTTL       time.Duration `env:"TOKEN_TTL" envDefault:"1h"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"3s"`
	CORSOrigins    []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:3000,http://localhost:5121"`

	// MigrateOnly makes the server create its tables and exit.
	MigrateOnly bool `env:"-"`
}

// Load reads the environment, then applies command-line overrides from
// args (without the program name).
func Load(args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	flagSet := pflag.NewFlagSet("task-api", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	flagSet.StringVar(&cfg.DBDriver, "db-driver", cfg.DBDriver, "database driver (postgres or sqlite3)")
	flagSet.StringVar(&cfg.DBSource, "db-source", cfg.DBSource, "database connection string")
	flagSet.BoolVar(&cfg.MigrateOnly, "migrate-only", false, "create tables and exit")
	if err := flagSet.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DBSource) == "" {
		return errors.New("DB_SOURCE is required")
	}
	switch c.DBDriver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite3, got %q", c.DBDriver)
	}
	if c.MigrateOnly {
		return nil
	}
	if len(c.JWTKey) < MinKeyLength {
		return fmt.Errorf("JWT_KEY must be at least %d bytes", MinKeyLength)
	}
	if strings.TrimSpace(c.JWTIssuer) == "" {
		return errors.New("JWT_ISSUER is required")
	}
	if strings.TrimSpace(c.JWTAudience) == "" {
		return errors.New("JWT_AUDIENCE is required")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	return nil
}
