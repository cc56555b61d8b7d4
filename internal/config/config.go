package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all server configuration, loaded from the environment with an
// optional .env file for development.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:"0.0.0.0"`
	Port       string `env:"PORT" envDefault:"8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	TokenSecret string        `env:"TOKEN_SECRET"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" envDefault:"15m"`

	HistoryLimit  int     `env:"HISTORY_LIMIT" envDefault:"50"`
	MessageMaxLen int     `env:"MESSAGE_MAX_LEN" envDefault:"500"`
	WalkSpeed     float64 `env:"WALK_SPEED" envDefault:"4"`
	CanonicalSlug string  `env:"CANONICAL_SLUG" envDefault:"lobby"`
}

// Load reads configuration. Priority: environment > .env file > defaults.
// A missing .env file is fine; missing required secrets are not.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.TokenSecret == "" {
		return nil, fmt.Errorf("TOKEN_SECRET is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.TokenTTL > 15*time.Minute {
		return nil, fmt.Errorf("TOKEN_TTL must not exceed 15m, got %s", cfg.TokenTTL)
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	if cfg.MessageMaxLen <= 0 {
		cfg.MessageMaxLen = 500
	}
	if cfg.WalkSpeed <= 0 {
		cfg.WalkSpeed = 4
	}
	return cfg, nil
}

// Addr returns the host:port bind address.
func (c *Config) Addr() string {
	return c.ListenAddr + ":" + c.Port
}
