package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTPAddr    string       `env:"HTTP_ADDR" envDefault:":8080"`
	DatabaseURL string       `env:"DATABASE_URL"`
	LogLevel    logrus.Level `env:"LOG_LEVEL" envDefault:"info"`

	RedisAddr          string `env:"REDIS_ADDR"`
	RedisDB            int    `env:"REDIS_DB" envDefault:"0"`
	HistorianQueueName string `env:"HISTORIAN_QUEUE_NAME" envDefault:"uno_actions"`
	HistorianBatchSize int    `env:"HISTORIAN_BATCH_SIZE" envDefault:"20"`
	HistorianFlushMs   int    `env:"HISTORIAN_FLUSH_MS" envDefault:"500"`

	// GameInactivityTimeout is how long the historian waits for a session's next action before
	// marking it abandoned.
	GameInactivityTimeout time.Duration `env:"GAME_INACTIVITY_TIMEOUT" envDefault:"10m"`

	NATSURL string `env:"NATS_URL"`

	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"5m"`
	LobbyIdleTimeout   time.Duration `env:"LOBBY_IDLE_TIMEOUT" envDefault:"15m"`
	SweepInterval      time.Duration `env:"SWEEP_INTERVAL" envDefault:"15s"`
	FinishedRetention  time.Duration `env:"FINISHED_RETENTION" envDefault:"10m"`
	SelectionTTL       time.Duration `env:"SELECTION_TTL" envDefault:"1m"`

	StartingCoins int64 `env:"STARTING_COINS" envDefault:"100"`

	// TokenExpireTime is "never", "0", empty, or a duration such as 72h.
	TokenExpireTime string `env:"TOKEN_EXPIRE_TIME" envDefault:"never"`
	// Raw ed25519 key files. When unset, a fresh key pair is generated at startup.
	JWTPrivateKeyPath string `env:"JWT_PRIVATE_KEY_PATH"`
	JWTPublicKeyPath  string `env:"JWT_PUBLIC_KEY_PATH"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", cfg.SweepInterval)
	}
	if cfg.StartingCoins < 0 {
		return nil, fmt.Errorf("STARTING_COINS must not be negative, got %d", cfg.StartingCoins)
	}
	if (cfg.JWTPrivateKeyPath == "") != (cfg.JWTPublicKeyPath == "") {
		return nil, fmt.Errorf("JWT_PRIVATE_KEY_PATH and JWT_PUBLIC_KEY_PATH must be set together")
	}
	return &cfg, nil
}

// FlushInterval is the historian batch flush delay.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.HistorianFlushMs) * time.Millisecond
}
