package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development" validate:"oneof=development production test"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080" validate:"required"`

	DBDriver    string `env:"DB_DRIVER" envDefault:"sqlite" validate:"oneof=postgres sqlite"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"quizzr.db" validate:"required"`
	DBMaxIdle   int    `env:"DB_MAX_IDLE" envDefault:"10" validate:"min=1"`
	DBMaxOpen   int    `env:"DB_MAX_OPEN" envDefault:"20" validate:"min=1,gtefield=DBMaxIdle"`

	RedisURL          string        `env:"REDIS_URL" validate:"omitempty,url"`
	ReviewLockTTL     time.Duration `env:"REVIEW_LOCK_TTL" envDefault:"30s" validate:"min=1s"`
	ReviewsPerNewCard int           `env:"REVIEWS_PER_NEW_CARD" envDefault:"5" validate:"min=1,max=100"`

	TelegramBotToken string        `env:"TELEGRAM_BOT_TOKEN"`
	ReminderInterval time.Duration `env:"REMINDER_INTERVAL" envDefault:"1h" validate:"min=1m"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load reads the optional .env files into the environment, then parses
// and validates the configuration from it.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	return Parse()
}

func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
