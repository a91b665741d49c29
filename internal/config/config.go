package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Addr     string `env:"ADDR" envDefault:":4646"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Persistence: "file" or "redis".
	StoreBackend  string `env:"STORE_BACKEND" envDefault:"file"`
	StorePath     string `env:"STORE_PATH" envDefault:"data/sessions.json"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Optional Kafka notification sink; disabled when no brokers are set.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"gendesk.notifications"`

	// Optional AI auto-responder; canned replies are used without a key.
	OpenAIKey string `env:"OPENAI_API_KEY"`

	// Simulated transport timing.
	DeliveryDelay  time.Duration `env:"DELIVERY_DELAY" envDefault:"800ms"`
	WelcomeDelay   time.Duration `env:"WELCOME_DELAY" envDefault:"1500ms"`
	TypingDelayMin time.Duration `env:"TYPING_DELAY_MIN" envDefault:"1s"`
	TypingDelayMax time.Duration `env:"TYPING_DELAY_MAX" envDefault:"3s"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.StoreBackend != "file" && cfg.StoreBackend != "redis" {
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	return cfg, nil
}
