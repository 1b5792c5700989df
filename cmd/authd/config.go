package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type config struct {
	Addr        string `env:"AUTHD_ADDR" envDefault:":8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	RedisURL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	TokenSecret string `env:"JWT_SECRET,required"`
	TokenIssuer string `env:"JWT_ISSUER" envDefault:"authd"`

	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"15m"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"2s"`

	LoginLimit         int           `env:"LOGIN_RATE_LIMIT" envDefault:"10"`
	LoginWindow        time.Duration `env:"LOGIN_RATE_WINDOW" envDefault:"1m"`
	ThrottlePerIP      bool          `env:"THROTTLE_PER_IP" envDefault:"true"`
	ThrottleFailClosed bool          `env:"THROTTLE_FAIL_CLOSED" envDefault:"false"`

	KafkaBrokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaAuditTopic string   `env:"KAFKA_AUDIT_TOPIC" envDefault:"auth.audit"`
}

// loadConfig reads .env when present, then the process environment.
func loadConfig() (config, error) {
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
