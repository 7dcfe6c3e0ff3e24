package server

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the compute server configuration, loaded from the
// environment.
type Config struct {
	Addr        string        `env:"AVILA_ARROW_ADDR" envDefault:"127.0.0.1:9420"`
	MetricsAddr string        `env:"AVILA_ARROW_METRICS_ADDR" envDefault:"127.0.0.1:9421"`
	Workers     int           `env:"AVILA_ARROW_WORKERS" envDefault:"4"`
	QueueSize   int           `env:"AVILA_ARROW_QUEUE_SIZE" envDefault:"1024"`
	JobTimeout  time.Duration `env:"AVILA_ARROW_JOB_TIMEOUT" envDefault:"30s"`
	AuthEnabled bool          `env:"AVILA_ARROW_AUTH_ENABLED" envDefault:"false"`
	AuthToken   string        `env:"AVILA_ARROW_AUTH_TOKEN"`
}

// LoadConfig parses the configuration from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	return cfg, nil
}
