package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Event sinks the outbox relay can publish to.
const (
	SinkLog      = "log"
	SinkWebhook  = "webhook"
	SinkRabbitMQ = "rabbitmq"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
	WebhookURL  string `env:"WEBHOOK_URL"`
	EventSink   string `env:"EVENT_SINK,default=log"`

	APIPort  int    `env:"API_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	PointsPerDonation int `env:"POINTS_PER_DONATION,default=100"`
	GraceWindowMin    int `env:"GRACE_WINDOW_MIN,default=60"`
	SweepIntervalSec  int `env:"SWEEP_INTERVAL_SEC,default=300"`
	SweepBatchSize    int `env:"SWEEP_BATCH_SIZE,default=500"`
	LockTTLSec        int `env:"LOCK_TTL_SEC,default=60"`

	OutboxIntervalSec int `env:"OUTBOX_INTERVAL_SEC,default=5"`
	OutboxBatchSize   int `env:"OUTBOX_BATCH_SIZE,default=100"`
	OutboxMaxAttempts int `env:"OUTBOX_MAX_ATTEMPTS,default=8"`
	SinkRateLimit     int `env:"SINK_RATE_LIMIT_PER_SEC,default=50"`

	NotifierEnabled     bool `env:"NOTIFIER_ENABLED,default=false"`
	NotifierConcurrency int  `env:"NOTIFIER_CONCURRENCY,default=4"`

	ValidateRateLimit int `env:"VALIDATE_RATE_LIMIT_PER_SEC,default=10"`
}

// Load reads an optional .env file from the working directory, then the
// process environment. Variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.EventSink = strings.ToLower(strings.TrimSpace(cfg.EventSink))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.EventSink {
	case SinkLog:
	case SinkWebhook:
		if c.WebhookURL == "" {
			return fmt.Errorf("WEBHOOK_URL is required when EVENT_SINK=%s", SinkWebhook)
		}
	case SinkRabbitMQ:
		if c.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL is required when EVENT_SINK=%s", SinkRabbitMQ)
		}
	default:
		return fmt.Errorf("unsupported EVENT_SINK %q", c.EventSink)
	}

	if c.NotifierEnabled && (c.RabbitMQURL == "" || c.WebhookURL == "") {
		return fmt.Errorf("RABBITMQ_URL and WEBHOOK_URL are required when NOTIFIER_ENABLED=true")
	}
	return nil
}

func (c *Config) GraceWindow() time.Duration {
	return time.Duration(c.GraceWindowMin) * time.Minute
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSec) * time.Second
}

func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSec) * time.Second
}

func (c *Config) OutboxInterval() time.Duration {
	return time.Duration(c.OutboxIntervalSec) * time.Second
}
