package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type (
	Config struct {
		HTTP        HTTP
		Log         Log
		PG          PG
		S3          S3
		Kafka       Kafka
		Consumer    Consumer
		OutboxRelay OutboxRelay
		Swagger     Swagger
	}

	HTTP struct {
		Port           string `env:"HTTP_PORT,required"`
		UsePreforkMode bool   `env:"HTTP_USE_PREFORK_MODE" envDefault:"false"`
	}

	Log struct {
		Level string `env:"LOG_LEVEL,required"`
	}

	PG struct {
		PoolMax int    `env:"PG_POOL_MAX,required"`
		URL     string `env:"PG_URL,required"`
	}

	S3 struct {
		Endpoint       string        `env:"S3_ENDPOINT,required"`
		AccessKey      string        `env:"S3_ACCESS_KEY,required"`
		SecretKey      string        `env:"S3_SECRET_KEY,required"`
		Bucket         string        `env:"S3_BUCKET,required"`
		CfgLoadTimeout time.Duration `env:"S3_LOAD_CFG_TIMEOUT" envDefault:"10s"`
	}

	Kafka struct {
		Brokers         []string `env:"KAFKA_BROKERS,required"`
		GroupID         string   `env:"KAFKA_GROUP_ID,required"`
		OrderTopic      string   `env:"KAFKA_ORDER_TOPIC" envDefault:"discount.order.validation-succeeded"`
		InvoiceTopic    string   `env:"KAFKA_INVOICE_TOPIC" envDefault:"invoice.invoice.created"`
		DeadLetterTopic string   `env:"KAFKA_DEAD_LETTER_TOPIC" envDefault:"discount.order.validation-succeeded.dlq"`
	}

	Consumer struct {
		CommitTimeout   time.Duration `env:"CONSUMER_COMMIT_TIMEOUT" envDefault:"2s"`
		ProcessTimeout  time.Duration `env:"CONSUMER_PROCESS_TIMEOUT" envDefault:"15s"` // decode + persist + outbox enqueue per event
		RetryBackoff    time.Duration `env:"CONSUMER_RETRY_BACKOFF" envDefault:"5s"`    // pause before retrying a deferred event
		ShutdownTimeout time.Duration `env:"CONSUMER_SHUTDOWN_TIMEOUT" envDefault:"5s"`
		Workers         int           `env:"CONSUMER_WORKERS" envDefault:"0"` // 0 -> NumCPU
	}

	OutboxRelay struct {
		PollInterval        time.Duration `env:"OUTBOX_RELAY_POLL_INTERVAL" envDefault:"2s"`
		MarkFailedInterval  time.Duration `env:"OUTBOX_RELAY_MARK_FAILED_INTERVAL" envDefault:"2m"`
		CleanupInterval     time.Duration `env:"OUTBOX_RELAY_CLEANUP_INTERVAL" envDefault:"24h"`
		ProcessBatchTimeout time.Duration `env:"OUTBOX_RELAY_PROCESS_BATCH_TIMEOUT" envDefault:"15s"`
		StuckTimeout        time.Duration `env:"OUTBOX_RELAY_STUCK_TIMEOUT" envDefault:"2m"` // processing rows older than this go back to pending
		ShutdownTimeout     time.Duration `env:"OUTBOX_RELAY_SHUTDOWN_TIMEOUT" envDefault:"5s"`
		BatchSize           int           `env:"OUTBOX_RELAY_BATCH_SIZE" envDefault:"100"`
		MaxRetries          int           `env:"OUTBOX_RELAY_MAX_RETRIES" envDefault:"3"`
	}

	Swagger struct {
		Enabled bool `env:"SWAGGER_ENABLED" envDefault:"false"`
	}
)

func New() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	return cfg, nil
}
