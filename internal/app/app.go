package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/cloudcart/invoice-service/config"
	kafkactrl "github.com/cloudcart/invoice-service/internal/controller/kafka"
	"github.com/cloudcart/invoice-service/internal/controller/restapi"
	"github.com/cloudcart/invoice-service/internal/controller/worker/outbox"
	infrakafka "github.com/cloudcart/invoice-service/internal/infrastructure/kafka"
	"github.com/cloudcart/invoice-service/internal/repo/persistent"
	"github.com/cloudcart/invoice-service/internal/usecase/invoice"
	"github.com/cloudcart/invoice-service/pkg/httpserver"
	"github.com/cloudcart/invoice-service/pkg/kafka/consumer"
	"github.com/cloudcart/invoice-service/pkg/kafka/producer"
	"github.com/cloudcart/invoice-service/pkg/logger"
	"github.com/cloudcart/invoice-service/pkg/postgres"
	"github.com/cloudcart/invoice-service/pkg/s3client"
)

func Run(cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Logger
	l := logger.New(cfg.Log.Level)

	// Repository

	// s3
	s3Ctx, s3Cancel := context.WithTimeout(ctx, cfg.S3.CfgLoadTimeout)
	defer s3Cancel()
	s3c, err := s3client.New(s3Ctx, cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - s3client.New: %w", err))
	}

	// postgres
	pg, err := postgres.New(cfg.PG.URL, postgres.MaxPoolSize(cfg.PG.PoolMax))
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - postgres.New: %w", err))
	}
	defer pg.Close()

	// Use-Case
	invoiceUseCase := invoice.New(
		persistent.NewInvoiceRepo(pg),
		persistent.NewInvoiceOutboxRepo(pg),
		persistent.NewDocumentRepo(s3c, cfg.S3.Bucket),
		pg,
		l,
	)

	// Kafka Producer
	kafkaProducer, err := producer.New(ctx, cfg.Kafka.Brokers)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - producer.New: %w", err))
	}

	eventProducer := infrakafka.NewEventProducer(kafkaProducer, cfg.Kafka.InvoiceTopic, cfg.Kafka.DeadLetterTopic)

	// Outbox Relay Worker
	outboxRelay := outbox.New(
		invoiceUseCase,
		eventProducer,
		l,
		cfg.OutboxRelay.PollInterval,
		cfg.OutboxRelay.CleanupInterval,
		cfg.OutboxRelay.MarkFailedInterval,
		cfg.OutboxRelay.ProcessBatchTimeout,
		cfg.OutboxRelay.StuckTimeout,
		cfg.OutboxRelay.BatchSize,
		cfg.OutboxRelay.MaxRetries,
	)

	// Kafka Consumer
	kafkaConsumer, err := consumer.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.OrderTopic)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - consumer.New: %w", err))
	}

	// Kafka as Controller
	workers := cfg.Consumer.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	kafkaController := kafkactrl.New(
		invoiceUseCase,
		infrakafka.NewEventConsumer(kafkaConsumer),
		eventProducer,
		l,
		cfg.Consumer.CommitTimeout,
		cfg.Consumer.ProcessTimeout,
		cfg.Consumer.RetryBackoff,
		workers,
	)

	// HTTP Server
	httpServer := httpserver.New(l, httpserver.Port(cfg.HTTP.Port), httpserver.Prefork(cfg.HTTP.UsePreforkMode))
	restapi.NewRouter(httpServer.App, cfg, invoiceUseCase, map[string]restapi.HealthCheck{
		"postgres": pg.Ping,
		"kafka":    kafkaConsumer.Ping,
	}, l)

	// Start Components
	err = outboxRelay.Start(ctx)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - outboxRelay.Start: %w", err))
	}
	err = kafkaController.Start(ctx)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - kafkaController.Start: %w", err))
	}
	httpServer.Start()

	// Waiting Signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-interrupt:
		l.Info("app - Run - signal: %s", s.String())
	case err = <-httpServer.Notify():
		l.Error(fmt.Errorf("app - Run - httpServer.Notify: %w", err))
	}

	// Shutdown
	err = httpServer.Shutdown()
	if err != nil {
		l.Error(fmt.Errorf("app - Run - httpServer.Shutdown: %w", err))
	}

	kcShutdownCtx, kcShutdownCancel := context.WithTimeout(ctx, cfg.Consumer.ShutdownTimeout)
	defer kcShutdownCancel()
	err = kafkaController.Shutdown(kcShutdownCtx)
	if err != nil {
		l.Error(fmt.Errorf("app - Run - kafkaController.Shutdown: %w", err))
	}

	orlShutdownCtx, orlShutdownCancel := context.WithTimeout(ctx, cfg.OutboxRelay.ShutdownTimeout)
	defer orlShutdownCancel()
	err = outboxRelay.Shutdown(orlShutdownCtx)
	if err != nil {
		l.Error(fmt.Errorf("app - Run - outboxRelay.Shutdown: %w", err))
	}
}
