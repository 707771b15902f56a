package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/farmconnect/marketplace/internal/config"
	"github.com/farmconnect/marketplace/internal/domain"
	"github.com/farmconnect/marketplace/internal/logging"
	"github.com/farmconnect/marketplace/internal/messaging"
	"github.com/farmconnect/marketplace/internal/telemetry"
	"github.com/farmconnect/marketplace/internal/worker"
)

const retryDelay = 5 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to an optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	if err := cfg.RequireKafka(); err != nil {
		logger.Error("missing configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Services.EmailURL == "" {
		logger.Error("EMAIL_SERVICE_URL is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Setup(ctx, cfg.Telemetry, "worker", logger)
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	mailer := worker.NewMailer(cfg.Services.EmailURL, httpClient)

	handlers := map[string]messaging.HandlerFunc{
		domain.TopicOrderStatusChanged: worker.NewOrderStatusHandler(mailer, logger).Handle,
		domain.TopicAuctionClosed:      worker.NewAuctionClosedHandler(mailer, logger).Handle,
	}

	logger.Info("starting notification worker", "brokers", cfg.Kafka.Brokers, "group_id", cfg.Kafka.GroupID)

	var wg sync.WaitGroup
	for topic, handler := range handlers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			consume(ctx, cfg.Kafka, topic, handler, logger)
		}()
	}
	wg.Wait()

	logger.Info("consumers stopped")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown error", "error", err)
	}
}

// consume keeps a consumer running on topic until ctx is cancelled. After a
// retryable failure the reader is recreated so the group resumes from the
// last committed offset and the failed message is delivered again.
func consume(ctx context.Context, cfg config.KafkaConfig, topic string, handler messaging.HandlerFunc, logger *slog.Logger) {
	for {
		consumer := messaging.NewConsumer(cfg.Brokers, topic, cfg.GroupID, logger)
		err := consumer.Consume(ctx, handler)
		_ = consumer.Close()

		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return
		}
		logger.Error("consumer failed, restarting", "error", err, "topic", topic, "retry_in", retryDelay.String())

		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
	}
}
