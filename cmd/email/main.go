package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/farmconnect/marketplace/internal/config"
	"github.com/farmconnect/marketplace/internal/email"
	"github.com/farmconnect/marketplace/internal/logging"
	"github.com/farmconnect/marketplace/internal/telemetry"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to an optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Setup(ctx, cfg.Telemetry, "email", logger)
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}

	var sender email.Sender
	if cfg.Email.SendGridAPIKey != "" {
		sender = email.NewSendGridSender(cfg.Email.SendGridAPIKey, cfg.Email.FromAddress, cfg.Email.FromName)
		logger.Info("delivering email with sendgrid", "from", cfg.Email.FromAddress)
	} else {
		sender = email.NewLogSender(logger)
		logger.Warn("SENDGRID_API_KEY not set, emails will only be logged")
	}

	handler := email.NewHandler(sender, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /send", telemetry.WithHTTPRoute(handler.HandleSend))
	mux.Handle("GET /metrics", tel.MetricsHandler)

	server := &http.Server{
		Addr:         cfg.ListenAddr("8084"),
		Handler:      otelhttp.NewHandler(mux, "email"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting email service", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown error", "error", err)
	}
}
