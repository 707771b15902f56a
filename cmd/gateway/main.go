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

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/farmconnect/marketplace/internal/config"
	"github.com/farmconnect/marketplace/internal/gateway"
	"github.com/farmconnect/marketplace/internal/identity"
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

	if err := cfg.RequireJWTSecret(); err != nil {
		logger.Error("missing configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Services.MarketplaceURL == "" {
		logger.Error("MARKETPLACE_SERVICE_URL is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Setup(ctx, cfg.Telemetry, "gateway", logger)
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	tokens := identity.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, clock.New())
	handler := gateway.NewHandler(gateway.NewServiceProxy(cfg.Services.MarketplaceURL, httpClient), logger)

	mux := http.NewServeMux()
	gateway.Register(mux, handler, tokens, logger)
	mux.Handle("GET /metrics", tel.MetricsHandler)

	server := &http.Server{
		Addr: cfg.ListenAddr("8080"),
		Handler: otelhttp.NewHandler(mux, "gateway",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting gateway service", "addr", server.Addr)
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
