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
	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/farmconnect/marketplace/internal/auction"
	"github.com/farmconnect/marketplace/internal/cart"
	"github.com/farmconnect/marketplace/internal/config"
	"github.com/farmconnect/marketplace/internal/httpx"
	"github.com/farmconnect/marketplace/internal/identity"
	"github.com/farmconnect/marketplace/internal/listings"
	"github.com/farmconnect/marketplace/internal/logging"
	"github.com/farmconnect/marketplace/internal/messaging"
	"github.com/farmconnect/marketplace/internal/notify"
	"github.com/farmconnect/marketplace/internal/orders"
	"github.com/farmconnect/marketplace/internal/scheduler"
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

	for _, require := range []func() error{cfg.RequirePostgres, cfg.RequireRedis, cfg.RequireKafka, cfg.RequireJWTSecret} {
		if err := require(); err != nil {
			logger.Error("missing configuration", "error", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Setup(ctx, cfg.Telemetry, "marketplace", logger)
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", cfg.Postgres.URL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Error("invalid redis url", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	producer := messaging.NewProducer(cfg.Kafka.Brokers)
	defer func() { _ = producer.Close() }()

	dispatcher := notify.NewDispatcher(producer, cfg.Notify.QueueSize, logger)
	dispatcherCtx, stopDispatcher := context.WithCancel(context.Background())
	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		dispatcher.Run(dispatcherCtx)
	}()

	clk := clock.New()

	userRepo := identity.NewUserRepository(db)
	tokens := identity.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, clk)
	users := identity.NewService(userRepo, tokens, clk)

	listingRepo := listings.NewListingRepository(db)
	listingService := listings.NewService(listingRepo, clk)
	engine := auction.NewEngine(listingRepo, clk, logger, cfg.Auction.BidAttempts)
	carts := cart.NewService(cart.NewRedisStore(rdb, cfg.Redis.CartTTL), listingService, logger)
	manager := orders.NewManager(orders.NewOrderRepository(db), carts, users, dispatcher, clk, logger)

	settler := scheduler.NewSettler(listingRepo, users, dispatcher, clk, logger)
	jobs, err := scheduler.New(settler, cfg.Auction.SettleSchedule, logger)
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}
	jobs.Start()

	identityHandler := identity.NewHandler(users, logger)
	listingHandler := listings.NewHandler(listingService, logger)
	bidHandler := auction.NewHandler(engine, logger)
	cartHandler := cart.NewHandler(carts, logger)
	orderHandler := orders.NewHandler(manager, logger)

	mux := http.NewServeMux()
	routes := map[string]http.HandlerFunc{
		"POST /auth/signup":                    identityHandler.HandleSignup,
		"POST /auth/login":                     identityHandler.HandleLogin,
		"POST /listings":                       listingHandler.HandleCreate,
		"GET /listings":                        listingHandler.HandleList,
		"GET /listings/{id}":                   listingHandler.HandleGet,
		"PUT /listings/{id}":                   listingHandler.HandleUpdate,
		"DELETE /listings/{id}":                listingHandler.HandleDelete,
		"PUT /listings/{id}/availability":      listingHandler.HandleSetAvailability,
		"POST /listings/{id}/bids":             bidHandler.HandlePlaceBid,
		"GET /cart":                            cartHandler.HandleView,
		"POST /cart/items":                     cartHandler.HandleAddItem,
		"DELETE /cart/items/{listingId}":       cartHandler.HandleRemoveItem,
		"DELETE /cart":                         cartHandler.HandleClear,
		"POST /cart/checkout":                  orderHandler.HandleCheckout,
		"POST /orders":                         orderHandler.HandleCreate,
		"GET /orders/{id}":                     orderHandler.HandleGet,
		"PUT /orders/{id}/status":              orderHandler.HandleUpdateStatus,
		"GET /orders/by-customer/{name}":       orderHandler.HandleListByCustomer,
		"GET /dashboard/listings/{sellerName}": listingHandler.HandleListBySeller,
		"GET /dashboard/orders/{sellerName}":   orderHandler.HandleListBySeller,
	}
	for pattern, h := range routes {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(h))
	}
	mux.Handle("GET /metrics", tel.MetricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			httpx.WriteMessage(w, logger, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		if err := rdb.Ping(r.Context()).Err(); err != nil {
			httpx.WriteMessage(w, logger, http.StatusServiceUnavailable, "redis unavailable")
			return
		}
		httpx.WriteJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	})

	server := &http.Server{
		Addr: cfg.ListenAddr("8081"),
		Handler: otelhttp.NewHandler(mux, "marketplace",
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
		logger.Info("starting marketplace service", "addr", server.Addr)
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
	jobs.Stop(shutdownCtx)

	// Requests and jobs are done, so nothing enqueues after this.
	stopDispatcher()
	<-dispatcherDone

	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown error", "error", err)
	}
}
