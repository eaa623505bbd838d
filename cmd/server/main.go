package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/remindly/expiry-notifier/internal/api"
	"github.com/remindly/expiry-notifier/internal/config"
	"github.com/remindly/expiry-notifier/internal/configstore"
	"github.com/remindly/expiry-notifier/internal/customers"
	"github.com/remindly/expiry-notifier/internal/db"
	"github.com/remindly/expiry-notifier/internal/dispatcher"
	"github.com/remindly/expiry-notifier/internal/metrics"
	"github.com/remindly/expiry-notifier/internal/producer"
	"github.com/remindly/expiry-notifier/internal/queue"
	"github.com/remindly/expiry-notifier/internal/ratelimiter"
	"github.com/remindly/expiry-notifier/internal/sender"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using OS environment")
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- app config store (Postgres) ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- message broker ----
	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		logger.Fatal("failed to connect to broker", zap.Error(err))
	}
	defer conn.Close()

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	store := configstore.NewPgStore(pool)
	broker := queue.NewAMQPBroker(conn, logger)
	limiter := ratelimiter.New(cfg.SendRateLimit)

	cust := customers.NewService(store, customers.NewPgRunner(),
		cfg.CredentialsKey, cfg.QueryKey, logger)
	prod := producer.New(cust, broker, cfg.QueueName, m, logger)
	send := sender.NewMessenger(cfg.ProviderBaseURL, cfg.ProviderTimeout,
		store, cfg.CredentialsKey, logger)
	disp := dispatcher.New(broker, send, limiter, dispatcher.Options{
		QueueName:       cfg.QueueName,
		Text:            dispatcher.ConfigText(store, cfg.CredentialsKey, "Your payment is expired!"),
		BatchLimit:      cfg.ReceiveBatchLimit,
		DeleteOnFailure: cfg.PullDeleteOnFailure,
	}, m, logger)

	// ---- push-mode consumer ----
	// Context for the background subscription; cancelled on shutdown signal.
	consumerCtx, cancelConsumer := context.WithCancel(ctx)
	defer cancelConsumer()

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := disp.Run(consumerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("push consumer stopped", zap.Error(err))
		}
	}()

	// ---- HTTP server ----
	router := api.NewRouter(cust, prod, disp, send, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Stop the push consumer and wait for its in-flight message.
	cancelConsumer()
	<-consumerDone

	logger.Info("server stopped cleanly")
}
