package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"ms-booking/internal/api"
	"ms-booking/internal/booking"
	booking_db "ms-booking/internal/booking/db"
	"ms-booking/internal/booking/qr"
	"ms-booking/internal/checkout"
	"ms-booking/internal/checkout/cache"
	"ms-booking/internal/config"
	"ms-booking/internal/database"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/metrics"
	"ms-booking/internal/payment"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
)

func connectRedis(ctx context.Context, cfg *config.Config, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		// pending checkouts are an optimisation for the webhook path
		log.Warn("REDIS", fmt.Sprintf("Redis unavailable at %s, pending checkouts will not be cached: %v", cfg.Redis.Addr, err))
		client.Close()
		return nil
	}
	log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Redis.Addr, client.Options().DB))
	return client
}

func setupKafka(cfg *config.Config, log *logger.Logger) *kafka.Producer {
	if !cfg.Kafka.Enabled {
		log.Info("KAFKA", "Kafka publishing disabled")
		return nil
	}

	log.Info("KAFKA", fmt.Sprintf("Using Kafka brokers %v", cfg.Kafka.Brokers))
	if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.BookingTopic}, log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	}
	return kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.BookingTopic, log)
}

func main() {
	log := logger.NewLogger("booking-service")
	defer log.Close()

	log.Info("APP", "Starting Booking Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	ctx := context.Background()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB.DB, migrations.MigrateOptions{
			MigrationsDir: cfg.Database.MigrationsDir,
			AutoMigrate:   true,
		}, log)
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("MIGRATION", fmt.Sprintf("Failed to run migrations: %v", err))
		}
	}

	var sessionCache checkout.SessionCache
	if redisClient := connectRedis(ctx, cfg, log); redisClient != nil {
		defer redisClient.Close()
		sessionCache = cache.NewSessionCache(redisClient, cfg.Redis.SessionTTL)
	}

	var publisher booking.EventPublisher
	if producer := setupKafka(cfg, log); producer != nil {
		defer producer.Close()
		publisher = producer
	}

	gatewayOpts := []payment.Option{}
	if cfg.Stripe.WebhookSecret != "" {
		gatewayOpts = append(gatewayOpts, payment.WithWebhookSecret(cfg.Stripe.WebhookSecret))
	} else {
		log.Warn("STRIPE", "STRIPE_WEBHOOK_SECRET not set, webhook confirmation disabled")
	}
	gateway, err := payment.NewStripeGateway(cfg.Stripe.SecretKey, log, gatewayOpts...)
	if err != nil {
		log.Fatal("STRIPE", err.Error())
	}

	serverMetrics := metrics.NewServerMetrics("booking_service")
	verifier := checkout.NewSessionVerifier(gateway, cfg.Stripe.Timeout, log)
	bookingService := booking.NewBookingService(&booking_db.DB{Bun: bunDB}, verifier, publisher, cfg.Database.Timeout, log)
	checkoutService := checkout.NewCheckoutService(gateway, sessionCache, bookingService, checkout.SettingsFromConfig(cfg), log,
		checkout.WithMetrics(serverMetrics))

	handler := &api.Handler{
		Checkout: checkoutService,
		Bookings: bookingService,
		Tickets:  qr.NewQRGenerator(cfg.QRSecret),
		Metrics:  serverMetrics,
		Logger:   log,
	}

	log.Info("HTTP", "Setting up router and middleware")
	server := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      api.NewRouter(handler, cfg.AllowedOrigins()),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Server running on %s", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Booking Service shutdown complete")
	}
}
