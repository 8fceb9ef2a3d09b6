package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-leadflow/internal/config"
	"ms-leadflow/internal/database/migrations"
	"ms-leadflow/internal/gateway"
	"ms-leadflow/internal/kafka"
	leaddb "ms-leadflow/internal/lead/db"
	"ms-leadflow/internal/logger"
	"ms-leadflow/internal/mail"
	"ms-leadflow/internal/metrics"
	notificationdb "ms-leadflow/internal/notification/db"
	orderdb "ms-leadflow/internal/order/db"
	"ms-leadflow/internal/pass"
	progressdb "ms-leadflow/internal/progress/db"
	"ms-leadflow/internal/reconcile"
	"ms-leadflow/internal/registration"
	"ms-leadflow/internal/registration/api"
	regredis "ms-leadflow/internal/registration/redis"
	workshopdb "ms-leadflow/internal/workshop/db"
)

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Database.Username, cfg.Database.Password,
		cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)

	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", dsn)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	log.Info("DATABASE", "PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", cfg.Redis.Addr))

	return bunDB, redisClient
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Lead Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()

	ctx := context.Background()
	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	migrationRunner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := migrationRunner.RunMigrations(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()
	if cfg.Kafka.Enabled {
		requiredTopics := []string{
			cfg.Kafka.Topics.LeadRegistered,
			cfg.Kafka.Topics.PaymentSucceeded,
			cfg.Kafka.Topics.PaymentFailed,
			cfg.Kafka.Topics.SeatsExceeded,
			cfg.Kafka.Topics.CertificateEligible,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
	} else {
		log.Warn("KAFKA", "Kafka disabled by configuration, skipping topic bootstrap; publishes will be logged failures")
	}

	stripeGateway, err := gateway.NewStripeGateway(cfg.Gateway, log)
	if err != nil {
		log.Fatal("GATEWAY", fmt.Sprintf("Stripe client initialization failed: %v", err))
	}

	leads := &leaddb.DB{Bun: bunDB}
	orders := &orderdb.DB{Bun: bunDB}
	workshops := &workshopdb.DB{Bun: bunDB}
	notifications := &notificationdb.DB{Bun: bunDB}
	progress := &progressdb.DB{Bun: bunDB}

	passes := pass.NewGenerator(os.Getenv("PASS_SECRET"))
	mailer := mail.NewSender(cfg.Email, log)

	dispatcher := reconcile.NewSideEffects(
		notifications, leads, progress, producer, mailer, passes, cfg.Kafka.Topics, log)
	reconciler := reconcile.NewService(orders, leads, workshops, dispatcher, log)

	registrationService := registration.NewService(
		leads, orders, workshops, stripeGateway,
		regredis.NewLock(redisClient), producer, reconciler, cfg, log)

	handler := api.NewHandler(
		registrationService, reconciler, stripeGateway,
		orders, notifications, workshops, cfg, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/healthz", handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/leads/register", handler.Register)
		r.Post("/payments/verify", handler.VerifyPayment)
		r.Post("/webhooks/gateway", handler.Webhook)
		r.Get("/orders/{orderId}", handler.GetOrder)
		r.Get("/workshops/{workshopId}/seats", handler.SeatsRemaining)
		r.Get("/leads/{leadId}/notifications", handler.ListNotifications)
		r.Post("/leads/{leadId}/notifications/{notificationId}/read", handler.MarkNotificationRead)
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Lead Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	}
	log.Info("APP", "Lead Service stopped")
}
