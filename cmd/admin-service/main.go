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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-leadflow/internal/admin"
	"ms-leadflow/internal/admin/api"
	admindb "ms-leadflow/internal/admin/db"
	"ms-leadflow/internal/auth"
	"ms-leadflow/internal/config"
	"ms-leadflow/internal/kafka"
	leaddb "ms-leadflow/internal/lead/db"
	"ms-leadflow/internal/logger"
	"ms-leadflow/internal/mail"
	notificationdb "ms-leadflow/internal/notification/db"
	orderdb "ms-leadflow/internal/order/db"
	"ms-leadflow/internal/pass"
	progressdb "ms-leadflow/internal/progress/db"
	"ms-leadflow/internal/reconcile"
	workshopdb "ms-leadflow/internal/workshop/db"
)

func connectDatabase(cfg *config.Config, log *logger.Logger) *bun.DB {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Database.Username, cfg.Database.Password,
		cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)

	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
	}
	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	log.Info("DATABASE", "PostgreSQL connection successful")

	return bun.NewDB(sqldb, pgdialect.New())
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Admin Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	bunDB := connectDatabase(cfg, log)
	defer bunDB.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	leads := &leaddb.DB{Bun: bunDB}
	orders := &orderdb.DB{Bun: bunDB}
	workshops := &workshopdb.DB{Bun: bunDB}
	notifications := &notificationdb.DB{Bun: bunDB}
	progress := &progressdb.DB{Bun: bunDB}
	audit := &admindb.DB{Bun: bunDB}

	dispatcher := reconcile.NewSideEffects(
		notifications, leads, progress, producer,
		mail.NewSender(cfg.Email, log),
		pass.NewGenerator(os.Getenv("PASS_SECRET")),
		cfg.Kafka.Topics, log)

	adminService := admin.NewService(leads, orders, dispatcher, audit, audit, workshops, progress, log)
	handler := api.NewHandler(adminService, log)

	verifier, err := auth.NewVerifier(cfg.Admin.OIDCIssuer)
	if err != nil {
		log.Fatal("AUTH", fmt.Sprintf("OIDC verifier initialization failed: %v", err))
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "admin-service"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	protected := router.Group("/api/admin")
	protected.Use(verifier.GinMiddleware())
	handler.RegisterRoutes(protected)

	server := &http.Server{
		Addr:         cfg.Admin.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Admin Service running on %s", cfg.Admin.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	}
	log.Info("APP", "Admin Service stopped")
}
