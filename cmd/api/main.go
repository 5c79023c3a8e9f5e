package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tinylink-io/tinylink/internal/config"
	"github.com/tinylink-io/tinylink/internal/infrastructure/db"
	"github.com/tinylink-io/tinylink/internal/infrastructure/logger"
	"github.com/tinylink-io/tinylink/internal/infrastructure/telemetry"
	"github.com/tinylink-io/tinylink/internal/processing/links"
	mongoStorage "github.com/tinylink-io/tinylink/internal/storage/mongo"
	postgresStorage "github.com/tinylink-io/tinylink/internal/storage/postgres"
	redisStorage "github.com/tinylink-io/tinylink/internal/storage/redis"
	httpTransport "github.com/tinylink-io/tinylink/internal/transport/http"
	"github.com/tinylink-io/tinylink/internal/transport/http/middleware"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.App.Env, cfg.App.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("name", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("env", cfg.App.Env),
		zap.String("backend", cfg.Storage.Backend),
	)

	var shutdownTracer func(context.Context) error
	if cfg.OTel.Enabled {
		var err error
		shutdownTracer, err = telemetry.InitTracer(cfg.OTel.Endpoint, cfg.App.Name, cfg.App.Version)
		if err != nil {
			logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			logger.Info("OpenTelemetry tracer initialized", zap.String("endpoint", cfg.OTel.Endpoint))
		}
	}

	var (
		linkRepo links.LinkRepository
		outbox   links.ClickOutboxRepository
		closeDB  func()
	)

	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		pgConn, err := db.ConnectPostgres(context.Background(), cfg.Storage.PostgresDSN)
		if err != nil {
			logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
		}
		closeDB = pgConn.Close

		linkRepo, err = postgresStorage.NewLinksRepository(pgConn)
		if err != nil {
			logger.Fatal("Failed to initialize links repository", zap.Error(err))
		}

		if cfg.Kafka.OutboxEnabled {
			outbox, err = postgresStorage.NewClickOutboxRepository(pgConn)
			if err != nil {
				logger.Fatal("Failed to initialize click outbox repository", zap.Error(err))
			}
			logger.Info("Click outbox enabled", zap.String("topic", cfg.Kafka.Topic))
		}

	case config.BackendMongo:
		mongoConn, err := db.ConnectMongo(cfg.Storage.MongoURI, cfg.Storage.MongoDB)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		closeDB = func() { _ = mongoConn.Disconnect() }

		linkRepo, err = mongoStorage.NewLinksRepository(mongoConn)
		if err != nil {
			logger.Fatal("Failed to initialize links repository", zap.Error(err))
		}
	}
	defer closeDB()

	linkSvc := links.NewService(linkRepo, outbox, links.NewRandomCodeGenerator(), cfg.Shortener.CodeLength)

	redisClient, err := redisStorage.New(redisStorage.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() { _ = redisClient.Close() }()

	limiterStore := redisStorage.NewFixedWindowLimiter(redisClient, "rl:create", time.Minute)

	routerOpts := httpTransport.DefaultRouterOptions()
	routerOpts.RateLimiter = middleware.NewFixedWindowLimiter(limiterStore, cfg.Security.CreateRatePerMinute)
	router := httpTransport.NewRouterWithOptions(cfg, linkSvc, routerOpts)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if shutdownTracer != nil {
			_ = shutdownTracer(shutdownCtx)
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("Server starting",
		zap.String("port", cfg.Server.Port),
		zap.String("env", cfg.App.Env),
		zap.String("address", fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)),
	)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("Server error", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
