package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/benvon/tagtube/internal/cache"
	"github.com/benvon/tagtube/internal/cleanup"
	"github.com/benvon/tagtube/internal/config"
	"github.com/benvon/tagtube/internal/database"
	"github.com/benvon/tagtube/internal/handlers"
	"github.com/benvon/tagtube/internal/logger"
	"github.com/benvon/tagtube/internal/queue"
	"github.com/benvon/tagtube/internal/telemetry"
	"github.com/benvon/tagtube/internal/workers"
)

const serviceName = "tagtube-worker"

func main() {
	configPath := flag.String("config", "", "YAML config file (default $CONFIG_FILE)")
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateWorker(); err != nil {
		log.Fatalf("Invalid worker configuration: %v", err)
	}
	debugMode := cfg.DebugMode || *debugFlag

	zapLogger, err := logger.New(logger.Format(cfg.LogFormat), debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Error("worker_failed", zap.Error(err))
		_ = logger.Sync(zapLogger)
		os.Exit(1)
	}
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", cfg.DebugMode),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
		zap.Duration("gc_interval", cfg.GCInterval),
	)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTELEnabled, serviceName, cfg.OTELEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGraceTime)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			zapLogger.Warn("failed_to_shutdown_tracing", zap.Error(err))
		}
	}()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database", zap.Error(err))
		}
	}()
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	zapLogger.Info("connected_to_database", zap.String("dialect", string(db.Dialect())))

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		if redisClient, err = cache.NewRedisClient(ctx, cfg.RedisURL); err != nil {
			return err
		}
		defer func() { _ = redisClient.Close() }()
	}

	jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, zapLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq")

	tagRepo := database.NewTagAssociationRepository(db)
	tagRepo.SetLogger(zapLogger)
	videoRepo := database.NewVideoRepository(db)
	sweeper := cleanup.NewSweeper(tagRepo, videoRepo, zapLogger)
	collector := cleanup.NewGarbageCollector(videoRepo, sweeper, cfg.GCInterval, cfg.GCBatchSize, zapLogger)
	worker := workers.NewCleanupWorker(sweeper, collector, jobQueue, cfg.RetryBase, zapLogger)
	dlq := queue.NewDLQCollector(jobQueue, cfg.DLQPurgeInterval, cfg.DLQRetention, zapLogger)

	health := handlers.NewHealthChecker(zapLogger)
	health.AddCheck("database", db.PingContext)
	health.AddCheck("queue", jobQueue.HealthCheck)
	if redisClient != nil {
		health.AddCheck("cache", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}
	server := &http.Server{
		Addr:              ":" + cfg.HealthPort,
		Handler:           handlers.NewRouter(serviceName, health, zapLogger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	msgChan, errChan, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		return err
	}
	zapLogger.Info("worker_started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return workers.Run(gctx, worker, msgChan, cfg.RabbitMQPrefetch)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case err, ok := <-errChan:
				if !ok {
					return nil
				}
				zapLogger.Error("queue_error", zap.Error(err))
			}
		}
	})
	g.Go(func() error {
		if err := collector.Start(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := dlq.Start(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		zapLogger.Info("health_server_listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("shutdown_signal_received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGraceTime)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	zapLogger.Info("worker_stopped")
	return err
}
