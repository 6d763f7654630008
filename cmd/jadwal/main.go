package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/jadwal/internal/api/rest"
	"github.com/fortuna/jadwal/internal/api/websocket"
	"github.com/fortuna/jadwal/internal/cache"
	"github.com/fortuna/jadwal/internal/config"
	"github.com/fortuna/jadwal/internal/publisher"
	"github.com/fortuna/jadwal/internal/scheduler"
	"github.com/fortuna/jadwal/internal/service"
	"github.com/fortuna/jadwal/internal/store"
	"github.com/fortuna/jadwal/internal/store/repository"
)

const (
	serviceName    = "jadwal"
	serviceVersion = "1.0.0"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (default ./config/config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Log)
	logger.Infof("Starting %s v%s - Schedule Reconciliation Service", serviceName, serviceVersion)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checks := map[string]rest.HealthChecker{}
	opts := service.Options{}

	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		redisCache = connectRedis(cfg.Redis.URL, logger)
		defer redisCache.Close()
		checks["redis"] = redisCache
		opts.LogoCache = redisCache
	}

	pipeline, err := service.NewPipeline(cfg, opts, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build pipeline")
	}
	defer pipeline.Close()

	deps := rest.Deps{Runs: pipeline.Ingester, Checks: checks, Version: serviceVersion}

	if redisCache != nil {
		pipeline.Ingester.AddSink(publisher.NewRedisPublisherFromClient(redisCache.Client()))
		logger.Info("✓ Redis stream publisher attached")
	}

	if cfg.Database.Enabled {
		db, err := store.NewDatabase(ctx, cfg.Database.DSN, store.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		}, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		defer db.Close()

		if err := db.RunMigrations(ctx); err != nil {
			logger.WithError(err).Fatal("Failed to run database migrations")
		}
		logger.Info("✓ Database migrations applied")

		runs := repository.NewRunRepository(db)
		pipeline.Ingester.AddSink(runs)
		deps.History = runs
		checks["postgres"] = db
	}

	hub := websocket.NewHub(logger)
	go hub.Run(ctx)
	pipeline.Ingester.AddSink(hub)

	sched := scheduler.NewOrchestrator(pipeline, scheduler.FromConfig(cfg.Scheduler), logger)
	deps.Trigger = sched
	go sched.Start(ctx)
	logger.Info("✓ Scheduler started")

	restServer := rest.NewServer(cfg.Server.RESTPort, deps, logger)
	go func() {
		if err := restServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("REST server error")
		}
	}()

	wsServer := websocket.NewServer(ctx, cfg.Server.WSPort, hub, logger)
	go func() {
		if err := wsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("WebSocket server error")
		}
	}()

	logger.Infof("✓ %s v%s started successfully", serviceName, serviceVersion)
	logger.Infof("  REST API: http://0.0.0.0:%s", cfg.Server.RESTPort)
	logger.Infof("  WebSocket: ws://0.0.0.0:%s/ws/runs", cfg.Server.WSPort)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gracefully...")

	sched.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := restServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("REST API server shutdown error")
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("WebSocket server shutdown error")
	}

	logger.Infof("%s stopped", serviceName)
}

// connectRedis retries while Redis starts alongside the service
func connectRedis(url string, logger *logrus.Logger) *cache.RedisCache {
	const (
		maxRetries = 30
		retryDelay = 2 * time.Second
	)

	logger.Info("Connecting to Redis...")
	for i := 0; ; i++ {
		rc, err := cache.NewRedisCache(url)
		if err == nil {
			logger.Info("✓ Connected to Redis")
			return rc
		}
		if i == maxRetries-1 {
			logger.WithError(err).Fatalf("Failed to connect to Redis after %d attempts", maxRetries)
		}
		logger.WithError(err).Warnf("Redis connection attempt %d/%d failed (retrying in %v)", i+1, maxRetries, retryDelay)
		time.Sleep(retryDelay)
	}
}
