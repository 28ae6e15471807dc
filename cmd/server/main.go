/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payoff engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (environment, then flags)
  2. Initialize SQLite store
  3. Pick the fx rate cache (Redis when configured, else SQLite) and fetcher
  4. Build the portfolio service, API handler and router
  5. Start the monthly snapshot scheduler
  6. Start server with graceful shutdown

CONFIGURATION (flag / environment, see config/config.go):
  -port           PORT                HTTP server port (default: 8080)
  -db             DB_PATH             SQLite database path (default: payoff.db)
  -log-level      LOG_LEVEL           logrus level (default: info)
  -currency       REPORTING_CURRENCY  Reporting currency (default: CAD)
  -fx-max-age     FX_MAX_AGE_DAYS     Days a cached rate stays fresh (default: 1)
  -fx-feed        FX_FEED_URL         ECB XML feed; empty disables fetching
  -redis          REDIS_ADDR          Redis fx cache; empty uses SQLite
  -snapshot-cron  SNAPSHOT_CRON       Monthly snapshot schedule; empty disables
  -horizon        SIMULATION_HORIZON  Simulation cap in months (default: 600)
  -origins        ALLOWED_ORIGINS     CORS origins, comma separated

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the snapshot scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database and Redis connections

EXAMPLES:
  # Run with file database
  ./server -db="./data/payoff.db"

  # Run with in-memory database, no network fx
  ./server -db=":memory:" -fx-feed=""

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Snapshot scheduler
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/payoff-engine/api"
	"github.com/warp/payoff-engine/config"
	"github.com/warp/payoff-engine/fx"
	"github.com/warp/payoff-engine/portfolio"
	"github.com/warp/payoff-engine/store/sqlite"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	log.SetLevel(cfg.LogLevel)

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	// FX: Redis cache when reachable, SQLite otherwise
	var cache fx.Cache = store.Rates()
	if cfg.RedisAddr != "" {
		rc := fx.NewRedisCache(cfg.RedisAddr)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rc.Ping(ctx)
		cancel()
		if err != nil {
			log.WithError(err).WithField("addr", cfg.RedisAddr).Warn("redis unavailable, caching fx rates in sqlite")
			rc.Close()
		} else {
			cache = rc
			defer rc.Close()
		}
	}
	var fetcher fx.Fetcher
	if cfg.FXFeedURL != "" {
		fetcher = fx.NewECBFetcher(cfg.FXFeedURL, log)
	}
	converter := fx.NewConverter(cfg.ReportingCurrency, cfg.FXMaxAgeDays, cache, fetcher, log)

	svc := portfolio.NewService(store, converter, log, portfolio.WithHorizon(cfg.SimulationHorizon))
	handler := api.NewHandler(svc, store, log)
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	var scheduler *api.SnapshotScheduler
	if cfg.SnapshotCron != "" {
		scheduler, err = api.NewSnapshotScheduler(svc, cfg.SnapshotCron, log)
		if err != nil {
			log.WithError(err).Fatal("failed to create snapshot scheduler")
		}
		scheduler.Start()
	}

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithFields(logrus.Fields{
			"port":     cfg.Port,
			"db":       cfg.DBPath,
			"currency": cfg.ReportingCurrency,
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	if scheduler != nil {
		scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	log.Info("server stopped")
}
