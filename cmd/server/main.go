/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the gym data-layer server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load configuration
  2. Build logger and metrics registry
  3. Open the storage engine (sqlite, memory fallback)
  4. Wire connectivity switch, offline queue, ledger, domain services
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Optional YAML config path; APP_* env vars override
  -port    HTTP server port override
  -db      Database path override (":memory:" works via the sqlite driver)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Unsubscribe the queue drainer, close the storage engine
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration shape and defaults
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlasgym/gym-engine/api"
	"github.com/atlasgym/gym-engine/cache"
	"github.com/atlasgym/gym-engine/config"
	"github.com/atlasgym/gym-engine/gym"
	"github.com/atlasgym/gym-engine/ledger"
	"github.com/atlasgym/gym-engine/logger"
	"github.com/atlasgym/gym-engine/metrics"
	"github.com/atlasgym/gym-engine/offline"
	"github.com/atlasgym/gym-engine/store"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML config file path")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.HTTP.Port = *port
	}
	if *dbPath != "" {
		cfg.DB.Path = *dbPath
	}

	zl, flush := logger.New(logger.Options{
		Level: cfg.Log.Level,
		JSON:  cfg.Log.JSON,
		File:  cfg.Log.File,
	})
	defer flush()

	mset := metrics.New()

	// Storage engine: sqlite with in-memory fallback.
	engine, err := store.Open(cfg.DB.Driver, cfg.DB.Path, zl)
	if err != nil {
		zl.Fatal("failed to open storage engine", zap.Error(err))
	}
	defer engine.Close()

	ctx := context.Background()

	// Connectivity starts online; the API can flip it.
	conn := offline.NewSwitch(true)

	// Queued operations were already applied to the local store when they
	// were enqueued; draining acknowledges them once connectivity returns.
	queue, err := offline.NewQueue(ctx, engine, conn,
		func(ctx context.Context, op offline.QueuedOperation) error {
			zl.Info("replayed queued operation",
				zap.Int64("seq", op.Seq),
				zap.String("type", string(op.Type)))
			return nil
		}, zl)
	if err != nil {
		zl.Fatal("failed to load offline queue", zap.Error(err))
	}
	queue.WithDepthGauge(mset.QueueDepth)
	stopDrainer := queue.Start(ctx)
	defer stopDrainer()

	// Activity ledger with its snapshot cache.
	lgr := ledger.New(engine, cfg.Cache.ActivitiesTTL(),
		cache.WithCounters[ledger.Activity](
			mset.CacheHits.WithLabelValues("activities"),
			mset.CacheMisses.WithLabelValues("activities"),
		))

	// Domain services.
	membersCache := cache.New(cfg.Cache.MembersTTL(),
		cache.WithCounters[gym.Member](
			mset.CacheHits.WithLabelValues("members"),
			mset.CacheMisses.WithLabelValues("members"),
		))
	members := gym.NewMemberService(engine, lgr, queue, zl,
		gym.WithMembersCache(membersCache))

	pricing := gym.Pricing{
		SingleSession: decimal.NewFromFloat(cfg.Pricing.SingleSession),
		Sessions13:    decimal.NewFromFloat(cfg.Pricing.Sessions13),
		Sessions15:    decimal.NewFromFloat(cfg.Pricing.Sessions15),
		Sessions30:    decimal.NewFromFloat(cfg.Pricing.Sessions30),
	}
	payments := gym.NewPaymentService(engine, members, lgr, queue, pricing.Resolver(), zl)

	porter := gym.NewPorter(members, payments, lgr, zl,
		gym.WithBatching(cfg.Import.BatchSize, cfg.Import.Pause()))

	handler := &api.Handler{
		Members:  members,
		Payments: payments,
		Porter:   porter,
		Ledger:   lgr,
		Queue:    queue,
		Conn:     conn,
		Log:      zl,
	}
	router := api.NewRouter(handler, cfg.HTTP.AllowedOrigins, mset.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.HTTP.IdleTimeoutSec) * time.Second,
	}

	go func() {
		zl.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("db", cfg.DB.Path))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Fatal("forced shutdown", zap.Error(err))
	}

	zl.Info("server stopped")
}
