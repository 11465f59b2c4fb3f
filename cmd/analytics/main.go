// Command analytics starts the analytics aggregation service.
//
// It consumes search, build and annotation events from Kafka, aggregates them
// in memory (query counts, latency percentiles, top and zero-result terms,
// build outcomes), snapshots the aggregate to PostgreSQL, and serves
// GET /api/v1/analytics and GET /api/v1/analytics/snapshots.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/analytics/snapshot"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Analytics.Port)
	if !cfg.Kafka.Enabled {
		slog.Warn("kafka disabled, the aggregate only reflects restored snapshots")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	aggregator := analytics.NewAggregator()

	checker := health.NewChecker()
	var snapshots *snapshot.Store
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, snapshots disabled", "error", err)
	} else {
		defer db.Close()
		snapshots = snapshot.NewStore(db)
		if err := snapshots.EnsureSchema(ctx); err != nil {
			slog.Error("failed to ensure snapshot schema", "error", err)
			os.Exit(1)
		}
		latest, err := snapshots.Latest(ctx)
		if err != nil {
			slog.Warn("could not restore latest snapshot", "error", err)
		} else if latest != nil {
			aggregator.Restore(*latest)
			slog.Info("aggregate restored", "captured_at", latest.CapturedAt, "searches", latest.TotalSearches)
		}
		go snapshots.Run(ctx, aggregator, cfg.Analytics.SnapshotInterval)
		checker.Register("postgres", health.PingCheck(db))
	}

	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, "", analytics.HandleEvent(aggregator))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()
		slog.Info("analytics consumer started", "topic", cfg.Kafka.Topics.AnalyticsEvents)
	}

	var lister analytics.SnapshotLister
	if snapshots != nil {
		lister = snapshots
	}
	analyticsHandler := analytics.NewHandler(aggregator, lister)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestContext)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.Metrics(m))
	r.Get("/health/live", checker.LiveHandler())
	r.Get("/health/ready", checker.ReadyHandler())
	r.Get("/metrics", metrics.Handler().ServeHTTP)
	r.Get("/api/v1/analytics", analyticsHandler.Stats)
	r.Get("/api/v1/analytics/snapshots", analyticsHandler.Snapshots)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Analytics.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
