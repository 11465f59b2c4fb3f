// Command ingestion loads page collections into PostgreSQL.
//
// With -dir it walks a directory of page documents and auxiliary files,
// stores them under the given collection and exits. Without -dir it serves
// POST /api/v1/collections/{collection}/documents for single documents.
// Stored pages are announced on the page-changed topic when Kafka is enabled.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml] [-dir scans/PPN345572629_0004] [-collection PPN345572629_0004]
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

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/ingestion/importer"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/store"
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
	dir := flag.String("dir", "", "import this directory and exit")
	collection := flag.String("collection", "", "collection id for -dir (defaults to collection.id)")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to postgres")

	m := metrics.New(nil)
	opts := []importer.Option{
		importer.WithPageSuffix(cfg.Collection.PageSuffix),
		importer.WithWorkers(cfg.Ingestion.Workers),
		importer.WithMetrics(m),
	}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.PageChanged)
		defer producer.Close()
		opts = append(opts, importer.WithPublisher(events.NewPublisher(producer, "ingestion")))
		slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.PageChanged)
	}
	pageStore := store.NewPostgresStore(db, cfg.Store, store.WithMetrics(m))
	im := importer.New(pageStore, opts...)

	if *dir != "" {
		id := *collection
		if id == "" {
			id = cfg.Collection.ID
		}
		report, err := im.ImportDir(ctx, *dir, id)
		if err != nil {
			slog.Error("import failed", "dir", *dir, "collection", id, "error", err)
			os.Exit(1)
		}
		for docID, reason := range report.Rejected {
			slog.Warn("rejected", "id", docID, "reason", reason)
		}
		fmt.Printf("imported %d pages and %d auxiliary files into %s (%d rejected) in %s\n",
			report.Pages, report.Auxiliary, id, len(report.Rejected), report.Duration)
		return
	}

	shutdownMetrics := func(context.Context) error { return nil }
	if cfg.Metrics.Enabled {
		shutdownMetrics = metrics.StartServer(cfg.Metrics.Port, nil)
	}
	defer shutdownMetrics(context.Background())

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(db))
	checker.Register("store_circuit", health.BreakerCheck(pageStore.Breaker()))

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestContext)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.Metrics(m))
	r.Get("/health/live", checker.LiveHandler())
	r.Get("/health/ready", checker.ReadyHandler())
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.Server.WriteTimeout))
		handler.New(im).Routes(r)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Ingestion.Port),
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
	slog.Info("ingestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}
