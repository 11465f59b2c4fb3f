package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/chapter"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/navigation"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/session"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/store"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/view"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/drc-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/drc-search/pkg/redis"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
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
	instance := "searcher-" + uuid.NewString()[:8]
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"collection", cfg.Collection.ID,
		"instance", instance,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, nil)
		defer shutdownMetrics(context.Background())
	}

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

	storeOpts := []store.Option{store.WithMetrics(m)}
	var collector *analytics.Collector
	if cfg.Kafka.Enabled {
		changeProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.PageChanged)
		defer changeProducer.Close()
		storeOpts = append(storeOpts, store.WithPublisher(events.NewPublisher(changeProducer, instance)))

		analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer analyticsProducer.Close()
		collector = analytics.NewCollector(analyticsProducer, cfg.Analytics.BufferSize)
		collector.Start(ctx)
		defer collector.Close()
		slog.Info("kafka enabled",
			"page_changed_topic", cfg.Kafka.Topics.PageChanged,
			"analytics_topic", cfg.Kafka.Topics.AnalyticsEvents,
		)
	}
	pageStore := store.NewPostgresStore(db, cfg.Store, storeOpts...)

	var sessions session.Store
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, last visited pages are kept in memory", "error", err)
		sessions = session.NewMemoryStore()
	} else {
		defer redisClient.Close()
		sessions = session.NewRedisStore(redisClient, cfg.Redis.SessionTTL)
	}

	chapters, err := chapter.LoadYAML(cfg.Collection.ChapterTable)
	if err != nil {
		slog.Warn("chapter table unavailable, every page is grouped as unknown",
			"path", cfg.Collection.ChapterTable,
			"error", err,
		)
		chapters = nil
	}

	indexes := cache.New(pageStore,
		cache.WithMetrics(m),
		cache.WithPageSuffix(cfg.Collection.PageSuffix),
		cache.WithTracing(cfg.Tracing.Enabled),
	)
	h := handler.New(indexes,
		handler.WithChapters(chapters),
		handler.WithSessions(sessions),
		handler.WithCollector(collector),
		handler.WithPresenter(view.Presenter{VolumeOffset: cfg.Collection.VolumeOffset}),
	)

	cacheEvents, unsubscribe := indexes.Subscribe()
	defer unsubscribe()
	go forwardCacheEvents(cacheEvents, h, collector)

	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.PageChanged, instance,
			events.HandlePageChanged(indexes, instance))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("page change consumer error", "error", err)
			}
		}()
	}

	buildCtx, cancelBuild := context.WithTimeout(ctx, cfg.Server.BuildTimeout)
	progress := indexer.NewLogProgress(ctx, slog.Default(), cfg.Collection.ID, 0)
	idx, err := indexes.Get(buildCtx, cfg.Collection.ID, progress)
	cancelBuild()
	if err != nil {
		slog.Error("initial index build failed", "collection", cfg.Collection.ID, "error", err)
		os.Exit(1)
	}
	first, err := navigation.New(idx.Pages()).SelectInitial("")
	if err != nil {
		slog.Error("collection cannot be browsed", "collection", cfg.Collection.ID, "error", err)
		os.Exit(1)
	}
	slog.Info("collection ready",
		"collection", cfg.Collection.ID,
		"pages", idx.Len(),
		"first_page", first.ID,
	)

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(db))
	checker.Register("store_circuit", health.BreakerCheck(pageStore.Breaker()))
	checker.Register("index", health.IndexCheck(cfg.Collection.ID, func() (int, bool) {
		idx, ok := indexes.Lookup(cfg.Collection.ID)
		if !ok {
			return 0, false
		}
		return idx.Len(), true
	}))
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient))
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestContext)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.Metrics(m))
	if len(cfg.Server.CORSOrigins) > 0 {
		r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins)))
	}
	r.Get("/health/live", checker.LiveHandler())
	r.Get("/health/ready", checker.ReadyHandler())
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.Server.WriteTimeout))
		if cfg.Server.WriteLimit > 0 {
			limiter := ratelimit.New(cfg.Server.WriteLimit, cfg.Server.WriteWindow)
			go limiter.Run(ctx, 5*time.Minute)
			r.Use(middleware.RateLimitWrites(limiter))
		}
		h.Routes(r)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}

// forwardCacheEvents drops stale cursors when an index changes and reports
// build outcomes to analytics.
func forwardCacheEvents(ch <-chan cache.Event, h *handler.Handler, collector *analytics.Collector) {
	for ev := range ch {
		switch ev.Type {
		case cache.EventBuilt, cache.EventInvalidated:
			h.DropCursors(ev.Collection)
		}
		if collector == nil || ev.Type == cache.EventInvalidated {
			continue
		}
		status := "success"
		if ev.Type == cache.EventBuildFailed {
			status = "error"
			if errors.Is(ev.Err, apperrors.ErrBuildCancelled) {
				status = "cancelled"
			}
		}
		collector.TrackBuild(analytics.BuildEvent{
			Collection: ev.Collection,
			Status:     status,
			Pages:      ev.Pages,
			Skipped:    ev.Skipped,
			DurationMs: ev.Duration.Milliseconds(),
		})
	}
}
