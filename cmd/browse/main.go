// Command browse is a terminal browser over one collection.
//
// It reads pages from PostgreSQL, or with -dir from a local directory of page
// documents held in memory, builds the index with a progress bar on stderr
// (Ctrl+C stops it) and opens the browser. Logs go to -log so they do not
// garble the screen.
//
// Usage:
//
//	go run ./cmd/browse [-config configs/development.yaml] [-dir scans/PPN345572629_0004] [-user ada]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/chapter"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/ingestion/importer"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/store"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/tui"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/view"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/drc-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/postgres"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	dir := flag.String("dir", "", "browse this directory instead of the database")
	user := flag.String("user", os.Getenv("USER"), "author recorded on tags")
	logPath := flag.String("log", "browse.log", "log file")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger.SetupWriter(logFile, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pageStore store.Store
	if *dir != "" {
		mem := store.NewMemoryStore()
		report, err := importer.New(mem, importer.WithPageSuffix(cfg.Collection.PageSuffix)).
			ImportDir(ctx, *dir, cfg.Collection.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", *dir, err)
			os.Exit(1)
		}
		slog.Info("directory loaded", "pages", report.Pages, "rejected", len(report.Rejected))
		pageStore = mem
	} else {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to postgres: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()
		pageStore = store.NewPostgresStore(db, cfg.Store)
	}

	chapters, err := chapter.LoadYAML(cfg.Collection.ChapterTable)
	if err != nil {
		slog.Warn("chapter table unavailable", "path", cfg.Collection.ChapterTable, "error", err)
		chapters = nil
	}

	indexes := cache.New(pageStore, cache.WithPageSuffix(cfg.Collection.PageSuffix))
	fmt.Fprintf(os.Stderr, "indexing %s...\n", cfg.Collection.ID)
	buildCtx, cancel := context.WithTimeout(ctx, cfg.Server.BuildTimeout)
	idx, err := indexes.Get(buildCtx, cfg.Collection.ID, tui.NewBuildProgress(ctx, os.Stderr))
	cancel()
	if errors.Is(err, apperrors.ErrBuildCancelled) && ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "index build interrupted")
		os.Exit(130)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "index build failed: %v\n", err)
		os.Exit(1)
	}
	if idx.Len() == 0 {
		fmt.Fprintf(os.Stderr, "collection %s has no pages\n", cfg.Collection.ID)
		os.Exit(1)
	}

	model := tui.New(indexes, tui.Config{
		Collection: cfg.Collection.ID,
		User:       *user,
		Chapters:   chapters,
		Presenter:  view.Presenter{VolumeOffset: cfg.Collection.VolumeOffset},
	})
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "browser error: %v\n", err)
		os.Exit(1)
	}
}
