// Package importer writes documents into the store and announces imported
// pages so running searchers can refresh them.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/drc-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 8

// Putter stores a raw document without a version check.
type Putter interface {
	Put(ctx context.Context, collection, id string, content []byte) error
}

// Importer validates documents and writes them through a Putter.
type Importer struct {
	putter    Putter
	suffix    string
	workers   int
	publisher *events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures an Importer.
type Option func(*Importer)

func WithPageSuffix(suffix string) Option {
	return func(im *Importer) {
		if suffix != "" {
			im.suffix = suffix
		}
	}
}

func WithWorkers(n int) Option {
	return func(im *Importer) {
		if n > 0 {
			im.workers = n
		}
	}
}

// WithPublisher announces every stored page document.
func WithPublisher(p *events.Publisher) Option {
	return func(im *Importer) { im.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(im *Importer) { im.metrics = m }
}

func New(putter Putter, opts ...Option) *Importer {
	im := &Importer{
		putter:  putter,
		suffix:  indexer.DefaultPageSuffix,
		workers: DefaultWorkers,
		logger:  slog.Default().With("component", "importer"),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Ingest validates and stores a single document.
func (im *Importer) Ingest(ctx context.Context, collection string, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	if strings.TrimSpace(collection) == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, 400, "collection is required")
	}
	content := []byte(req.Content)
	if err := validator.ValidateDocument(req.ID, content, im.suffix); err != nil {
		im.observe("rejected")
		return nil, err
	}
	kind, err := im.store(ctx, collection, req.ID, content)
	if err != nil {
		return nil, err
	}
	return &ingestion.IngestResponse{
		Collection: collection,
		DocumentID: req.ID,
		Kind:       kind,
		Status:     "STORED",
	}, nil
}

// ImportDir stores every regular file below dir under the id
// "<collection>/<relative path>". Invalid documents are rejected and listed
// in the report; a store failure aborts the import.
func (im *Importer) ImportDir(ctx context.Context, dir, collection string) (ingestion.ImportReport, error) {
	start := time.Now()
	report := ingestion.ImportReport{Collection: collection, Rejected: make(map[string]string)}

	files, err := listFiles(dir)
	if err != nil {
		return report, err
	}
	im.logger.Info("import started", "collection", collection, "dir", dir, "files", len(files))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.workers)
	for _, rel := range files {
		g.Go(func() error {
			id := collection + "/" + filepath.ToSlash(rel)
			content, err := os.ReadFile(filepath.Join(dir, rel))
			if err != nil {
				return fmt.Errorf("reading %s: %w", rel, err)
			}
			if err := validator.ValidateDocument(id, content, im.suffix); err != nil {
				im.observe("rejected")
				im.logger.Warn("document rejected", "id", id, "error", err)
				mu.Lock()
				report.Rejected[id] = err.Error()
				mu.Unlock()
				return nil
			}
			kind, err := im.store(gctx, collection, id, content)
			if err != nil {
				return err
			}
			mu.Lock()
			if kind == ingestion.KindPage {
				report.Pages++
			} else {
				report.Auxiliary++
			}
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()
	report.Duration = time.Since(start)
	if err != nil {
		im.logger.Error("import failed", "collection", collection, "stored", report.Stored(), "error", err)
		return report, err
	}
	im.logger.Info("import finished",
		"collection", collection,
		"pages", report.Pages,
		"auxiliary", report.Auxiliary,
		"rejected", len(report.Rejected),
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}

func (im *Importer) store(ctx context.Context, collection, id string, content []byte) (string, error) {
	if err := im.putter.Put(ctx, collection, id, content); err != nil {
		return "", fmt.Errorf("%w: storing %s: %w", apperrors.ErrSourceUnavailable, id, err)
	}
	if !strings.HasSuffix(id, im.suffix) {
		im.observe(ingestion.KindAuxiliary)
		return ingestion.KindAuxiliary, nil
	}
	im.observe(ingestion.KindPage)
	if im.publisher != nil {
		err := im.publisher.PageChanged(ctx, events.PageChanged{
			Type:       events.ChangeImported,
			Collection: collection,
			PageID:     id,
		})
		if err != nil {
			im.logger.Error("failed to announce imported page, searchers keep the old copy",
				"id", id,
				"error", err,
			)
		}
	}
	return ingestion.KindPage, nil
}

func (im *Importer) observe(outcome string) {
	if im.metrics != nil {
		im.metrics.DocumentsImported.WithLabelValues(outcome).Inc()
	}
}

// listFiles returns the regular files below dir as sorted relative paths.
// Hidden files and directories are skipped.
func listFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, 400, "import directory %s does not exist", dir)
		}
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}
