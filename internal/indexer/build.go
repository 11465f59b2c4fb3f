// Package indexer builds the in-memory document index of a page collection
// and answers scoped searches over it.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/page"
	apperrors "github.com/Adithya-Monish-Kumar-K/drc-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/tracing"
)

// DefaultPageSuffix marks store ids that hold page documents; other ids are
// auxiliary files such as scans.
const DefaultPageSuffix = ".xml"

// Source lists and fetches raw page documents of a collection.
type Source interface {
	ListIDs(ctx context.Context, collection string) ([]string, error)
	Fetch(ctx context.Context, collection string, ids []string) ([][]byte, error)
}

// Progress receives build progress. Total is known before the first page is
// fetched and counts page documents only.
type Progress interface {
	Begin(total int)
	SubTask(id string)
	Worked(n int)
	Canceled() bool
	Done()
}

// NopProgress ignores progress and never cancels.
type NopProgress struct{}

func (NopProgress) Begin(int)      {}
func (NopProgress) SubTask(string) {}
func (NopProgress) Worked(int)     {}
func (NopProgress) Canceled() bool { return false }
func (NopProgress) Done()          {}

// BuildReport summarizes one build.
type BuildReport struct {
	Collection string
	Total      int
	Processed  int
	Indexed    int
	Skipped    int
	SkippedIDs []string
	Duration   time.Duration
}

// Builder loads a collection from a Source into an Index.
type Builder struct {
	source  Source
	suffix  string
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewBuilder creates a Builder. An empty suffix selects DefaultPageSuffix;
// m may be nil.
func NewBuilder(source Source, suffix string, m *metrics.Metrics) *Builder {
	if suffix == "" {
		suffix = DefaultPageSuffix
	}
	return &Builder{
		source:  source,
		suffix:  suffix,
		metrics: m,
		logger:  slog.Default().With("component", "index-builder"),
	}
}

// Build fetches and parses every page document of the collection, one at a
// time. Cancellation via ctx or progress is checked after each page and
// yields ErrBuildCancelled with a nil Index. Documents that fail to parse are
// skipped and reported; a failing fetch aborts with ErrSourceUnavailable.
func (b *Builder) Build(ctx context.Context, collection string, progress Progress) (*Index, BuildReport, error) {
	if progress == nil {
		progress = NopProgress{}
	}
	start := time.Now()
	ctx, span := tracing.StartChildSpan(ctx, "index.build")
	span.SetAttr("collection", collection)
	defer span.End()

	report := BuildReport{Collection: collection}
	defer progress.Done()

	ids, err := b.source.ListIDs(ctx, collection)
	if err != nil {
		b.observe("error", report)
		return nil, report, fmt.Errorf("%w: listing %s: %v", apperrors.ErrSourceUnavailable, collection, err)
	}
	pageIDs := b.pageIDs(ids)
	report.Total = len(pageIDs)
	progress.Begin(report.Total)
	b.logger.Info("index build started",
		"collection", collection,
		"ids", len(ids),
		"pages", report.Total,
	)

	pages := make([]*page.Page, 0, len(pageIDs))
	seen := make(map[string]struct{}, len(pageIDs))
	for _, id := range pageIDs {
		progress.SubTask(id)
		p, err := b.load(ctx, collection, id)
		switch {
		case err == nil:
			if _, dup := seen[id]; dup {
				report.skip(id)
				b.logger.Warn("duplicate page id skipped", "collection", collection, "page_id", id)
				break
			}
			seen[id] = struct{}{}
			pages = append(pages, p)
		case errors.Is(err, apperrors.ErrMalformedPage):
			report.skip(id)
			b.logger.Warn("malformed page skipped", "collection", collection, "page_id", id, "error", err)
		case ctx.Err() != nil:
			return nil, report, b.cancelled(collection, start, &report)
		default:
			report.Duration = time.Since(start)
			b.observe("error", report)
			return nil, report, err
		}
		report.Processed++
		progress.Worked(1)

		if ctx.Err() != nil || progress.Canceled() {
			return nil, report, b.cancelled(collection, start, &report)
		}
	}

	idx := NewIndex(pages)
	report.Indexed = idx.Len()
	report.Duration = time.Since(start)
	span.SetAttr("pages", report.Indexed)
	span.SetAttr("skipped", report.Skipped)
	b.observe("success", report)
	b.logger.Info("index build complete",
		"collection", collection,
		"pages", report.Indexed,
		"skipped", report.Skipped,
		"duration_ms", report.Duration.Milliseconds(),
	)
	return idx, report, nil
}

func (b *Builder) cancelled(collection string, start time.Time, report *BuildReport) error {
	report.Duration = time.Since(start)
	b.observe("cancelled", *report)
	b.logger.Info("index build cancelled",
		"collection", collection,
		"processed", report.Processed,
		"total", report.Total,
	)
	return fmt.Errorf("%w: %s after %d of %d pages",
		apperrors.ErrBuildCancelled, collection, report.Processed, report.Total)
}

func (b *Builder) pageIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if strings.HasSuffix(id, b.suffix) {
			out = append(out, id)
		}
	}
	return out
}

func (b *Builder) load(ctx context.Context, collection, id string) (*page.Page, error) {
	docs, err := b.source.Fetch(ctx, collection, []string{id})
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %v", apperrors.ErrSourceUnavailable, id, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s: store returned no document", apperrors.ErrMalformedPage, id)
	}
	return page.FromXML(docs[0], id)
}

func (b *Builder) observe(status string, report BuildReport) {
	if b.metrics == nil {
		return
	}
	b.metrics.IndexBuildsTotal.WithLabelValues(status).Inc()
	b.metrics.IndexBuildDuration.Observe(report.Duration.Seconds())
	b.metrics.PagesSkippedTotal.Add(float64(report.Skipped))
	if status == "success" {
		b.metrics.PagesIndexed.WithLabelValues(report.Collection).Set(float64(report.Indexed))
	}
}

func (r *BuildReport) skip(id string) {
	r.Skipped++
	r.SkippedIDs = append(r.SkippedIDs, id)
}
