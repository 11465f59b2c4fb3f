package analytics

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/kafka"
)

type AggregatedStats struct {
	TotalSearches    int64            `json:"total_searches"`
	ZeroResultCount  int64            `json:"zero_result_count"`
	SearchesByScope  map[string]int64 `json:"searches_by_scope"`
	AvgLatencyMs     float64          `json:"avg_latency_ms"`
	P50LatencyMs     int64            `json:"p50_latency_ms"`
	P95LatencyMs     int64            `json:"p95_latency_ms"`
	P99LatencyMs     int64            `json:"p99_latency_ms"`
	TopTerms         []TermCount      `json:"top_terms"`
	ZeroResultTerms  []TermCount      `json:"zero_result_terms"`
	Builds           int64            `json:"builds"`
	FailedBuilds     int64            `json:"failed_builds"`
	PagesIndexed     map[string]int   `json:"pages_indexed"`
	Annotations      int64            `json:"annotations"`
	QueriesPerMinute float64          `json:"queries_per_minute"`
	CapturedAt       time.Time        `json:"captured_at"`
}

type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// maxLatencies bounds the latency window used for percentiles.
const maxLatencies = 10000

type Aggregator struct {
	mu              sync.RWMutex
	totalSearches   int64
	zeroResults     int64
	byScope         map[string]int64
	latencies       []int64
	termCounts      map[string]int64
	zeroResultTerms map[string]int64
	builds          int64
	failedBuilds    int64
	pagesIndexed    map[string]int
	annotations     int64
	startTime       time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		byScope:         make(map[string]int64),
		latencies:       make([]int64, 0, 1024),
		termCounts:      make(map[string]int64),
		zeroResultTerms: make(map[string]int64),
		pagesIndexed:    make(map[string]int),
		startTime:       time.Now(),
		logger:          slog.Default().With("component", "analytics-aggregator"),
	}
}

// Restore seeds the counters from a persisted snapshot so totals survive a
// restart. Latencies and term rankings start fresh.
func (a *Aggregator) Restore(s AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches = s.TotalSearches
	a.zeroResults = s.ZeroResultCount
	a.builds = s.Builds
	a.failedBuilds = s.FailedBuilds
	a.annotations = s.Annotations
	for scope, n := range s.SearchesByScope {
		a.byScope[scope] = n
	}
	for collection, n := range s.PagesIndexed {
		a.pagesIndexed[collection] = n
	}
}

// HandleEvent returns the Kafka handler feeding agg. Unknown or undecodable
// messages are logged and skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		env, err := kafka.DecodeJSON[envelope](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		switch env.Type {
		case EventSearch, EventZeroResult:
			event, err := kafka.DecodeJSON[SearchEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode search event", "error", err)
				return nil
			}
			agg.RecordSearch(event)
		case EventBuild:
			event, err := kafka.DecodeJSON[BuildEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode build event", "error", err)
				return nil
			}
			agg.RecordBuild(event)
		case EventAnnotate:
			agg.mu.Lock()
			agg.annotations++
			agg.mu.Unlock()
		default:
			agg.logger.Warn("unknown analytics event type", "type", env.Type)
		}
		return nil
	}
}

func (a *Aggregator) RecordSearch(event SearchEvent) {
	term := strings.ToLower(strings.TrimSpace(event.Term))

	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches++
	a.byScope[event.Scope]++
	if len(a.latencies) >= maxLatencies {
		a.latencies = a.latencies[1:]
	}
	a.latencies = append(a.latencies, event.LatencyMs)
	if term != "" {
		a.termCounts[term]++
	}
	if event.Hits == 0 {
		a.zeroResults++
		a.zeroResultTerms[term]++
	}
}

func (a *Aggregator) RecordBuild(event BuildEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.builds++
	if event.Status != "success" {
		a.failedBuilds++
		return
	}
	a.pagesIndexed[event.Collection] = event.Pages
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:   a.totalSearches,
		ZeroResultCount: a.zeroResults,
		SearchesByScope: make(map[string]int64, len(a.byScope)),
		Builds:          a.builds,
		FailedBuilds:    a.failedBuilds,
		PagesIndexed:    make(map[string]int, len(a.pagesIndexed)),
		Annotations:     a.annotations,
		CapturedAt:      time.Now().UTC(),
	}
	for k, v := range a.byScope {
		stats.SearchesByScope[k] = v
	}
	for k, v := range a.pagesIndexed {
		stats.PagesIndexed[k] = v
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopTerms = topN(a.termCounts, 10)
	stats.ZeroResultTerms = topN(a.zeroResultTerms, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN ranks by count, breaking ties by term.
func topN(counts map[string]int64, n int) []TermCount {
	result := make([]TermCount, 0, len(counts))
	for term, count := range counts {
		result = append(result, TermCount{Term: term, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Term < result[j].Term
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
