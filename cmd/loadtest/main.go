// Command loadtest drives the searcher with concurrent readers.
//
// Each worker acts as its own user: it searches the collection in a rotating
// scope and then steps its cursor through the hits, the way a person paging
// through a volume would.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-collection PPN345572629_0004] [-concurrency 10] [-duration 30s]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type Config struct {
	BaseURL     string
	Collection  string
	Concurrency int
	Duration    time.Duration
	Steps       int
	Terms       []string
}

var scopes = []string{"all", "tags", "comments"}

type Stats struct {
	requests atomic.Int64
	failures atomic.Int64

	mu        sync.Mutex
	latencies map[string][]time.Duration
	codes     map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies: make(map[string][]time.Duration),
		codes:     make(map[int]int64),
	}
}

func (s *Stats) Record(op string, d time.Duration, code int, err error) {
	s.requests.Add(1)
	if err != nil || code < 200 || code >= 300 {
		s.failures.Add(1)
	}
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies[op] = append(s.latencies[op], d)
	s.codes[code]++
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the searcher")
	collection := flag.String("collection", "PPN345572629_0004", "collection to exercise")
	concurrency := flag.Int("concurrency", 10, "number of simulated users")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	steps := flag.Int("steps", 5, "cursor moves after each search")
	flag.Parse()

	cfg := Config{
		BaseURL:     *baseURL,
		Collection:  *collection,
		Concurrency: *concurrency,
		Duration:    *duration,
		Steps:       *steps,
		Terms:       []string{"", "Chur", "Rhein", "Gemeinde", "Kirche", "Bern", "Schule", "Brief", "Graubünden", "Zürich"},
	}

	fmt.Printf("target %s collection %s, %d users for %s\n", cfg.BaseURL, cfg.Collection, cfg.Concurrency, cfg.Duration)
	stats, err := run(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load test aborted: %v\n", err)
		os.Exit(1)
	}
	printReport(stats, cfg.Duration)
	if stats.requests.Load() == 0 {
		fmt.Println("no requests completed; is the searcher running?")
		os.Exit(1)
	}
}

func run(cfg Config) (*Stats, error) {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	base := fmt.Sprintf("%s/api/v1/collections/%s", cfg.BaseURL, url.PathEscape(cfg.Collection))
	g, ctx := errgroup.WithContext(ctx)
	for w := range cfg.Concurrency {
		user := fmt.Sprintf("loadtest-%03d", w)
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				q := url.Values{
					"q":     {cfg.Terms[i%len(cfg.Terms)]},
					"scope": {scopes[i%len(scopes)]},
				}
				call(ctx, client, stats, "search", http.MethodGet, base+"/search?"+q.Encode(), user)
				for range cfg.Steps {
					call(ctx, client, stats, "cursor_next", http.MethodPost, base+"/cursor/next?"+q.Encode(), user)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

func call(ctx context.Context, client *http.Client, stats *Stats, op, method, rawURL, user string) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		stats.Record(op, 0, 0, err)
		return
	}
	req.Header.Set("X-User-ID", user)
	start := time.Now()
	resp, err := client.Do(req)
	d := time.Since(start)
	if err != nil {
		// requests cut off by the end of the run are not failures
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return
		}
		stats.Record(op, d, 0, err)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	stats.Record(op, d, resp.StatusCode, nil)
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.requests.Load()
	failed := stats.failures.Load()
	fmt.Printf("\nrequests %d, failed %d", total, failed)
	if total > 0 {
		fmt.Printf(" (%.2f%%), %.1f req/s", float64(failed)/float64(total)*100, float64(total)/duration.Seconds())
	}
	fmt.Println()

	stats.mu.Lock()
	defer stats.mu.Unlock()
	ops := make([]string, 0, len(stats.latencies))
	for op := range stats.latencies {
		ops = append(ops, op)
	}
	slices.Sort(ops)
	fmt.Printf("\n%-12s %8s %10s %10s %10s %10s\n", "op", "count", "p50", "p95", "p99", "max")
	for _, op := range ops {
		l := stats.latencies[op]
		slices.Sort(l)
		fmt.Printf("%-12s %8d %10s %10s %10s %10s\n", op, len(l),
			percentile(l, 50), percentile(l, 95), percentile(l, 99), l[len(l)-1])
	}

	codes := make([]int, 0, len(stats.codes))
	for code := range stats.codes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	fmt.Println("\nstatus codes")
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.codes[code])
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
