// Package cache owns the built indexes of all collections served by a
// process. Builds for one collection are coalesced and only successful
// builds are kept.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/page"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/drc-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/tracing"
	"golang.org/x/sync/singleflight"
)

type EventType int

const (
	EventBuilt EventType = iota
	EventInvalidated
	EventBuildFailed
)

func (t EventType) String() string {
	switch t {
	case EventBuilt:
		return "built"
	case EventInvalidated:
		return "invalidated"
	case EventBuildFailed:
		return "build_failed"
	default:
		return "unknown"
	}
}

// Event describes a change of the cached index of a collection.
type Event struct {
	Type       EventType
	Collection string
	Pages      int
	Skipped    int
	Duration   time.Duration
	Err        error
}

const subscriberBuffer = 16

// errAbandoned marks a build cancelled because every caller left. Callers
// that arrive while it winds down start a new one.
var errAbandoned = errors.New("build abandoned")

// flight counts the callers waiting on builds of one collection.
type flight struct {
	waiters int
	cancel  context.CancelFunc
}

type built struct {
	idx *indexer.Index
	gen uint64
}

// Cache maps collection ids to built indexes.
type Cache struct {
	store   store.Store
	builder *indexer.Builder
	metrics *metrics.Metrics
	suffix  string
	tracing bool
	logger  *slog.Logger

	mu      sync.RWMutex
	indexes map[string]*indexer.Index
	// generation is bumped on every invalidation so a build that started
	// before it is not stored.
	generation map[string]uint64
	flights    map[string]*flight
	group      singleflight.Group

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int

	hits   atomic.Int64
	misses atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithPageSuffix selects which store ids are page documents.
func WithPageSuffix(suffix string) Option {
	return func(c *Cache) { c.suffix = suffix }
}

// WithTracing logs the span tree of every build.
func WithTracing(enabled bool) Option {
	return func(c *Cache) { c.tracing = enabled }
}

func New(st store.Store, opts ...Option) *Cache {
	c := &Cache{
		store:      st,
		indexes:    make(map[string]*indexer.Index),
		generation: make(map[string]uint64),
		flights:    make(map[string]*flight),
		subs:       make(map[int]chan Event),
		logger:     slog.Default().With("component", "index-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.builder = indexer.NewBuilder(st, c.suffix, c.metrics)
	return c
}

// Get returns the cached index of collection, building it on a miss.
//
// At most one build per collection runs at a time. Concurrent callers share
// it; the progress of the caller that started it receives its updates and
// may cancel it. The build outlives any single caller's ctx and is cancelled
// only once every waiting caller has gone. A build that started before an
// invalidation is waited for and then replaced by a fresh one.
func (c *Cache) Get(ctx context.Context, collection string, progress indexer.Progress) (*indexer.Index, error) {
	if idx, ok := c.Lookup(collection); ok {
		c.hits.Add(1)
		if c.metrics != nil {
			c.metrics.IndexCacheHitsTotal.Inc()
		}
		return idx, nil
	}
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.IndexCacheMissTotal.Inc()
	}

	for {
		res, err := c.join(ctx, collection, progress)
		switch {
		case errors.Is(err, errAbandoned) && ctx.Err() == nil:
			continue
		case err != nil:
			return nil, err
		case res.gen != c.currentGeneration(collection):
			c.logger.Debug("joined build predates invalidation, rebuilding", "collection", collection)
			continue
		}
		return res.idx, nil
	}
}

// join waits for the in-flight build of collection, starting one if none
// runs, until it finishes or ctx is done.
func (c *Cache) join(ctx context.Context, collection string, progress indexer.Progress) (built, error) {
	c.mu.Lock()
	f, ok := c.flights[collection]
	if !ok {
		f = &flight{}
		c.flights[collection] = f
	}
	f.waiters++
	c.mu.Unlock()

	ch := c.group.DoChan(collection, func() (interface{}, error) {
		return c.run(ctx, collection, progress)
	})
	select {
	case res := <-ch:
		c.leave(collection, f, false)
		if res.Err != nil {
			return built{}, res.Err
		}
		if res.Shared {
			c.logger.Debug("joined in-flight build", "collection", collection)
		}
		return res.Val.(built), nil
	case <-ctx.Done():
		c.leave(collection, f, true)
		return built{}, fmt.Errorf("%w: %s: %w", apperrors.ErrBuildCancelled, collection, ctx.Err())
	}
}

func (c *Cache) leave(collection string, f *flight, gaveUp bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	if gaveUp && f.cancel != nil {
		c.logger.Info("every caller left, cancelling build", "collection", collection)
		f.cancel()
	}
	if c.flights[collection] == f {
		delete(c.flights, collection)
	}
}

// run is the shared body of one build. It runs detached from the starting
// caller's cancellation; leave cancels it when nobody waits any more.
func (c *Cache) run(ctx context.Context, collection string, progress indexer.Progress) (built, error) {
	c.mu.Lock()
	gen := c.generation[collection]
	if idx, ok := c.indexes[collection]; ok {
		c.mu.Unlock()
		return built{idx: idx, gen: gen}, nil
	}
	f, ok := c.flights[collection]
	if !ok || f.waiters == 0 {
		c.mu.Unlock()
		return built{}, errAbandoned
	}
	buildCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	idx, err := c.build(buildCtx, collection, gen, progress)
	if err != nil {
		if buildCtx.Err() != nil {
			return built{}, fmt.Errorf("%w: %w", errAbandoned, err)
		}
		return built{}, err
	}
	return built{idx: idx, gen: gen}, nil
}

// Lookup returns the cached index without building.
func (c *Cache) Lookup(collection string) (*indexer.Index, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.indexes[collection]
	return idx, ok
}

// Search runs a scoped search against an already built index. Without one it
// fails with ErrSourceUnavailable so the caller can trigger a build.
func (c *Cache) Search(ctx context.Context, collection, term string, scope indexer.Scope) ([]*page.Page, error) {
	start := time.Now()
	idx, ok := c.Lookup(collection)
	if !ok {
		return nil, fmt.Errorf("%w: index of %s not built", apperrors.ErrSourceUnavailable, collection)
	}
	results := idx.Search(term, scope)
	if c.metrics != nil {
		resultType := "hits"
		if len(results) == 0 {
			resultType = "empty"
		}
		c.metrics.SearchQueriesTotal.WithLabelValues(scope.String(), resultType).Inc()
		c.metrics.SearchLatency.WithLabelValues(scope.String()).Observe(time.Since(start).Seconds())
		c.metrics.SearchResultsCount.Observe(float64(len(results)))
	}
	return results, nil
}

// Invalidate drops the cached index of collection. In-flight builds finish
// but their result is not cached.
func (c *Cache) Invalidate(collection string) {
	c.mu.Lock()
	_, had := c.indexes[collection]
	delete(c.indexes, collection)
	c.generation[collection]++
	c.mu.Unlock()

	c.logger.Info("index invalidated", "collection", collection, "was_cached", had)
	c.publish(Event{Type: EventInvalidated, Collection: collection})
}

// Reload invalidates and rebuilds the index of collection. A build already
// running is waited for, never run alongside.
func (c *Cache) Reload(ctx context.Context, collection string, progress indexer.Progress) (*indexer.Index, error) {
	c.Invalidate(collection)
	return c.Get(ctx, collection, progress)
}

// Update applies fn to a copy of the indexed page, saves the copy and swaps
// it into the index. A failing fn or save leaves the index unchanged.
func (c *Cache) Update(ctx context.Context, collection, id string, fn func(*page.Page) error) (*page.Page, error) {
	idx, ok := c.Lookup(collection)
	if !ok {
		return nil, fmt.Errorf("%w: index of %s not built", apperrors.ErrSourceUnavailable, collection)
	}
	current, ok := idx.Page(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrPageNotFound, id)
	}
	draft := current.Clone()
	if err := fn(draft); err != nil {
		return nil, err
	}
	if err := c.store.Save(ctx, collection, draft); err != nil {
		return nil, err
	}
	if _, err := idx.Replace(draft); err != nil {
		return nil, err
	}
	return draft.Clone(), nil
}

// RefreshPage reloads one page from the store into the cached index. It is a
// no-op when the collection is not cached or the page is not indexed.
func (c *Cache) RefreshPage(ctx context.Context, collection, id string) error {
	idx, ok := c.Lookup(collection)
	if !ok {
		return nil
	}
	raw, err := c.store.ReloadSingle(ctx, collection, id)
	if err != nil {
		return fmt.Errorf("reloading %s: %w", id, err)
	}
	p, err := page.FromXML(raw, id)
	if err != nil {
		c.logger.Warn("refreshed page is malformed, keeping indexed copy", "page_id", id, "error", err)
		return nil
	}
	replaced, err := idx.Replace(p)
	if err != nil {
		c.logger.Info("refreshed page is not indexed", "collection", collection, "page_id", id)
		return nil
	}
	c.logger.Debug("page refreshed", "collection", collection, "page_id", id, "replaced", replaced)
	return nil
}

// Subscribe registers for cache events. Slow subscribers miss events rather
// than block the cache. cancel unregisters and closes the channel.
func (c *Cache) Subscribe() (<-chan Event, func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan Event, subscriberBuffer)
	c.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
}

func (c *Cache) publish(ev Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			c.logger.Warn("dropping cache event for slow subscriber", "type", ev.Type.String())
		}
	}
}

// Stats returns hit and miss counts since creation.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Cache) currentGeneration(collection string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation[collection]
}
