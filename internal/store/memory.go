package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/page"
	apperrors "github.com/Adithya-Monish-Kumar-K/drc-search/pkg/errors"
)

type memDoc struct {
	content []byte
	version int
}

// MemoryStore keeps documents in memory. It backs tests and the demo mode of
// the terminal browser.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]memDoc
	fetches     atomic.Int64
	// FetchDelay slows every Fetch, letting tests overlap concurrent builds.
	FetchDelay time.Duration
	// FetchErr, when set, fails every Fetch.
	FetchErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]memDoc)}
}

// Put stores a raw document as-is, overwriting any previous content. The
// stored version is the one the document declares.
func (s *MemoryStore) Put(ctx context.Context, collection, id string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]memDoc)
		s.collections[collection] = docs
	}
	docs[id] = memDoc{content: append([]byte(nil), content...), version: declaredVersion(content)}
	return nil
}

func (s *MemoryStore) ListIDs(ctx context.Context, collection string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := s.collections[collection]
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Fetch(ctx context.Context, collection string, ids []string) ([][]byte, error) {
	s.fetches.Add(1)
	if s.FetchDelay > 0 {
		select {
		case <-time.After(s.FetchDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.FetchErr != nil {
		return nil, s.FetchErr
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := s.collections[collection]
	out := make([][]byte, len(ids))
	for i, id := range ids {
		if d, ok := docs[id]; ok {
			out[i] = append([]byte(nil), d.content...)
		}
	}
	return out, nil
}

// FetchCount reports how many Fetch calls were made.
func (s *MemoryStore) FetchCount() int64 {
	return s.fetches.Load()
}

func (s *MemoryStore) Save(ctx context.Context, collection string, p *page.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]memDoc)
		s.collections[collection] = docs
	}
	current := docs[p.ID]
	if current.version != p.Version {
		return fmt.Errorf("%w: %s stored at %d, page read at %d",
			apperrors.ErrVersionConflict, p.ID, current.version, p.Version)
	}
	next := *p
	next.Version = p.Version + 1
	raw, err := next.XML()
	if err != nil {
		return err
	}
	docs[p.ID] = memDoc{content: raw, version: next.Version}
	p.Version = next.Version
	return nil
}

func (s *MemoryStore) ReloadSingle(ctx context.Context, collection, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", apperrors.ErrPageNotFound, collection, id)
	}
	return append([]byte(nil), d.content...), nil
}
