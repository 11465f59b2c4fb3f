package indexer

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/page"
	apperrors "github.com/Adithya-Monish-Kumar-K/drc-search/pkg/errors"
)

// Scope selects which page fields a search term is matched against.
type Scope int

const (
	ScopeAll Scope = iota
	ScopeTags
	ScopeComments
)

func (s Scope) String() string {
	switch s {
	case ScopeTags:
		return "tags"
	case ScopeComments:
		return "comments"
	default:
		return "all"
	}
}

// ParseScope maps a scope name to a Scope. Unknown names yield ScopeAll and
// ok=false.
func ParseScope(name string) (Scope, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "all":
		return ScopeAll, true
	case "tags":
		return ScopeTags, true
	case "comments":
		return ScopeComments, true
	default:
		return ScopeAll, false
	}
}

// Index holds every page of one collection ordered by id. Searches may run
// concurrently; changed pages are swapped in with Replace.
type Index struct {
	mu    sync.RWMutex
	pages []*page.Page
	byID  map[string]int
}

// NewIndex builds an index over pages. The input slice is not modified.
func NewIndex(pages []*page.Page) *Index {
	sorted := make([]*page.Page, len(pages))
	copy(sorted, pages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})
	byID := make(map[string]int, len(sorted))
	for i, p := range sorted {
		byID[p.ID] = i
	}
	return &Index{pages: sorted, byID: byID}
}

// Search returns the pages whose scoped fields contain term, ignoring case.
// An empty term matches every page. Results are ascending by page id.
func (x *Index) Search(term string, scope Scope) []*page.Page {
	needle := strings.ToLower(strings.TrimSpace(term))

	x.mu.RLock()
	defer x.mu.RUnlock()
	result := make([]*page.Page, 0)
	for _, p := range x.pages {
		if needle == "" || matches(p, needle, scope) {
			result = append(result, p)
		}
	}
	return result
}

func matches(p *page.Page, needle string, scope Scope) bool {
	switch scope {
	case ScopeTags:
		return anyContains(p.Labels(page.TagKindTag), needle)
	case ScopeComments:
		return anyContains(p.Labels(page.TagKindComment), needle)
	default:
		return strings.Contains(strings.ToLower(p.FullText()), needle)
	}
}

func anyContains(labels []string, needle string) bool {
	for _, l := range labels {
		if strings.Contains(strings.ToLower(l), needle) {
			return true
		}
	}
	return false
}

// Pages returns all pages in id order.
func (x *Index) Pages() []*page.Page {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]*page.Page, len(x.pages))
	copy(out, x.pages)
	return out
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.pages)
}

// Page looks up a page by id.
func (x *Index) Page(id string) (*page.Page, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	i, ok := x.byID[id]
	if !ok {
		return nil, false
	}
	return x.pages[i], true
}

// Replace swaps in a newer copy of a page that is already indexed. A copy
// older than the indexed one is ignored and reported with false.
func (x *Index) Replace(p *page.Page) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	i, ok := x.byID[p.ID]
	if !ok {
		return false, fmt.Errorf("%w: %s", apperrors.ErrPageNotFound, p.ID)
	}
	if p.Version < x.pages[i].Version {
		return false, nil
	}
	x.pages[i] = p
	return true, nil
}
