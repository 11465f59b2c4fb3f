// Package navigation tracks the selected page within an ordered result list.
package navigation

import (
	"fmt"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/page"
	apperrors "github.com/Adithya-Monish-Kumar-K/drc-search/pkg/errors"
)

// Selection is published whenever the current page changes.
type Selection struct {
	Page  *page.Page
	Index int
}

// Cursor walks an ordered page list. Next and Previous stop at the ends of
// the list instead of wrapping or leaving it.
type Cursor struct {
	mu          sync.Mutex
	pages       []*page.Page
	current     int
	subscribers map[int]chan Selection
	nextSubID   int
}

// New creates a cursor over pages positioned at the first page.
func New(pages []*page.Page) *Cursor {
	return &Cursor{
		pages:       append([]*page.Page(nil), pages...),
		subscribers: make(map[int]chan Selection),
	}
}

func (c *Cursor) Next() (*page.Page, bool) {
	return c.move(1)
}

func (c *Cursor) Previous() (*page.Page, bool) {
	return c.move(-1)
}

func (c *Cursor) move(delta int) (*page.Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	target := c.current + delta
	if target < 0 || target >= len(c.pages) {
		return c.currentLocked()
	}
	c.current = target
	c.publishLocked()
	return c.pages[c.current], true
}

// Current returns the selected page; ok is false only for an empty list.
func (c *Cursor) Current() (*page.Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLocked()
}

func (c *Cursor) currentLocked() (*page.Page, bool) {
	if c.current < 0 || c.current >= len(c.pages) {
		return nil, false
	}
	return c.pages[c.current], true
}

// Index is the position of the current page.
func (c *Cursor) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Cursor) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pages)
}

// SelectByID moves to the page with the given id. It reports false and keeps
// the current position when no such page is listed.
func (c *Cursor) SelectByID(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.pages {
		if p.ID == id {
			if i != c.current {
				c.current = i
				c.publishLocked()
			}
			return true
		}
	}
	return false
}

// SelectInitial selects lastVisited if listed, else the first page. An empty
// list is an unusable collection and yields ErrEmptyCollection.
func (c *Cursor) SelectInitial(lastVisited string) (*page.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pages) == 0 {
		return nil, fmt.Errorf("%w: no pages to select", apperrors.ErrEmptyCollection)
	}
	c.current = 0
	for i, p := range c.pages {
		if lastVisited != "" && p.ID == lastVisited {
			c.current = i
			break
		}
	}
	c.publishLocked()
	return c.pages[c.current], nil
}

// Subscribe returns a channel of selection changes and a function that
// detaches it. Slow subscribers miss intermediate selections.
func (c *Cursor) Subscribe() (<-chan Selection, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSubID
	c.nextSubID++
	ch := make(chan Selection, 1)
	c.subscribers[id] = ch
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subscribers[id]; ok {
			delete(c.subscribers, id)
			close(sub)
		}
	}
}

func (c *Cursor) publishLocked() {
	sel := Selection{Page: c.pages[c.current], Index: c.current}
	for _, ch := range c.subscribers {
		select {
		case ch <- sel:
		default:
			// drop the stale selection so the newest one is delivered
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- sel:
			default:
			}
		}
	}
}
