package navigation

import (
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/page"
	apperrors "github.com/Adithya-Monish-Kumar-K/drc-search/pkg/errors"
)

func threePages() []*page.Page {
	return []*page.Page{{ID: "p0"}, {ID: "p1"}, {ID: "p2"}}
}

func currentID(t *testing.T, c *Cursor) string {
	t.Helper()
	p, ok := c.Current()
	if !ok {
		t.Fatal("cursor has no current page")
	}
	return p.ID
}

func TestPreviousAtStartDoesNotWrap(t *testing.T) {
	c := New(threePages())
	c.Previous()
	if got := currentID(t, c); got != "p0" {
		t.Errorf("after Previous at start: %s, want p0", got)
	}
	if c.Index() != 0 {
		t.Errorf("index = %d, want 0", c.Index())
	}
}

func TestNextTwiceReachesLast(t *testing.T) {
	c := New(threePages())
	c.Next()
	c.Next()
	if got := currentID(t, c); got != "p2" {
		t.Errorf("got %s, want p2", got)
	}
	c.Next()
	if got := currentID(t, c); got != "p2" {
		t.Errorf("Next past the end moved to %s", got)
	}
	c.Previous()
	if got := currentID(t, c); got != "p1" {
		t.Errorf("Previous after clamp: %s, want p1", got)
	}
}

func TestSelectByID(t *testing.T) {
	c := New(threePages())
	if !c.SelectByID("p2") {
		t.Fatal("SelectByID(p2) reported not found")
	}
	if c.SelectByID("missing") {
		t.Fatal("SelectByID(missing) reported found")
	}
	if got := currentID(t, c); got != "p2" {
		t.Errorf("unknown id moved the cursor to %s", got)
	}
}

func TestSelectInitial(t *testing.T) {
	c := New(threePages())
	p, err := c.SelectInitial("p1")
	if err != nil || p.ID != "p1" {
		t.Fatalf("SelectInitial(p1) = %v, %v", p, err)
	}
	p, err = c.SelectInitial("gone")
	if err != nil || p.ID != "p0" {
		t.Fatalf("fallback = %v, %v", p, err)
	}

	empty := New(nil)
	if _, err := empty.SelectInitial("p1"); !errors.Is(err, apperrors.ErrEmptyCollection) {
		t.Fatalf("expected ErrEmptyCollection, got %v", err)
	}
	if _, ok := empty.Current(); ok {
		t.Error("empty cursor must have no current page")
	}
	if _, ok := empty.Next(); ok {
		t.Error("Next on empty cursor must report no page")
	}
}

func TestSubscribeReceivesLatestSelection(t *testing.T) {
	c := New(threePages())
	ch, cancel := c.Subscribe()
	defer cancel()

	c.Next()
	c.Next()
	sel := <-ch
	if sel.Page.ID != "p2" || sel.Index != 2 {
		t.Errorf("got %+v, want p2 at 2", sel)
	}

	c.Next() // clamped, nothing published
	select {
	case sel := <-ch:
		t.Errorf("unexpected selection %+v", sel)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	c := New(threePages())
	ch, cancel := c.Subscribe()
	cancel()
	cancel()
	if _, open := <-ch; open {
		t.Error("channel still open after cancel")
	}
	c.Next()
}
