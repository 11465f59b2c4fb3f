package tui

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/chapter"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/store"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/view"
	tea "github.com/charmbracelet/bubbletea"
)

const collection = "vol4"

func newModel(t *testing.T) Model {
	t.Helper()
	st := store.NewMemoryStore()
	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("vol4/vol_0004-%04d.xml", i)
		note := ""
		if i == 1 {
			note = `<tag kind="comment" author="bob">umlaut unclear</tag>`
		}
		st.Put(context.Background(), collection, id, []byte(fmt.Sprintf(`<page><word original="word%d"/><word original="Chur"/>%s</page>`, i, note)))
	}
	c := cache.New(st)
	if _, err := c.Get(context.Background(), collection, nil); err != nil {
		t.Fatal(err)
	}
	m := New(c, Config{
		Collection: collection,
		User:       "ada",
		Chapters:   chapter.MapTable{1: "1 Intro", 2: "1 Intro", 3: "2 Letters"},
		Presenter:  view.Default,
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 160, Height: 40})
	return next.(Model)
}

func send(m Model, msgs ...tea.Msg) Model {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func typed(s string) tea.Msg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestInitialListShowsEveryPage(t *testing.T) {
	m := newModel(t)
	if m.cursor.Len() != 3 {
		t.Fatalf("cursor over %d pages, want 3", m.cursor.Len())
	}
	if len(m.rows) != 5 {
		t.Errorf("rows = %d, want 2 chapters + 3 pages", len(m.rows))
	}
	out := m.View()
	if !strings.Contains(out, "1 Intro") || !strings.Contains(out, "Current page: volume 1, page 1, not tagged") {
		t.Errorf("view missing chapter or page label:\n%s", out)
	}
	if !strings.Contains(out, "Comments: umlaut unclear") {
		t.Errorf("view missing comments of the current page:\n%s", out)
	}
}

func TestSearchAndNavigate(t *testing.T) {
	m := newModel(t)
	m = send(m, typed("word2"), tea.KeyMsg{Type: tea.KeyEnter})
	if m.cursor.Len() != 1 || !strings.HasPrefix(m.label, "1 hit for:") {
		t.Fatalf("search: len=%d label=%q", m.cursor.Len(), m.label)
	}

	m = newModel(t)
	m = send(m,
		tea.KeyMsg{Type: tea.KeyCtrlN},
		tea.KeyMsg{Type: tea.KeyCtrlN},
		tea.KeyMsg{Type: tea.KeyCtrlN},
	)
	if m.cursor.Index() != 2 {
		t.Errorf("index after 3x next = %d, want clamped 2", m.cursor.Index())
	}
	m = send(m, tea.KeyMsg{Type: tea.KeyCtrlP})
	if m.cursor.Index() != 1 {
		t.Errorf("index after previous = %d", m.cursor.Index())
	}
}

func TestTagCurrentPage(t *testing.T) {
	m := newModel(t)
	m = send(m,
		tea.KeyMsg{Type: tea.KeyCtrlN},
		tea.KeyMsg{Type: tea.KeyCtrlT},
		typed("school"),
		tea.KeyMsg{Type: tea.KeyEnter},
	)
	if m.mode != modeSearch {
		t.Fatalf("still in tag mode: %s", m.status)
	}
	p, ok := m.cursor.Current()
	if !ok || p.ID != "vol4/vol_0004-0002.xml" || p.TagSummary() != "school" {
		t.Fatalf("current = %v", p)
	}

	m = send(m, tea.KeyMsg{Type: tea.KeyCtrlT}, typed("school"), tea.KeyMsg{Type: tea.KeyEnter})
	if !strings.HasPrefix(m.status, "Error:") {
		t.Errorf("duplicate tag accepted: %q", m.status)
	}
	m = send(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.mode != modeSearch {
		t.Error("esc did not leave tag mode")
	}

	m = send(m, tea.KeyMsg{Type: tea.KeyTab}, typed("scho"), tea.KeyMsg{Type: tea.KeyEnter})
	if scopes[m.scope].String() != "tags" || m.cursor.Len() != 1 {
		t.Errorf("tag scope search: scope=%s hits=%d", scopes[m.scope], m.cursor.Len())
	}
}
