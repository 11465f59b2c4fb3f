// Package tui is the terminal browser: search a collection, walk the hits
// chapter by chapter and tag the current page.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/chapter"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/navigation"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/page"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/view"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Index is the subset of the index cache the browser needs.
type Index interface {
	Search(ctx context.Context, collection, term string, scope indexer.Scope) ([]*page.Page, error)
	Update(ctx context.Context, collection, id string, fn func(*page.Page) error) (*page.Page, error)
}

type mode int

const (
	modeSearch mode = iota
	modeTag
)

var scopes = []indexer.Scope{indexer.ScopeAll, indexer.ScopeTags, indexer.ScopeComments}

// Model is the Bubble Tea model of the browser.
type Model struct {
	index      Index
	collection string
	user       string
	chapters   chapter.Table
	presenter  view.Presenter

	input    textinput.Model
	viewport viewport.Model
	mode     mode
	scope    int

	rows   []view.Row
	cursor *navigation.Cursor
	label  string
	status string
	ready  bool
}

// Config carries what the browser shows and who edits.
type Config struct {
	Collection string
	User       string
	Chapters   chapter.Table
	Presenter  view.Presenter
}

func New(index Index, cfg Config) Model {
	ti := textinput.New()
	ti.Prompt = "search> "
	ti.Placeholder = "term, empty lists every page"
	ti.CharLimit = parser.MaxTermLength
	ti.Focus()
	m := Model{
		index:      index,
		collection: cfg.Collection,
		user:       cfg.User,
		chapters:   cfg.Chapters,
		presenter:  cfg.Presenter,
		input:      ti,
		viewport:   viewport.New(0, 0),
		cursor:     navigation.New(nil),
		status:     "enter: search  tab: scope  ctrl+n/ctrl+p: next/previous  ctrl+t: tag  ctrl+c: quit",
	}
	m.runSearch("")
	return m
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, fh := tableStyle.GetFrameSize()
		// header, label, page line, input, status
		reserved := 5 + fh
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyEsc:
			if m.mode == modeTag {
				m.setMode(modeSearch)
				m.status = "tagging cancelled"
				return m, nil
			}
		case tea.KeyTab:
			if m.mode == modeSearch {
				m.scope = (m.scope + 1) % len(scopes)
				m.runSearch(m.input.Value())
				return m, nil
			}
		case tea.KeyCtrlN:
			m.cursor.Next()
			m.refresh()
			return m, nil
		case tea.KeyCtrlP:
			m.cursor.Previous()
			m.refresh()
			return m, nil
		case tea.KeyCtrlT:
			if _, ok := m.cursor.Current(); ok {
				m.setMode(modeTag)
			}
			return m, nil
		case tea.KeyEnter:
			if m.mode == modeTag {
				m.addTag(m.input.Value())
				return m, nil
			}
			m.runSearch(m.input.Value())
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render(fmt.Sprintf("%s  [%s]", m.collection, scopes[m.scope]))
	label := m.label
	current := "no page selected"
	if p, ok := m.cursor.Current(); ok {
		current = m.presenter.PageLabel(p)
		if comments := view.CommentLine(p); comments != "" {
			current += "  " + comments
		}
	}
	return header + "\n" +
		labelStyle.Render(label) + "\n" +
		tableStyle.Render(m.viewport.View()) + "\n" +
		currentStyle.Render(current) + "\n" +
		m.input.View() + "\n" +
		statusStyle.Render(m.status)
}

func (m *Model) setMode(md mode) {
	m.mode = md
	m.input.SetValue("")
	if md == modeTag {
		m.input.Prompt = "tag> "
		m.input.Placeholder = "label for the current page"
		return
	}
	m.input.Prompt = "search> "
	m.input.Placeholder = "term, empty lists every page"
}

func (m *Model) runSearch(raw string) {
	q, err := parser.Parse(raw, scopes[m.scope].String())
	if err != nil {
		m.status = "Error: " + err.Error()
		return
	}
	pages, err := m.index.Search(context.Background(), m.collection, q.Term, q.Scope)
	if err != nil {
		m.status = "Error: " + err.Error()
		return
	}
	groups := chapter.GroupByChapter(pages, m.chapters)
	m.rows = view.Rows(groups)
	var ordered []*page.Page
	for _, g := range groups {
		ordered = append(ordered, g.Pages...)
	}
	m.cursor = navigation.New(ordered)
	m.label = fmt.Sprintf("%s %q", view.ResultCount(len(pages)), q.Term)
	m.status = fmt.Sprintf("%d chapters", len(groups))
	m.refresh()
}

func (m *Model) addTag(raw string) {
	current, ok := m.cursor.Current()
	if !ok {
		m.setMode(modeSearch)
		return
	}
	ann := parser.Annotation{Label: raw}
	if _, err := ann.Validate(); err != nil {
		m.status = "Error: " + err.Error()
		return
	}
	updated, err := m.index.Update(context.Background(), m.collection, current.ID, func(p *page.Page) error {
		if !p.AddTag(ann.Label, m.user) {
			return fmt.Errorf("%q is already on this page", ann.Label)
		}
		return nil
	})
	if err != nil {
		m.status = "Error: " + err.Error()
		return
	}
	m.replacePage(updated)
	m.setMode(modeSearch)
	m.status = fmt.Sprintf("tagged %s as %q", updated.FileName(), ann.Label)
	m.refresh()
}

// replacePage swaps the updated copy into the rows and cursor, keeping the
// selection.
func (m *Model) replacePage(updated *page.Page) {
	var pages []*page.Page
	for i, r := range m.rows {
		if r.Kind() != view.RowPage {
			continue
		}
		if r.Page().ID == updated.ID {
			m.rows[i] = view.PageRow(updated)
		}
		pages = append(pages, m.rows[i].Page())
	}
	m.cursor = navigation.New(pages)
	m.cursor.SelectByID(updated.ID)
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderRows())
}

func (m Model) renderRows() string {
	if len(m.rows) == 0 {
		return "No pages."
	}
	current, _ := m.cursor.Current()
	var b strings.Builder
	for _, r := range m.rows {
		cols := m.presenter.Columns(r)
		switch r.Kind() {
		case view.RowChapter:
			b.WriteString(chapterStyle.Render(cols[view.ColText]))
		case view.RowPage:
			line := fmt.Sprintf("  %-6s %3s %-24s %-64s %s",
				cols[view.ColIcon], cols[view.ColVolume], cols[view.ColPage], cols[view.ColText], cols[view.ColTags])
			if current != nil && r.Page().ID == current.ID {
				line = selectedStyle.Render(line)
			}
			b.WriteString(line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true)
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	tableStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	chapterStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	currentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)
