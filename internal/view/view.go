// Package view turns grouped pages into the rows, column texts and labels
// shown by result tables.
package view

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/chapter"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/page"
)

type RowKind int

const (
	RowChapter RowKind = iota
	RowPage
)

// Row is either a chapter heading or a page under it.
type Row struct {
	kind    RowKind
	chapter string
	page    *page.Page
}

func ChapterRow(label string) Row { return Row{kind: RowChapter, chapter: label} }

func PageRow(p *page.Page) Row { return Row{kind: RowPage, page: p} }

func (r Row) Kind() RowKind { return r.kind }

// Chapter returns the heading label; empty for page rows.
func (r Row) Chapter() string { return r.chapter }

// Page returns the page; nil for chapter rows.
func (r Row) Page() *page.Page { return r.page }

// Rows flattens groups into a heading row followed by its pages.
func Rows(groups []chapter.Group) []Row {
	var rows []Row
	for _, g := range groups {
		rows = append(rows, ChapterRow(g.Label))
		for _, p := range g.Pages {
			rows = append(rows, PageRow(p))
		}
	}
	return rows
}

const (
	DefaultVolumeOffset = 3
	PreviewLength       = 60

	IconEdited = "edited"
	IconPage   = "page"
)

// Column indexes of Columns.
const (
	ColIcon = iota
	ColVolume
	ColPage
	ColText
	ColModified
	ColTags
	NumColumns
)

// Presenter formats rows. VolumeOffset is subtracted from stored volume
// numbers before display.
type Presenter struct {
	VolumeOffset int
}

var Default = Presenter{VolumeOffset: DefaultVolumeOffset}

func (pr Presenter) MappedVolume(p *page.Page) int {
	return p.Volume - pr.VolumeOffset
}

// Columns returns the NumColumns cell texts of r. Chapter rows only fill the
// text column.
func (pr Presenter) Columns(r Row) []string {
	cols := make([]string, NumColumns)
	switch r.Kind() {
	case RowChapter:
		cols[ColText] = r.Chapter()
	case RowPage:
		p := r.Page()
		cols[ColIcon] = Icon(p)
		cols[ColVolume] = strconv.Itoa(pr.MappedVolume(p))
		cols[ColPage] = strings.TrimSuffix(p.FileName(), ".xml")
		cols[ColText] = p.Preview(PreviewLength)
		cols[ColModified] = LastModified(p)
		cols[ColTags] = p.TagSummary()
	}
	return cols
}

// PageLabel describes the current page.
func (pr Presenter) PageLabel(p *page.Page) string {
	tagged := "not tagged"
	if summary := p.TagSummary(); summary != "" {
		tagged = "tagged as: " + summary
	}
	return fmt.Sprintf("Current page: volume %d, page %d, %s", pr.MappedVolume(p), p.Number, tagged)
}

// CommentLine lists the comments of a page, or is empty when it has none.
func CommentLine(p *page.Page) string {
	if summary := p.CommentSummary(); summary != "" {
		return "Comments: " + summary
	}
	return ""
}

func Columns(r Row) []string { return Default.Columns(r) }

func PageLabel(p *page.Page) string { return Default.PageLabel(p) }

// Icon names the marker of a page: edited pages differ from untouched ones.
func Icon(p *page.Page) string {
	if p.IsEdited() {
		return IconEdited
	}
	return IconPage
}

// LastModified formats the newest word change; empty for pages without words.
func LastModified(p *page.Page) string {
	t := p.LastModified()
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC1123)
}

// ResultCount is the heading shown above search results.
func ResultCount(n int) string {
	if n == 1 {
		return "1 hit for:"
	}
	return fmt.Sprintf("%d hits for:", n)
}
