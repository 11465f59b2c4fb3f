package view

import (
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/chapter"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/page"
)

var at = time.Date(2011, 2, 3, 4, 5, 6, 0, time.UTC)

func samplePage() *page.Page {
	p := &page.Page{ID: "PPN345572629_0004/PPN345572629_0004-0012.xml", Volume: 4, Number: 12}
	for _, w := range strings.Fields("Il cumün da Scuol ha decis da fabrichar üna nouva scoulina per ils uffants") {
		p.Words = append(p.Words, page.NewWord(w, at))
	}
	return p
}

func TestRowsFlattenGroups(t *testing.T) {
	a, b := &page.Page{ID: "a"}, &page.Page{ID: "b"}
	rows := Rows([]chapter.Group{
		{Label: "1 Intro", Pages: []*page.Page{a, b}},
		{Label: "unknown", Pages: []*page.Page{}},
	})
	kinds := []RowKind{RowChapter, RowPage, RowPage, RowChapter}
	if len(rows) != len(kinds) {
		t.Fatalf("got %d rows, want %d", len(rows), len(kinds))
	}
	for i, k := range kinds {
		if rows[i].Kind() != k {
			t.Errorf("row %d kind = %v, want %v", i, rows[i].Kind(), k)
		}
	}
	if rows[0].Chapter() != "1 Intro" || rows[2].Page() != b || rows[1].Chapter() != "" {
		t.Error("row payloads do not match input")
	}
}

func TestPageColumns(t *testing.T) {
	p := samplePage()
	cols := Columns(PageRow(p))
	if len(cols) != NumColumns {
		t.Fatalf("got %d columns", len(cols))
	}
	if cols[ColIcon] != IconPage {
		t.Errorf("icon = %q, want %q", cols[ColIcon], IconPage)
	}
	if cols[ColVolume] != "1" {
		t.Errorf("volume = %q, want 1", cols[ColVolume])
	}
	if cols[ColPage] != "PPN345572629_0004-0012" {
		t.Errorf("page = %q", cols[ColPage])
	}
	if !strings.HasSuffix(cols[ColText], "...") || len([]rune(cols[ColText])) != PreviewLength+3 {
		t.Errorf("preview = %q", cols[ColText])
	}
	if !strings.HasPrefix(cols[ColText], "Il|cumün|da|") {
		t.Errorf("preview must join words with |: %q", cols[ColText])
	}
	if cols[ColModified] != at.Format(time.RFC1123) {
		t.Errorf("modified = %q", cols[ColModified])
	}

	p.AddTag("school", "ada")
	p.AddComment("check spelling", "ada")
	if err := p.CorrectWord(0, "Il", "ada", at.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	cols = Columns(PageRow(p))
	if cols[ColIcon] != IconEdited || cols[ColTags] != "school" {
		t.Errorf("after edits: icon=%q tags=%q", cols[ColIcon], cols[ColTags])
	}
}

func TestChapterColumns(t *testing.T) {
	cols := Columns(ChapterRow("3 Grammatica"))
	for i, c := range cols {
		if i == ColText {
			if c != "3 Grammatica" {
				t.Errorf("text column = %q", c)
			}
			continue
		}
		if c != "" {
			t.Errorf("column %d = %q, want empty", i, c)
		}
	}
}

func TestPageLabel(t *testing.T) {
	p := samplePage()
	if got := PageLabel(p); got != "Current page: volume 1, page 12, not tagged" {
		t.Errorf("untagged label = %q", got)
	}
	p.AddTag("school", "ada")
	p.AddTag("letter", "bob")
	if got := PageLabel(p); got != "Current page: volume 1, page 12, tagged as: school, letter" {
		t.Errorf("tagged label = %q", got)
	}
	if got := (Presenter{}).PageLabel(p); !strings.HasPrefix(got, "Current page: volume 4,") {
		t.Errorf("zero offset label = %q", got)
	}
}

func TestCommentLine(t *testing.T) {
	p := samplePage()
	if got := CommentLine(p); got != "" {
		t.Errorf("uncommented page = %q", got)
	}
	p.AddTag("school", "ada")
	p.AddComment("umlaut unclear", "bob")
	p.AddComment("check scan", "ada")
	if got := CommentLine(p); got != "Comments: umlaut unclear, check scan" {
		t.Errorf("comment line = %q", got)
	}
}

func TestResultCount(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0 hits for:"},
		{1, "1 hit for:"},
		{17, "17 hits for:"},
	}
	for _, tt := range tests {
		if got := ResultCount(tt.n); got != tt.want {
			t.Errorf("ResultCount(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
