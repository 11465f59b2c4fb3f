package chapter

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/page"
)

func pages(numbers ...int) []*page.Page {
	out := make([]*page.Page, 0, len(numbers))
	for i, n := range numbers {
		out = append(out, &page.Page{ID: string(rune('a' + i)), Number: n})
	}
	return out
}

func TestGroupByChapterPartitions(t *testing.T) {
	table := MapTable{1: "I. Prefaziun", 2: "I. Prefaziun", 3: "II. Psalms", 5: "II. Psalms"}
	in := pages(1, 2, 3, 4, 5)

	groups := GroupByChapter(in, table)

	total := 0
	seen := make(map[string]int)
	labels := make([]string, 0, len(groups))
	for _, g := range groups {
		labels = append(labels, g.Label)
		total += len(g.Pages)
		for _, p := range g.Pages {
			seen[p.ID]++
		}
	}
	if total != len(in) {
		t.Errorf("bucket sizes sum to %d, want %d", total, len(in))
	}
	for _, p := range in {
		if seen[p.ID] != 1 {
			t.Errorf("page %s appears %d times", p.ID, seen[p.ID])
		}
	}
	if !sort.StringsAreSorted(labels) {
		t.Errorf("labels not sorted: %v", labels)
	}
	if len(groups) != 3 || groups[2].Label != Unknown {
		t.Fatalf("groups = %+v", labels)
	}
	psalms := groups[1]
	if psalms.Pages[0].ID != "c" || psalms.Pages[1].ID != "e" {
		t.Errorf("input order not kept: %s, %s", psalms.Pages[0].ID, psalms.Pages[1].ID)
	}
}

func TestChapterOfFallback(t *testing.T) {
	p := &page.Page{ID: "x", Number: 99}
	if got := ChapterOf(p, MapTable{}); got != Unknown {
		t.Errorf("got %q, want %q", got, Unknown)
	}
	if got := ChapterOf(p, nil); got != Unknown {
		t.Errorf("nil table: got %q", got)
	}
	if got := ChapterOf(p, MapTable{99: ""}); got != Unknown {
		t.Errorf("blank label: got %q", got)
	}
}

func TestRangeTable(t *testing.T) {
	table := NewRangeTable([]Range{
		{Start: 10, Label: "B"},
		{Start: 3, Label: "A"},
	})
	tests := []struct {
		number int
		want   string
		ok     bool
	}{
		{1, "", false},
		{3, "A", true},
		{9, "A", true},
		{10, "B", true},
		{400, "B", true},
	}
	for _, tt := range tests {
		got, ok := table.ChapterFor(tt.number)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ChapterFor(%d) = %q,%v want %q,%v", tt.number, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	mapPath := filepath.Join(dir, "map.yaml")
	rangePath := filepath.Join(dir, "ranges.yaml")
	os.WriteFile(mapPath, []byte("chapters:\n  1: Title\n  2: Preface\n"), 0o644)
	os.WriteFile(rangePath, []byte("ranges:\n  - start: 1\n    label: Title\n  - start: 5\n    label: Body\n"), 0o644)

	m, err := LoadYAML(mapPath)
	if err != nil {
		t.Fatalf("LoadYAML map: %v", err)
	}
	if label, _ := m.ChapterFor(2); label != "Preface" {
		t.Errorf("map label = %q", label)
	}
	r, err := LoadYAML(rangePath)
	if err != nil {
		t.Fatalf("LoadYAML ranges: %v", err)
	}
	if label, _ := r.ChapterFor(7); label != "Body" {
		t.Errorf("range label = %q", label)
	}
	if _, err := ParseYAML([]byte("chapters: {1: a}\nranges: [{start: 1, label: b}]\n")); err == nil {
		t.Error("expected error when both forms are set")
	}
	if _, err := LoadYAML(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
