package indexer

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/page"
	apperrors "github.com/Adithya-Monish-Kumar-K/drc-search/pkg/errors"
)

var t0 = time.Date(2010, 6, 1, 12, 0, 0, 0, time.UTC)

func testPage(id, text string, tags ...page.Tag) *page.Page {
	p := &page.Page{ID: id, Volume: 4, Number: 1}
	for _, w := range strings.Fields(text) {
		p.Words = append(p.Words, page.NewWord(w, t0))
	}
	p.Tags = append(p.Tags, tags...)
	return p
}

func ids(pages []*page.Page) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.ID
	}
	return out
}

func sampleIndex() *Index {
	return NewIndex([]*page.Page{
		testPage("b", "An Apple a day", page.Tag{Label: "Fruit", AuthorID: "u1"}),
		testPage("a", "apple pie recipe", page.Tag{Label: "kitchen", AuthorID: "u2", Kind: page.TagKindComment}),
		testPage("c", "nothing relevant", page.Tag{Label: "apple harvest", AuthorID: "u1", Kind: page.TagKindComment}),
	})
}

func TestSearchEmptyTermReturnsAllSorted(t *testing.T) {
	idx := sampleIndex()
	for _, scope := range []Scope{ScopeAll, ScopeTags, ScopeComments} {
		got := ids(idx.Search("", scope))
		if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
			t.Errorf("scope %s: got %v, want [a b c]", scope, got)
		}
	}
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	idx := sampleIndex()
	upper := ids(idx.Search("Apple", ScopeAll))
	lower := ids(idx.Search("apple", ScopeAll))
	if !reflect.DeepEqual(upper, lower) {
		t.Fatalf("case changed results: %v vs %v", upper, lower)
	}
	if !reflect.DeepEqual(lower, []string{"a", "b"}) {
		t.Errorf("got %v, want [a b]", lower)
	}
	for _, p := range idx.Search("APPLE", ScopeAll) {
		if !strings.Contains(strings.ToLower(p.FullText()), "apple") {
			t.Errorf("page %s does not contain the term", p.ID)
		}
	}
}

func TestSearchScopes(t *testing.T) {
	idx := sampleIndex()
	tests := []struct {
		term  string
		scope Scope
		want  []string
	}{
		{"fruit", ScopeTags, []string{"b"}},
		{"apple", ScopeTags, []string{}},
		{"apple", ScopeComments, []string{"c"}},
		{"KITCHEN", ScopeComments, []string{"a"}},
		{"kitchen", ScopeTags, []string{}},
		{"pie rec", ScopeAll, []string{"a"}},
		{"zebra", ScopeAll, []string{}},
	}
	for _, tt := range tests {
		got := ids(idx.Search(tt.term, tt.scope))
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Search(%q, %s) = %v, want %v", tt.term, tt.scope, got, tt.want)
		}
	}
}

func TestReplaceKeepsNewestVersion(t *testing.T) {
	idx := sampleIndex()
	fresh := testPage("a", "pear tart")
	fresh.Version = 2
	if ok, err := idx.Replace(fresh); err != nil || !ok {
		t.Fatalf("Replace(v2) = %v, %v", ok, err)
	}
	stale := testPage("a", "apple pie recipe")
	stale.Version = 1
	if ok, err := idx.Replace(stale); err != nil || ok {
		t.Fatalf("Replace(v1) = %v, %v; want ignored", ok, err)
	}
	if got := ids(idx.Search("pear", ScopeAll)); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("search after replace = %v", got)
	}
	if _, err := idx.Replace(testPage("zz", "x")); !errors.Is(err, apperrors.ErrPageNotFound) {
		t.Errorf("expected ErrPageNotFound, got %v", err)
	}
}

func TestParseScope(t *testing.T) {
	tests := []struct {
		in   string
		want Scope
		ok   bool
	}{
		{"", ScopeAll, true},
		{"All", ScopeAll, true},
		{"tags", ScopeTags, true},
		{" Comments ", ScopeComments, true},
		{"words", ScopeAll, false},
	}
	for _, tt := range tests {
		got, ok := ParseScope(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseScope(%q) = %v,%v want %v,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

// fakeSource serves page documents from memory and counts fetches.
type fakeSource struct {
	mu       sync.Mutex
	ids      []string
	docs     map[string][]byte
	fetches  int
	fetchErr error
}

func newFakeSource(n int) *fakeSource {
	s := &fakeSource{docs: make(map[string][]byte)}
	for i := n; i >= 1; i-- {
		id := fmt.Sprintf("vol_0004-%04d.xml", i)
		s.ids = append(s.ids, id, fmt.Sprintf("vol_0004-%04d.jpg", i))
		s.docs[id] = []byte(fmt.Sprintf(`<page><word original="word%d"/></page>`, i))
	}
	return s
}

func (s *fakeSource) ListIDs(ctx context.Context, collection string) ([]string, error) {
	return append([]string(nil), s.ids...), nil
}

func (s *fakeSource) Fetch(ctx context.Context, collection string, ids []string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	out := make([][]byte, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.docs[id])
	}
	return out, nil
}

type recordingProgress struct {
	total    int
	worked   int
	subtasks []string
	cancelAt int
	done     bool
}

func (p *recordingProgress) Begin(total int)   { p.total = total }
func (p *recordingProgress) SubTask(id string) { p.subtasks = append(p.subtasks, id) }
func (p *recordingProgress) Worked(n int)      { p.worked += n }
func (p *recordingProgress) Canceled() bool    { return p.cancelAt > 0 && p.worked >= p.cancelAt }
func (p *recordingProgress) Done()             { p.done = true }

func TestBuildFiltersAuxiliaryIDsAndReportsProgress(t *testing.T) {
	src := newFakeSource(4)
	progress := &recordingProgress{}

	idx, report, err := NewBuilder(src, "", nil).Build(context.Background(), "vol4", progress)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if progress.total != 4 {
		t.Errorf("progress total = %d, want 4 (page documents only)", progress.total)
	}
	if progress.worked != 4 || !progress.done {
		t.Errorf("worked=%d done=%v", progress.worked, progress.done)
	}
	if src.fetches != 4 {
		t.Errorf("fetches = %d, want 4", src.fetches)
	}
	if idx.Len() != 4 || report.Indexed != 4 {
		t.Errorf("indexed %d pages, report %+v", idx.Len(), report)
	}
	got := ids(idx.Search("", ScopeAll))
	want := []string{"vol_0004-0001.xml", "vol_0004-0002.xml", "vol_0004-0003.xml", "vol_0004-0004.xml"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v", got)
	}
	p, _ := idx.Page("vol_0004-0003.xml")
	if p.Volume != 4 || p.Number != 3 {
		t.Errorf("structure = %d/%d", p.Volume, p.Number)
	}
}

func TestBuildCancelledAfterThreePages(t *testing.T) {
	src := newFakeSource(10)
	progress := &recordingProgress{cancelAt: 3}

	idx, report, err := NewBuilder(src, ".xml", nil).Build(context.Background(), "vol4", progress)
	if !errors.Is(err, apperrors.ErrBuildCancelled) {
		t.Fatalf("expected ErrBuildCancelled, got %v", err)
	}
	if idx != nil {
		t.Error("cancelled build must not return an index")
	}
	if report.Processed != 3 || src.fetches != 3 {
		t.Errorf("processed=%d fetches=%d, want 3", report.Processed, src.fetches)
	}
	if !progress.done {
		t.Error("progress.Done not called")
	}
}

func TestBuildCancelledByContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewBuilder(newFakeSource(2), "", nil).Build(ctx, "vol4", nil)
	if !errors.Is(err, apperrors.ErrBuildCancelled) {
		t.Fatalf("expected ErrBuildCancelled, got %v", err)
	}
}

func TestBuildSkipsMalformedPages(t *testing.T) {
	src := newFakeSource(3)
	src.docs["vol_0004-0002.xml"] = []byte("<not-a-page")

	idx, report, err := NewBuilder(src, "", nil).Build(context.Background(), "vol4", nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if idx.Len() != 2 {
		t.Errorf("indexed %d pages, want 2", idx.Len())
	}
	if report.Skipped != 1 || report.SkippedIDs[0] != "vol_0004-0002.xml" {
		t.Errorf("report = %+v", report)
	}
	if report.Processed != 3 {
		t.Errorf("processed = %d, want 3", report.Processed)
	}
}

func TestBuildSourceUnavailable(t *testing.T) {
	src := newFakeSource(3)
	src.fetchErr = errors.New("connection refused")

	idx, _, err := NewBuilder(src, "", nil).Build(context.Background(), "vol4", nil)
	if !errors.Is(err, apperrors.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if idx != nil {
		t.Error("failed build must not return an index")
	}
}
