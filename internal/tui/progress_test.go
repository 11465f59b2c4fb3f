package tui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/drc-search/pkg/errors"
)

func pageStore(n int) *store.MemoryStore {
	st := store.NewMemoryStore()
	for i := 1; i <= n; i++ {
		st.Put(context.Background(), collection, fmt.Sprintf("vol4/vol_0004-%04d.xml", i), []byte(`<page><word original="Chur"/></page>`))
	}
	st.Put(context.Background(), collection, "vol4/vol_0004-0001.tif", []byte("scan"))
	return st
}

func TestBuildProgressDrawsEveryPage(t *testing.T) {
	var out bytes.Buffer
	progress := NewBuildProgress(context.Background(), &out)

	idx, _, err := indexer.NewBuilder(pageStore(4), "", nil).Build(context.Background(), collection, progress)
	if err != nil {
		t.Fatal(err)
	}
	if idx.Len() != 4 || progress.Percent() != 1 {
		t.Fatalf("indexed %d pages, progress at %v", idx.Len(), progress.Percent())
	}
	text := out.String()
	for i := range 5 {
		if !strings.Contains(text, fmt.Sprintf(" %d/4", i)) {
			t.Errorf("missing %d/4 in output %q", i, text)
		}
	}
	if !strings.Contains(text, "vol_0004-0004.xml") || !strings.HasSuffix(text, "\n") {
		t.Errorf("output lacks current page or final newline: %q", text)
	}
}

func TestBuildProgressCancelsOnInterrupt(t *testing.T) {
	ctx, interrupt := context.WithCancel(context.Background())
	interrupt()
	progress := NewBuildProgress(ctx, &bytes.Buffer{})

	_, report, err := indexer.NewBuilder(pageStore(3), "", nil).Build(context.Background(), collection, progress)
	if !errors.Is(err, apperrors.ErrBuildCancelled) {
		t.Fatalf("expected ErrBuildCancelled, got %v", err)
	}
	if report.Processed != 1 {
		t.Errorf("processed %d pages, want 1", report.Processed)
	}
	if progress.Percent() >= 1 {
		t.Error("cancelled build reported as finished")
	}
}
