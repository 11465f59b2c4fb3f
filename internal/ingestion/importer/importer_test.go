package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/drc-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type capturePublisher struct {
	events []kafka.Event
}

func (c *capturePublisher) Publish(ctx context.Context, event kafka.Event) error {
	c.events = append(c.events, event)
	return nil
}

type failingPutter struct{}

func (failingPutter) Put(ctx context.Context, collection, id string, content []byte) error {
	return errors.New("connection refused")
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func seedDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "PPN_0004/PPN_0004-0001.xml", `<page><word original="Chur"/></page>`)
	writeFile(t, dir, "PPN_0004/PPN_0004-0002.xml", `<page version="2"><word original="Scuol"/></page>`)
	writeFile(t, dir, "PPN_0004/PPN_0004-0001.tif", "scan")
	writeFile(t, dir, "PPN_0004/PPN_0004-0003.xml", "<page><word")
	writeFile(t, dir, ".git/config", "ignored")
	return dir
}

func TestImportDir(t *testing.T) {
	dir := seedDir(t)
	st := store.NewMemoryStore()
	producer := &capturePublisher{}
	m := metrics.New(prometheus.NewRegistry())
	im := New(st,
		WithWorkers(2),
		WithMetrics(m),
		WithPublisher(events.NewPublisher(producer, "importer")),
	)

	report, err := im.ImportDir(context.Background(), dir, "vol4")
	if err != nil {
		t.Fatalf("ImportDir: %v", err)
	}
	if report.Pages != 2 || report.Auxiliary != 1 || report.Stored() != 3 {
		t.Errorf("report = %+v", report)
	}
	if _, ok := report.Rejected["vol4/PPN_0004/PPN_0004-0003.xml"]; !ok || len(report.Rejected) != 1 {
		t.Errorf("rejected = %v", report.Rejected)
	}

	ids, _ := st.ListIDs(context.Background(), "vol4")
	want := []string{
		"vol4/PPN_0004/PPN_0004-0001.tif",
		"vol4/PPN_0004/PPN_0004-0001.xml",
		"vol4/PPN_0004/PPN_0004-0002.xml",
	}
	if len(ids) != len(want) {
		t.Fatalf("stored ids = %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}

	if len(producer.events) != 2 {
		t.Errorf("announced %d pages, want 2", len(producer.events))
	}
	for _, ev := range producer.events {
		change := ev.Value.(events.PageChanged)
		if change.Type != events.ChangeImported || change.Collection != "vol4" {
			t.Errorf("event = %+v", change)
		}
	}
	if got := testutil.ToFloat64(m.DocumentsImported.WithLabelValues("rejected")); got != 1 {
		t.Errorf("rejected metric = %v", got)
	}
}

func TestImportDirMissing(t *testing.T) {
	im := New(store.NewMemoryStore())
	_, err := im.ImportDir(context.Background(), filepath.Join(t.TempDir(), "nope"), "vol4")
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestImportDirStoreFailureAborts(t *testing.T) {
	im := New(failingPutter{})
	_, err := im.ImportDir(context.Background(), seedDir(t), "vol4")
	if !errors.Is(err, apperrors.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestIngest(t *testing.T) {
	st := store.NewMemoryStore()
	im := New(st)
	ctx := context.Background()

	resp, err := im.Ingest(ctx, "vol4", &ingestion.IngestRequest{
		ID:      "vol4/vol_0004-0009.xml",
		Content: `<page><word original="Davos"/></page>`,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if resp.Kind != ingestion.KindPage || resp.Status != "STORED" {
		t.Errorf("response = %+v", resp)
	}
	if _, err := st.ReloadSingle(ctx, "vol4", "vol4/vol_0004-0009.xml"); err != nil {
		t.Errorf("document not stored: %v", err)
	}

	_, err = im.Ingest(ctx, "vol4", &ingestion.IngestRequest{ID: "vol4/vol_0004-0010.xml"})
	var ve *validator.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}
	if _, err := im.Ingest(ctx, " ", &ingestion.IngestRequest{ID: "a.tif", Content: "x"}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for blank collection, got %v", err)
	}
}
