package indexer

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/drc-search/pkg/errors"
)

func TestLogProgressLogsEveryStep(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	progress := NewLogProgress(context.Background(), logger, "vol4", 2)

	if _, _, err := NewBuilder(newFakeSource(4), "", nil).Build(context.Background(), "vol4", progress); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Count(out, "index build progress") != 2 {
		t.Errorf("want two progress lines, got:\n%s", out)
	}
	if !strings.Contains(out, "done=2 total=4") || !strings.Contains(out, "done=4 total=4") {
		t.Errorf("missing step lines:\n%s", out)
	}
	if done, total := progress.Counts(); done != 4 || total != 4 {
		t.Errorf("counts = %d/%d", done, total)
	}
}

func TestLogProgressCancelsWithItsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	progress := NewLogProgress(ctx, logger, "vol4", 0)

	src := newFakeSource(5)
	_, report, err := NewBuilder(src, "", nil).Build(context.Background(), "vol4", progress)
	if !errors.Is(err, apperrors.ErrBuildCancelled) {
		t.Fatalf("expected ErrBuildCancelled, got %v", err)
	}
	if report.Processed != 1 {
		t.Errorf("processed %d pages before noticing, want 1", report.Processed)
	}
}
