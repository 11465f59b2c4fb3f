package indexer

import (
	"context"
	"log/slog"
	"sync"
)

// LogProgress reports a build in the log every step pages and cancels it
// when ctx is done.
type LogProgress struct {
	ctx        context.Context
	logger     *slog.Logger
	collection string
	step       int

	mu    sync.Mutex
	total int
	done  int
}

// NewLogProgress logs roughly every tenth of the collection when step is 0.
func NewLogProgress(ctx context.Context, logger *slog.Logger, collection string, step int) *LogProgress {
	return &LogProgress{ctx: ctx, logger: logger, collection: collection, step: step}
}

func (p *LogProgress) Begin(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	if p.step <= 0 {
		p.step = max(1, total/10)
	}
}

func (p *LogProgress) SubTask(string) {}

func (p *LogProgress) Worked(n int) {
	p.mu.Lock()
	before := p.done
	p.done += n
	done, total, step := p.done, p.total, p.step
	p.mu.Unlock()
	if done/step != before/step || done == total {
		p.logger.Info("index build progress", "collection", p.collection, "done", done, "total", total)
	}
}

func (p *LogProgress) Canceled() bool { return p.ctx.Err() != nil }

func (p *LogProgress) Done() {}

// Counts returns pages worked and the announced total.
func (p *LogProgress) Counts() (done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done, p.total
}
