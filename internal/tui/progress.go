package tui

import (
	"context"
	"fmt"
	"io"
	"path"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
)

// BuildProgress draws an index build as a progress bar on w, rewriting one
// line. The build is cancelled once ctx is done, usually on interrupt.
type BuildProgress struct {
	ctx context.Context
	w   io.Writer
	bar progress.Model

	mu      sync.Mutex
	total   int
	done    int
	current string
}

func NewBuildProgress(ctx context.Context, w io.Writer) *BuildProgress {
	return &BuildProgress{
		ctx: ctx,
		w:   w,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (p *BuildProgress) Begin(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.render()
}

func (p *BuildProgress) SubTask(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = path.Base(id)
}

func (p *BuildProgress) Worked(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done += n
	p.render()
}

func (p *BuildProgress) Canceled() bool { return p.ctx.Err() != nil }

func (p *BuildProgress) Done() {
	fmt.Fprintln(p.w)
}

// Percent is the finished share of the build, 0 before Begin.
func (p *BuildProgress) Percent() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.percent()
}

func (p *BuildProgress) percent() float64 {
	if p.total == 0 {
		return 0
	}
	return float64(p.done) / float64(p.total)
}

func (p *BuildProgress) render() {
	fmt.Fprintf(p.w, "\r%s %d/%d %s\x1b[K", p.bar.ViewAs(p.percent()), p.done, p.total, p.current)
}
