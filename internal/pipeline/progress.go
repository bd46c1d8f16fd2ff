package pipeline

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"labelreel/internal/logging"
)

// Progress receives batch-granularity extraction progress.
type Progress interface {
	Start(total int)
	Advance(video string, frames int)
	Finish()
}

// NewProgress returns a progress bar when w is a terminal and sampled log
// lines otherwise.
func NewProgress(w io.Writer, logger *slog.Logger) Progress {
	if file, ok := w.(*os.File); ok {
		fd := file.Fd()
		if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
			return &barProgress{w: w}
		}
	}
	return &logProgress{logger: logging.NewComponentLogger(logger, "progress"), sampler: logging.NewProgressSampler(10)}
}

type nopProgress struct{}

func (nopProgress) Start(int)           {}
func (nopProgress) Advance(string, int) {}
func (nopProgress) Finish()             {}

type barProgress struct {
	mu  sync.Mutex
	w   io.Writer
	bar *progressbar.ProgressBar
}

func (p *barProgress) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription("extracting"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *barProgress) Advance(video string, frames int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		return
	}
	p.bar.Describe(filepath.Base(video))
	_ = p.bar.Add(frames)
}

func (p *barProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

type logProgress struct {
	mu      sync.Mutex
	logger  *slog.Logger
	sampler *logging.ProgressSampler
	total   int
	done    int
}

func (p *logProgress) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.done = 0
	p.sampler.Reset()
}

func (p *logProgress) Advance(video string, frames int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done += frames
	if !p.sampler.Due(p.done, p.total) {
		return
	}
	percent := float64(p.done) * 100 / float64(p.total)
	p.logger.Info("extraction progress",
		logging.String("video", filepath.Base(video)),
		logging.Int("frames", p.done),
		logging.Int("total", p.total),
		logging.Float64("percent", percent),
	)
}

func (p *logProgress) Finish() {}
