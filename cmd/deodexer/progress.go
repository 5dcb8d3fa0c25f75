package main

import (
	"io"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"deodexer/internal/scheduler"
)

// progressReporter draws a terminal progress bar from scheduler events. The
// bar is created on the first event, when the total is known.
type progressReporter struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func newProgressReporter(w io.Writer) *progressReporter {
	return &progressReporter{w: w}
}

// Handle is a scheduler.ProgressFunc. Events arrive from a single goroutine.
func (p *progressReporter) Handle(ev scheduler.Event) {
	if p.bar == nil {
		p.bar = progressbar.NewOptions(ev.Total,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetDescription("deodexing"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionSetElapsedTime(true),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionFullWidth(),
		)
	}
	p.bar.Describe(filepath.Base(ev.File.Path))
	_ = p.bar.Add(1)
}

func (p *progressReporter) Finish() {
	if p == nil || p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}
