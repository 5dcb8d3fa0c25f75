package logging

import (
	"context"
	"log/slog"
)

// runTee writes each record to the console sink and the run-log sink. The
// sinks keep their own levels: the console usually stops at info while the
// JSON run log keeps debug lines such as tool argv.
type runTee struct {
	sinks []slog.Handler
}

// TeeHandler joins the given sinks into one handler. Nil sinks are skipped
// so a run without a log file gets the console handler back unwrapped.
func TeeHandler(sinks ...slog.Handler) slog.Handler {
	var live []slog.Handler
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	switch len(live) {
	case 0:
		return NoopHandler{}
	case 1:
		return live[0]
	}
	return &runTee{sinks: live}
}

func (t *runTee) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range t.sinks {
		if s.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle reports the first sink error but still offers the record to every
// sink, so a full disk under the run log does not silence the console.
func (t *runTee) Handle(ctx context.Context, record slog.Record) error {
	var first error
	last := len(t.sinks) - 1
	for i, s := range t.sinks {
		if !s.Enabled(ctx, record.Level) {
			continue
		}
		r := record
		if i != last {
			// Handlers may append attrs to the record they receive.
			r = record.Clone()
		}
		if err := s.Handle(ctx, r); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (t *runTee) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.derive(func(s slog.Handler) slog.Handler { return s.WithAttrs(attrs) })
}

func (t *runTee) WithGroup(name string) slog.Handler {
	return t.derive(func(s slog.Handler) slog.Handler { return s.WithGroup(name) })
}

func (t *runTee) derive(fn func(slog.Handler) slog.Handler) slog.Handler {
	next := make([]slog.Handler, len(t.sinks))
	for i, s := range t.sinks {
		next[i] = fn(s)
	}
	return &runTee{sinks: next}
}
