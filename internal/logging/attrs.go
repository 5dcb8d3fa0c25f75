package logging

import (
	"context"
	"log/slog"
	"time"
)

// Attr is the attribute type accepted by every helper in this package.
type Attr = slog.Attr

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// RunID tags a line with the run it belongs to. The run logger already
// carries it, so only code logging outside a run needs this.
func RunID(id string) Attr { return slog.String(FieldRunID, id) }

// SourceFile tags a line with the odex file a worker is processing.
func SourceFile(path string) Attr { return slog.String(FieldSourceFile, path) }

// Error renders a nil error as "<nil>" so the key never disappears from a
// JSON run log.
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

func toArgs(attrs []Attr) []any {
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return args
}

// NewNop returns a logger that drops everything; tests and library callers
// that pass a nil logger end up here.
func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NewComponentLogger scopes logger to one engine component (scheduler,
// invoker, preflight) so run-log lines can be filtered by it.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

func hasKey(attrs []Attr, key string) bool {
	for _, a := range attrs {
		if a.Key == key {
			return true
		}
	}
	return false
}

// withDefaults appends key=value for every key the caller left out.
func withDefaults(attrs []Attr, defaults ...Attr) []Attr {
	for _, d := range defaults {
		if !hasKey(attrs, d.Key) {
			attrs = append(attrs, d)
		}
	}
	return attrs
}

// WarnWithContext logs a warning that always carries event_type, error_hint
// and impact, so every warning in a run log says what happened and what the
// operator should look at.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefaults(attrs,
		String(FieldEventType, eventType),
		String(FieldErrorHint, "check the run log for details"),
		String(FieldImpact, "run continues with warnings"),
	)
	logger.Warn(msg, toArgs(attrs)...)
}

// ErrorWithContext is WarnWithContext at error level, without the impact
// default.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefaults(attrs,
		String(FieldEventType, eventType),
		String(FieldErrorHint, "check the run log for details"),
	)
	logger.Error(msg, toArgs(attrs)...)
}

// NoopHandler discards every record.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h NoopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h NoopHandler) WithGroup(string) slog.Handler           { return h }
