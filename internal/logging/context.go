package logging

import (
	"context"
	"log/slog"
	"strconv"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID identifies one deodex run.
	FieldRunID = "run_id"
	// FieldSourceFile is the normalized path of the file being processed.
	FieldSourceFile = "source_file"
	// FieldWorker is the 1-based index of the scheduler worker.
	FieldWorker = "worker"
	// FieldEventType classifies a log line for filtering (e.g. "file_completed").
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)

type contextKey int

const (
	runIDKey contextKey = iota
	sourceFileKey
	workerKey
)

// WithRunID tags ctx with the run identifier.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext returns the run identifier stored in ctx.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(runIDKey).(string)
	return id, ok && id != ""
}

// WithSourceFile tags ctx with the file currently being processed.
func WithSourceFile(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, sourceFileKey, path)
}

// SourceFileFromContext returns the source file stored in ctx.
func SourceFileFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	path, ok := ctx.Value(sourceFileKey).(string)
	return path, ok && path != ""
}

// WithWorker tags ctx with a worker index.
func WithWorker(ctx context.Context, worker int) context.Context {
	return context.WithValue(ctx, workerKey, worker)
}

// WorkerFromContext returns the worker index stored in ctx.
func WorkerFromContext(ctx context.Context) (int, bool) {
	if ctx == nil {
		return 0, false
	}
	worker, ok := ctx.Value(workerKey).(int)
	return worker, ok
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if worker, ok := WorkerFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldWorker, strconv.Itoa(worker)))
	}
	if path, ok := SourceFileFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSourceFile, path))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(toArgs(fields)...)
}
