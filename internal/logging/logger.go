package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"deodexer/internal/config"
)

// RunLogPattern matches the per-run log files written under paths.log_dir.
const RunLogPattern = "deodexer-*.log"

// Options describes logger construction parameters.
type Options struct {
	Level       string
	Format      string
	OutputPaths []string
	// Writer, when set, receives output in addition to OutputPaths.
	Writer      io.Writer
	Development bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	handler, err := newHandler(opts)
	if err != nil {
		return nil, err
	}
	return slog.New(handler), nil
}

func newHandler(opts Options) (slog.Handler, error) {
	level := parseLevel(opts.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	paths := opts.OutputPaths
	if len(paths) == 0 && opts.Writer == nil {
		paths = []string{"stdout"}
	}
	outputWriter, err := openWriters(paths, opts.Writer)
	if err != nil {
		return nil, err
	}

	addSource := opts.Development || level <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	switch format {
	case "json":
		return newJSONHandler(outputWriter, levelVar, addSource), nil
	case "console":
		return newPrettyHandler(outputWriter, levelVar, addSource), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
}

// RunLogPath returns the per-run log file location for runID.
func RunLogPath(logDir, runID string) string {
	return filepath.Join(logDir, "deodexer-"+runID+".log")
}

// NewFromConfig creates a console logger using application config defaults.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}
	return New(Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
}

// NewRunLogger creates the logger for one deodex run. Output goes to stdout in
// the configured format and, as JSON, to a per-run file under the log
// directory. The returned path is empty when no log directory is configured.
func NewRunLogger(cfg *config.Config, runID string) (*slog.Logger, string, error) {
	if cfg == nil {
		logger, err := NewFromConfig(nil)
		return logger, "", err
	}
	console, err := newHandler(Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return nil, "", err
	}
	if strings.TrimSpace(cfg.Paths.LogDir) == "" {
		return slog.New(console).With(String(FieldRunID, runID)), "", nil
	}
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		return nil, "", fmt.Errorf("ensure log directory: %w", err)
	}
	logPath := RunLogPath(cfg.Paths.LogDir, runID)
	file, err := newHandler(Options{Level: cfg.Logging.Level, Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		return nil, "", err
	}
	logger := slog.New(TeeHandler(console, file)).With(String(FieldRunID, runID))
	return logger, logPath, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openWriters(paths []string, extra io.Writer) (io.Writer, error) {
	seen := map[string]struct{}{}
	var writers []io.Writer
	if extra != nil {
		writers = append(writers, extra)
	}

	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}

		switch trimmed {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := ensureLogDir(trimmed); err != nil {
				return nil, err
			}
			file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", trimmed, err)
			}
			writers = append(writers, file)
		}
	}

	if len(writers) == 0 {
		return os.Stdout, nil
	}
	if len(writers) == 1 {
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
