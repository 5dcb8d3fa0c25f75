package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// PruneRunLogs removes per-run log files in logDir older than retentionDays,
// never touching active. Zero or negative retention disables pruning. It
// returns the number of files removed.
func PruneRunLogs(logger *slog.Logger, logDir string, retentionDays int, active string) int {
	if retentionDays <= 0 || logDir == "" {
		return 0
	}
	matches, err := filepath.Glob(filepath.Join(logDir, RunLogPattern))
	if err != nil {
		return 0
	}
	if abs, err := filepath.Abs(active); err == nil && active != "" {
		active = abs
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	removed := 0
	for _, path := range matches {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if path == active {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "run log removal failed; file remains", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check permissions on paths.log_dir"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Debug("run log pruned", String("path", path), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}
