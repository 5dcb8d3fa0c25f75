// Package staging names the temporary outputs the tool writes into and
// sweeps the ones left behind by interrupted runs.
package staging

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"deodexer/internal/logging"
)

// Marker separates a final output path from its staging suffix.
const Marker = ".partial-"

// Path returns a unique sibling of final for the tool to write into.
func Path(final string) string {
	return final + Marker + uuid.NewString()[:8]
}

// IsStaging reports whether name is a staging entry.
func IsStaging(name string) bool {
	return strings.Contains(name, Marker)
}

// CleanResult contains the outcome of a sweep.
type CleanResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes staging entries under root whose modification time is
// older than maxAge. A zero maxAge removes every staging entry; callers only
// do that while holding the output lock.
func CleanStale(ctx context.Context, root string, maxAge time.Duration, logger *slog.Logger) CleanResult {
	result := CleanResult{}

	root = strings.TrimSpace(root)
	if root == "" {
		return result
	}
	if _, err := os.Stat(root); err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: root, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path == root || !IsStaging(entry.Name()) {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			return skipIfDir(entry)
		}
		if maxAge > 0 && !info.ModTime().Before(cutoff) {
			return skipIfDir(entry)
		}
		if err := os.RemoveAll(path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			if logger != nil {
				logger.Warn("failed to remove stale staging output",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "staging_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "check output_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
			return skipIfDir(entry)
		}
		result.Removed = append(result.Removed, path)
		if logger != nil {
			logger.Info("removed stale staging output",
				logging.String("path", path),
				logging.Duration("age", time.Since(info.ModTime())),
				logging.String(logging.FieldEventType, "staging_cleanup"),
			)
		}
		return skipIfDir(entry)
	})
	if walkErr != nil {
		result.Errors = append(result.Errors, CleanupError{Path: root, Error: walkErr})
	}
	return result
}

func skipIfDir(entry fs.DirEntry) error {
	if entry.IsDir() {
		return fs.SkipDir
	}
	return nil
}
