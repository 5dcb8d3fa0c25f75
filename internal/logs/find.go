package logs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"deodexer/internal/logging"
)

// ErrNoRunLog is returned when no run log matches.
var ErrNoRunLog = errors.New("no run log found")

// FindRunLog resolves a run ID prefix to its log file in logDir. An empty
// prefix selects the most recently modified run log.
func FindRunLog(logDir, idPrefix string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(logDir, logging.RunLogPattern))
	if err != nil {
		return "", fmt.Errorf("list run logs: %w", err)
	}
	idPrefix = strings.TrimSpace(idPrefix)

	var (
		best     string
		bestTime int64
		hits     int
	)
	for _, path := range matches {
		id := runIDFromName(filepath.Base(path))
		if idPrefix != "" && !strings.HasPrefix(id, idPrefix) {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		hits++
		if mod := info.ModTime().UnixNano(); best == "" || mod > bestTime {
			best, bestTime = path, mod
		}
	}

	switch {
	case best == "":
		if idPrefix != "" {
			return "", fmt.Errorf("%w for run %q in %s", ErrNoRunLog, idPrefix, logDir)
		}
		return "", fmt.Errorf("%w in %s", ErrNoRunLog, logDir)
	case idPrefix != "" && hits > 1:
		return "", fmt.Errorf("run id prefix %q is ambiguous (%d logs)", idPrefix, hits)
	}
	return best, nil
}

func runIDFromName(name string) string {
	name = strings.TrimPrefix(name, "deodexer-")
	return strings.TrimSuffix(name, ".log")
}
