package scheduler

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"syscall"

	"deodexer/internal/job"
)

// ErrFault marks a condition that makes further scheduling meaningless.
var ErrFault = errors.New("run aborted")

// MinFreeBytes is the free space below which the output root counts as full.
const MinFreeBytes = 1 << 20

// noSpaceText is how a JVM tool reports ENOSPC on stderr.
const noSpaceText = "No space left on device"

// freeSpace reports the bytes available to unprivileged writers under path.
var freeSpace = availableBytes

// FaultCheck inspects a finished result and returns a non-nil error wrapping
// ErrFault when the whole run must stop dispatching.
type FaultCheck func(spec job.Spec, res job.Result) error

// DetectFault is the default FaultCheck: a full disk or a vanished output
// root aborts the run; anything else stays a per-file failure. A failed tool
// gives no structured cause, so its stderr tail and the output volume's free
// space are checked too.
func DetectFault(spec job.Spec, res job.Result) error {
	if res.Status.Succeeded() {
		return nil
	}
	if errors.Is(res.Cause, syscall.ENOSPC) {
		return fmt.Errorf("%w: out of disk space: %v", ErrFault, res.Cause)
	}
	if strings.Contains(res.Diagnostics, noSpaceText) {
		return fmt.Errorf("%w: out of disk space: tool reported %q", ErrFault, noSpaceText)
	}
	if err := checkOutputRoot(spec); err != nil {
		return err
	}
	if spec.OutputDir == "" {
		return nil
	}
	if free, ok := freeSpace(spec.OutputDir); ok && free < MinFreeBytes {
		return fmt.Errorf("%w: out of disk space: %d bytes free under %s", ErrFault, free, spec.OutputDir)
	}
	return nil
}

func checkOutputRoot(spec job.Spec) error {
	if spec.OutputDir == "" {
		return nil
	}
	info, err := os.Stat(spec.OutputDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: output root %s disappeared", ErrFault, spec.OutputDir)
		}
		return nil
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: output root %s is no longer a directory", ErrFault, spec.OutputDir)
	}
	return nil
}
