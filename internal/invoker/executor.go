package invoker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"
)

// ErrSpawn marks a tool process that could not be started.
var ErrSpawn = errors.New("spawn tool")

const defaultKillGrace = 5 * time.Second

// Process describes one external tool call.
type Process struct {
	Path   string
	Args   []string
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
	// KillGrace is how long a terminated process may take to exit before it
	// is killed outright.
	KillGrace time.Duration
}

// Executor abstracts process execution for testability. Run returns the exit
// code of the process (-1 when it was terminated by a signal) and a non-nil
// error wrapping ErrSpawn when the process never started.
type Executor interface {
	Run(ctx context.Context, proc Process) (int, error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, proc Process) (int, error) {
	cmd := exec.CommandContext(ctx, proc.Path, proc.Args...)
	cmd.Dir = proc.Dir
	cmd.Stdout = proc.Stdout
	cmd.Stderr = proc.Stderr
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return terminateGroup(cmd) }
	cmd.WaitDelay = proc.KillGrace
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = defaultKillGrace
	}

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("%w: %w", ErrSpawn, err)
	}
	waitErr := cmd.Wait()
	// Reap anything the tool left behind in its group.
	killGroup(cmd)

	if cmd.ProcessState != nil {
		code := cmd.ProcessState.ExitCode()
		if code == 0 && waitErr != nil && ctx.Err() == nil {
			return code, fmt.Errorf("wait tool: %w", waitErr)
		}
		return code, nil
	}
	if waitErr != nil {
		return -1, fmt.Errorf("wait tool: %w", waitErr)
	}
	return -1, nil
}
