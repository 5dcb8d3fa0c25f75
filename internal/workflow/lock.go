package workflow

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is created inside the output directory for the duration of a run.
const LockFileName = ".deodexer.lock"

// ErrOutputLocked is returned when another run holds the output directory.
var ErrOutputLocked = errors.New("output directory is in use by another run")

type outputLock struct {
	path string
	lock *flock.Flock
}

func lockOutputDir(dir string) (*outputLock, error) {
	path := filepath.Join(dir, LockFileName)
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOutputLocked, path)
	}
	return &outputLock{path: path, lock: lock}, nil
}

func (l *outputLock) release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
