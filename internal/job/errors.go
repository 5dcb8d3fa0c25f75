package job

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a missing or non-directory input root.
var ErrNotFound = errors.New("not found")

// ErrAccess marks an unreadable path encountered during discovery.
var ErrAccess = errors.New("access denied")

// NotFoundError reports that the input root does not exist or is not a
// directory.
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("input root %s: not found: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("input root %s: not found", e.Path)
}

func (e *NotFoundError) Unwrap() []error {
	return causes(ErrNotFound, e.Err)
}

// AccessError reports an unreadable subdirectory. Discovery records it and
// keeps going.
type AccessError struct {
	Path string
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *AccessError) Unwrap() []error {
	return causes(ErrAccess, e.Err)
}

func causes(marker, err error) []error {
	if err == nil {
		return []error{marker}
	}
	return []error{marker, err}
}
