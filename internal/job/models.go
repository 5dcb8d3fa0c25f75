package job

import (
	"slices"
	"time"
)

// SourceFile is an eligible input discovered under the input root.
type SourceFile struct {
	Path         string    `json:"path" yaml:"path"`
	RelPath      string    `json:"rel_path" yaml:"rel_path"`
	Size         int64     `json:"size" yaml:"size"`
	ModTime      time.Time `json:"mod_time" yaml:"mod_time"`
	DiscoveredAt time.Time `json:"discovered_at" yaml:"discovered_at"`
	SHA256       string    `json:"sha256,omitempty" yaml:"sha256,omitempty"`
}

// ID returns the identity of the file within a run: its normalized path.
func (f SourceFile) ID() string {
	return f.Path
}

// Spec carries everything needed to process one SourceFile. It is built once
// per run and must not be mutated after scheduling begins.
type Spec struct {
	// Runtime is the launcher for the tool (typically "java"). When empty the
	// tool path is executed directly.
	Runtime      string
	ToolPath     string
	FrameworkDir string
	APILevel     int
	InputRoot    string
	OutputDir    string
	Timeout      time.Duration
	KillGrace    time.Duration
	ExtraArgs    []string
	// TailBytes caps the captured stdout and stderr per stream.
	TailBytes    int
	SkipExisting bool
}

// Clone returns a deep copy so callers can hand out a Spec without sharing
// the ExtraArgs backing array.
func (s Spec) Clone() Spec {
	out := s
	out.ExtraArgs = slices.Clone(s.ExtraArgs)
	return out
}

// Status classifies the outcome of a single tool invocation.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusToolFailure Status = "tool_failure"
	StatusTimeout     Status = "timeout"
	StatusIOFailure   Status = "io_failure"
)

// Statuses lists every result status in reporting order.
var Statuses = []Status{StatusSuccess, StatusToolFailure, StatusTimeout, StatusIOFailure}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// Succeeded reports whether the status counts as a successful file.
func (s Status) Succeeded() bool {
	return s == StatusSuccess
}

// Result is the immutable record of one processed file.
type Result struct {
	File        SourceFile    `json:"file" yaml:"file"`
	Status      Status        `json:"status" yaml:"status"`
	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time     `json:"finished_at" yaml:"finished_at"`
	Elapsed     time.Duration `json:"elapsed" yaml:"elapsed"`
	ExitCode    int           `json:"exit_code" yaml:"exit_code"`
	Diagnostics string        `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
	OutputPath  string        `json:"output_path,omitempty" yaml:"output_path,omitempty"`
	// Cause keeps the underlying error for classification (for example
	// ENOSPC detection). It is not serialized.
	Cause error `json:"-" yaml:"-"`
}
