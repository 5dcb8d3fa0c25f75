package scheduler

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"deodexer/internal/job"
)

// ErrOutputClash marks a file held back because its artifact path overlaps
// the artifact of an earlier file in the run.
var ErrOutputClash = errors.New("output path clash")

// DiagOutputClash prefixes the diagnostic of a file held back for a clash.
const DiagOutputClash = "output clash"

type clash struct {
	output string
	owner  job.SourceFile
	reason string
}

// outputClashes claims artifact paths in list order. A file whose path equals
// a claimed path, lies inside one, or contains one is returned keyed by its
// ID; the earlier file keeps the path.
func outputClashes(files []job.SourceFile, spec job.Spec) map[string]clash {
	root := filepath.Clean(spec.OutputDir)
	claimed := make(map[string]job.SourceFile, len(files))
	// ancestors maps every parent directory of a claimed path (below root)
	// to the file that claimed the path beneath it.
	ancestors := make(map[string]job.SourceFile)
	var out map[string]clash

	record := func(f job.SourceFile, c clash) {
		if out == nil {
			out = make(map[string]clash)
		}
		out[f.ID()] = c
	}

	for _, f := range files {
		target := filepath.Clean(job.OutputFor(spec, f))
		if owner, ok := claimed[target]; ok {
			record(f, clash{output: target, owner: owner, reason: "same output as"})
			continue
		}
		if owner, ok := ancestors[target]; ok {
			record(f, clash{output: target, owner: owner, reason: "output contains the output of"})
			continue
		}
		parents := parentsBelow(target, root)
		inside := false
		for _, p := range parents {
			if owner, ok := claimed[p]; ok {
				record(f, clash{output: target, owner: owner, reason: "output lies inside the output of"})
				inside = true
				break
			}
		}
		if inside {
			continue
		}
		claimed[target] = f
		for _, p := range parents {
			if _, ok := ancestors[p]; !ok {
				ancestors[p] = f
			}
		}
	}
	return out
}

func parentsBelow(path, root string) []string {
	var parents []string
	for p := filepath.Dir(path); p != root; {
		parents = append(parents, p)
		next := filepath.Dir(p)
		if next == p {
			break
		}
		p = next
	}
	return parents
}

func clashResult(f job.SourceFile, c clash, now time.Time) job.Result {
	return job.Result{
		File:        f,
		Status:      job.StatusIOFailure,
		StartedAt:   now,
		FinishedAt:  now,
		ExitCode:    -1,
		Diagnostics: fmt.Sprintf("%s: %s %s %s", DiagOutputClash, c.output, c.reason, c.owner.Path),
		Cause:       fmt.Errorf("%w: %s", ErrOutputClash, c.output),
	}
}
