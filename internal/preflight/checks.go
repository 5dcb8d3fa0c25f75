package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"deodexer/internal/deps"
	"deodexer/internal/job"
)

// Check names.
const (
	CheckTool      = "tool"
	CheckRuntime   = "runtime"
	CheckFramework = "framework"
	CheckOutput    = "output"
	CheckAPILevel  = "api_level"
)

// frameworkMarkers are files whose presence indicates a usable framework
// directory. Any other .jar, .odex or .oat also counts.
var frameworkMarkers = []string{"framework.jar", "core.jar", "android.jar", "boot.oat", "boot.art"}

func checkTool(spec job.Spec) []Finding {
	path := strings.TrimSpace(spec.ToolPath)
	if path == "" {
		return []Finding{{Check: CheckTool, Severity: Fatal, Message: "tool path not configured (set tool.jar_path or --tool)"}}
	}
	req := deps.Requirement{Name: "deodex tool", Command: path}
	var status deps.Status
	if strings.TrimSpace(spec.Runtime) == "" {
		status = deps.CheckBinaries([]deps.Requirement{req})[0]
	} else {
		status = deps.CheckFile(req)
	}
	if status.Available {
		return nil
	}
	return []Finding{{Check: CheckTool, Severity: Fatal, Message: "tool unavailable: " + status.Detail, Path: path}}
}

func (v *Validator) checkRuntime(ctx context.Context, runtime string) []Finding {
	status := deps.CheckBinaries([]deps.Requirement{{Name: "runtime", Command: runtime}})[0]
	if !status.Available {
		return []Finding{{Check: CheckRuntime, Severity: Fatal, Message: "runtime unavailable: " + status.Detail, Path: runtime}}
	}
	info, err := v.opts.Prober.ProbeVersion(ctx, status.Command)
	if err != nil {
		return []Finding{{Check: CheckRuntime, Severity: Warning, Message: fmt.Sprintf("runtime version probe failed: %v", err), Path: status.Command}}
	}
	if info.Major > 0 && info.Major < v.opts.MinRuntimeMajor {
		return []Finding{{
			Check:    CheckRuntime,
			Severity: Warning,
			Message:  fmt.Sprintf("runtime version %s is older than %d", info.Version, v.opts.MinRuntimeMajor),
			Path:     status.Command,
		}}
	}
	return nil
}

func checkFramework(dir string) []Finding {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return []Finding{{Check: CheckFramework, Severity: Fatal, Message: "framework directory not configured (set tool.framework_dir or --framework)"}}
	}
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Finding{{Check: CheckFramework, Severity: Fatal, Message: "framework directory does not exist", Path: dir}}
		}
		return []Finding{{Check: CheckFramework, Severity: Fatal, Message: fmt.Sprintf("stat framework directory: %v", err), Path: dir}}
	}
	if !info.IsDir() {
		return []Finding{{Check: CheckFramework, Severity: Fatal, Message: "framework path is not a directory", Path: dir}}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []Finding{{Check: CheckFramework, Severity: Fatal, Message: fmt.Sprintf("framework directory unreadable: %v", err), Path: dir}}
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		for _, marker := range frameworkMarkers {
			if name == marker {
				return nil
			}
		}
		switch filepath.Ext(name) {
		case ".jar", ".odex", ".oat":
			return nil
		}
	}
	return []Finding{{Check: CheckFramework, Severity: Warning, Message: "framework directory contains no framework jars or boot images", Path: dir}}
}

// checkOutputDir requires an existing output directory to be writable. A
// missing one is acceptable when its nearest existing ancestor is writable,
// since the run creates it.
func checkOutputDir(dir string) []Finding {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return []Finding{{Check: CheckOutput, Severity: Fatal, Message: "output directory not configured"}}
	}
	target := dir
	for {
		info, err := os.Stat(target)
		if err == nil {
			if !info.IsDir() {
				return []Finding{{Check: CheckOutput, Severity: Fatal, Message: fmt.Sprintf("%s is not a directory", target), Path: dir}}
			}
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return []Finding{{Check: CheckOutput, Severity: Fatal, Message: fmt.Sprintf("stat output directory: %v", err), Path: dir}}
		}
		parent := filepath.Dir(target)
		if parent == target {
			return []Finding{{Check: CheckOutput, Severity: Fatal, Message: "no existing ancestor for output directory", Path: dir}}
		}
		target = parent
	}
	if err := unix.Access(target, unix.W_OK|unix.X_OK); err != nil {
		return []Finding{{Check: CheckOutput, Severity: Fatal, Message: fmt.Sprintf("%s is not writable: %v", target, err), Path: dir}}
	}
	return nil
}

func (v *Validator) checkAPILevel(level int) []Finding {
	if (v.opts.MinAPILevel > 0 && level < v.opts.MinAPILevel) || (v.opts.MaxAPILevel > 0 && level > v.opts.MaxAPILevel) {
		return []Finding{{
			Check:    CheckAPILevel,
			Severity: Warning,
			Message:  fmt.Sprintf("api level %d outside the tool's supported range %d-%d", level, v.opts.MinAPILevel, v.opts.MaxAPILevel),
		}}
	}
	return nil
}

// CheckDirectoryAccess verifies that the directory exists and is readable and
// writable. It backs the check command's display of auxiliary directories.
// Severity is empty when the directory is usable.
func CheckDirectoryAccess(name, path string) Finding {
	finding := Finding{Check: name, Path: path}
	info, err := os.Stat(path)
	switch {
	case err != nil && os.IsNotExist(err):
		finding.Severity = Warning
		finding.Message = "does not exist (created on first run)"
	case err != nil:
		finding.Severity = Fatal
		finding.Message = fmt.Sprintf("stat: %v", err)
	case !info.IsDir():
		finding.Severity = Fatal
		finding.Message = "is not a directory"
	default:
		if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
			finding.Severity = Fatal
			finding.Message = fmt.Sprintf("insufficient permissions: %v", err)
			return finding
		}
		finding.Message = "read/write ok"
	}
	return finding
}
