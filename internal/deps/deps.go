package deps

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Requirement defines an external dependency deodexer relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
// Commands containing a path separator are checked in place; bare names are
// resolved through PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = lookupDetail(cmd, err)
			results = append(results, status)
			continue
		}
		status.Command = resolved
		status.Available = true
		results = append(results, status)
	}
	return results
}

func lookupDetail(cmd string, err error) string {
	if strings.ContainsRune(cmd, os.PathSeparator) {
		info, statErr := os.Stat(cmd)
		switch {
		case statErr != nil:
			return fmt.Sprintf("%s does not exist", cmd)
		case !isExecutable(info):
			return fmt.Sprintf("%s is not executable", cmd)
		}
		return fmt.Sprintf("%s: %v", cmd, err)
	}
	return fmt.Sprintf("binary %q not found", cmd)
}

// CheckFile reports whether path is an existing, readable regular file. It is
// used for tool jars, which are launched through a runtime rather than
// executed.
func CheckFile(req Requirement) Status {
	path := strings.TrimSpace(req.Command)
	status := Status{
		Name:        req.Name,
		Command:     path,
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if path == "" {
		status.Detail = "path not configured"
		return status
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			status.Detail = fmt.Sprintf("%s does not exist", path)
		} else {
			status.Detail = fmt.Sprintf("stat %s: %v", path, err)
		}
		return status
	}
	if info.IsDir() {
		status.Detail = fmt.Sprintf("%s is a directory", path)
		return status
	}
	file, err := os.Open(path)
	if err != nil {
		status.Detail = fmt.Sprintf("%s is not readable: %v", path, err)
		return status
	}
	_ = file.Close()
	status.Available = true
	return status
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
