package deps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RuntimeProbeTimeout bounds the "<runtime> -version" probe.
const RuntimeProbeTimeout = 10 * time.Second

// RuntimeVersion describes the launcher the tool runs under.
type RuntimeVersion struct {
	Command string
	Version string
	Major   int
	Raw     string
}

// RuntimeProber reports the version of a tool runtime such as java.
type RuntimeProber interface {
	ProbeVersion(ctx context.Context, command string) (RuntimeVersion, error)
}

// ExecProber probes runtimes by executing them.
type ExecProber struct{}

var versionPattern = regexp.MustCompile(`version "([^"]+)"`)

// ProbeVersion runs "<command> -version" and parses the reported version.
// Java prints the banner on stderr, so both streams are read.
func (ExecProber) ProbeVersion(ctx context.Context, command string) (RuntimeVersion, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return RuntimeVersion{}, errors.New("runtime not configured")
	}
	probeCtx, cancel := context.WithTimeout(ctx, RuntimeProbeTimeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(probeCtx, command, "-version")
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		if errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
			return RuntimeVersion{Command: command}, fmt.Errorf("%s -version timed out after %s", command, RuntimeProbeTimeout)
		}
		return RuntimeVersion{Command: command, Raw: strings.TrimSpace(out.String())}, fmt.Errorf("%s -version: %w", command, err)
	}
	return ParseRuntimeVersion(command, out.String()), nil
}

// ParseRuntimeVersion extracts the version string and major number from a
// java -version banner. Legacy "1.8.0_292" style versions report major 8.
func ParseRuntimeVersion(command, banner string) RuntimeVersion {
	banner = strings.TrimSpace(banner)
	info := RuntimeVersion{Command: command, Raw: banner}
	match := versionPattern.FindStringSubmatch(banner)
	if len(match) < 2 {
		return info
	}
	info.Version = match[1]
	parts := strings.FieldsFunc(info.Version, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return info
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return info
	}
	if major == 1 && len(parts) > 1 {
		if legacy, err := strconv.Atoi(parts[1]); err == nil {
			major = legacy
		}
	}
	info.Major = major
	return info
}
