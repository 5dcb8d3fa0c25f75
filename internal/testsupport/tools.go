package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

// StubTool describes a /bin/sh stand-in for the deodexing tool. It accepts
// the real argument layout (deodex -a N -d DIR -o OUT [extra...] INPUT) and
// by default writes OUT/classes.smali.
type StubTool struct {
	// ExitCode is returned after the output step.
	ExitCode int
	// Sleep is passed to sleep(1) before doing anything else.
	Sleep string
	// SkipOutput leaves the output path untouched.
	SkipOutput bool
	Stdout     string
	Stderr     string
	// FailPattern is a shell case pattern; inputs matching it exit 7 with a
	// message on stderr.
	FailPattern string
	// CallLog, when set, receives one line per invocation with the input path.
	CallLog string
}

var stubCounter atomic.Int64

// WriteStubTool writes an executable script for stub into dir and returns
// its path.
func WriteStubTool(t testing.TB, dir string, stub StubTool) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir stub dir: %v", err)
	}
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("out=\"\"\ninput=\"\"\n")
	b.WriteString("while [ $# -gt 0 ]; do\n")
	b.WriteString("  case \"$1\" in\n")
	b.WriteString("    -o) out=\"$2\"; shift 2 ;;\n")
	b.WriteString("    -a|-d) shift 2 ;;\n")
	b.WriteString("    *) input=\"$1\"; shift ;;\n")
	b.WriteString("  esac\n")
	b.WriteString("done\n")
	if stub.CallLog != "" {
		fmt.Fprintf(&b, "echo \"$input\" >> %s\n", shellQuote(stub.CallLog))
	}
	if stub.Sleep != "" {
		fmt.Fprintf(&b, "sleep %s\n", stub.Sleep)
	}
	if stub.Stdout != "" {
		fmt.Fprintf(&b, "echo %s\n", shellQuote(stub.Stdout))
	}
	if stub.Stderr != "" {
		fmt.Fprintf(&b, "echo %s >&2\n", shellQuote(stub.Stderr))
	}
	if stub.FailPattern != "" {
		fmt.Fprintf(&b, "case \"$input\" in %s) echo \"bad odex: $input\" >&2; exit 7 ;; esac\n", stub.FailPattern)
	}
	if !stub.SkipOutput {
		b.WriteString("mkdir -p \"$out\" && echo '.class LStub;' > \"$out/classes.smali\"\n")
	}
	fmt.Fprintf(&b, "exit %d\n", stub.ExitCode)

	path := filepath.Join(dir, fmt.Sprintf("baksmali-stub-%d", stubCounter.Add(1)))
	if err := os.WriteFile(path, []byte(b.String()), 0o755); err != nil {
		t.Fatalf("write stub tool: %v", err)
	}
	return path
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
