package deps

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	notExec := filepath.Join(binDir, "plain")
	if err := os.WriteFile(notExec, script, 0o644); err != nil {
		t.Fatalf("write plain: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Plain", Command: notExec},
		{Name: "Empty", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected missing binary status: %#v", results[1])
	}
	if results[2].Available || !strings.Contains(results[2].Detail, "not executable") {
		t.Fatalf("expected non-executable detail, got %#v", results[2])
	}
	if results[3].Available || results[3].Detail != "command not configured" {
		t.Fatalf("unexpected empty command status: %#v", results[3])
	}
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "baksmali.jar")
	if err := os.WriteFile(jar, []byte("PK"), 0o644); err != nil {
		t.Fatalf("write jar: %v", err)
	}
	if status := CheckFile(Requirement{Name: "jar", Command: jar}); !status.Available {
		t.Fatalf("expected jar available, got %q", status.Detail)
	}
	if status := CheckFile(Requirement{Name: "jar", Command: dir}); status.Available {
		t.Fatal("expected directory to be rejected")
	}
	if status := CheckFile(Requirement{Name: "jar", Command: filepath.Join(dir, "missing.jar")}); status.Available || !strings.Contains(status.Detail, "does not exist") {
		t.Fatalf("unexpected missing jar status: %#v", status)
	}
}

func TestParseRuntimeVersion(t *testing.T) {
	cases := []struct {
		banner    string
		wantVer   string
		wantMajor int
	}{
		{`openjdk version "17.0.2" 2022-01-18`, "17.0.2", 17},
		{`java version "1.8.0_292"`, "1.8.0_292", 8},
		{`openjdk version "21" 2023-09-19`, "21", 21},
		{"garbage", "", 0},
	}
	for _, tc := range cases {
		got := ParseRuntimeVersion("java", tc.banner)
		if got.Version != tc.wantVer || got.Major != tc.wantMajor {
			t.Errorf("ParseRuntimeVersion(%q) = %+v", tc.banner, got)
		}
	}
}

func TestExecProberReadsStderrBanner(t *testing.T) {
	dir := t.TempDir()
	fake := filepath.Join(dir, "java")
	script := "#!/bin/sh\necho 'openjdk version \"11.0.20\" 2023-07-18' 1>&2\nexit 0\n"
	if err := os.WriteFile(fake, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake java: %v", err)
	}
	info, err := ExecProber{}.ProbeVersion(context.Background(), fake)
	if err != nil {
		t.Fatalf("ProbeVersion returned error: %v", err)
	}
	if info.Major != 11 {
		t.Fatalf("expected major 11, got %+v", info)
	}
}

func TestExecProberFailure(t *testing.T) {
	dir := t.TempDir()
	fake := filepath.Join(dir, "java")
	if err := os.WriteFile(fake, []byte("#!/bin/sh\nexit 3\n"), 0o755); err != nil {
		t.Fatalf("write fake java: %v", err)
	}
	if _, err := (ExecProber{}).ProbeVersion(context.Background(), fake); err == nil {
		t.Fatal("expected error for failing runtime")
	}
}
