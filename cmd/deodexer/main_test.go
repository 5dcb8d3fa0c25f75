package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"deodexer/internal/api"
	"deodexer/internal/config"
	"deodexer/internal/history"
	"deodexer/internal/testsupport"
	"deodexer/internal/workflow"
)

func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func exitCode(err error) int {
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	if err != nil {
		return 1
	}
	return 0
}

func TestConfigInitAndValidate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, []string{"config", "validate"}, configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, configPath)

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "validate"}, target); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}

func TestRunCommandAndHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(2))
	for _, rel := range []string{"framework/a.odex", "framework/b.odex", "app/c.odex"} {
		testsupport.WriteOdex(t, cfg.Paths.InputDir, rel)
	}
	configPath := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, []string{"run", "--no-progress", "--report-format", "json,csv"}, configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "3 (100.0%)")
	requireContains(t, out, "deodex_report_")

	store, err := history.Open(context.Background(), cfg.History.DSN)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	runs, err := store.ListRuns(context.Background(), 5)
	store.Close()
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected one recorded run, got %d (%v)", len(runs), err)
	}

	out, _, err = runCLI(t, []string{"history", "list"}, configPath)
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, out, shortID(runs[0].ID))
	requireContains(t, out, "Completed")

	out, _, err = runCLI(t, []string{"history", "show", shortID(runs[0].ID)}, configPath)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	requireContains(t, out, runs[0].ID)
	requireContains(t, out, "c.odex")

	out, _, err = runCLI(t, []string{"logs", shortID(runs[0].ID), "-n", "500"}, configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "discovery complete")
}

type idleProvider struct{}

func (idleProvider) Current() api.Run { return nil }

func TestStatusCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)

	ts := httptest.NewServer(api.NewServer("", idleProvider{}, nil).Handler())
	out, _, err := runCLI(t, []string{"status", "--addr", ts.URL}, configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "No run in progress")

	addr := ts.Listener.Addr().String()
	ts.Close()
	out, _, err = runCLI(t, []string{"status", "--addr", addr}, configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "not reachable")

	if _, _, err := runCLI(t, []string{"cancel"}, configPath); err == nil {
		t.Fatal("cancel without an address should fail")
	}
}

func TestRunCommandExitCodes(t *testing.T) {
	t.Run("failed files", func(t *testing.T) {
		cfg := testsupport.NewConfig(t,
			testsupport.WithHistoryDisabled(),
			testsupport.WithStubTool(testsupport.StubTool{FailPattern: "*/broken.odex"}),
		)
		testsupport.WriteOdex(t, cfg.Paths.InputDir, "ok.odex")
		testsupport.WriteOdex(t, cfg.Paths.InputDir, "broken.odex")
		configPath := writeTestConfig(t, cfg)

		out, _, err := runCLI(t, []string{"run", "--no-progress"}, configPath)
		if got := exitCode(err); got != workflow.ExitFilesFailed {
			t.Fatalf("expected exit %d, got %d (%v)", workflow.ExitFilesFailed, got, err)
		}
		requireContains(t, out, "Tool Failure")
		requireContains(t, out, "broken.odex")
	})

	t.Run("preflight fatal", func(t *testing.T) {
		cfg := testsupport.NewConfig(t, testsupport.WithHistoryDisabled())
		testsupport.WriteOdex(t, cfg.Paths.InputDir, "ok.odex")
		configPath := writeTestConfig(t, cfg)

		missing := filepath.Join(testsupport.BaseDir(cfg), "nope", "baksmali")
		out, _, err := runCLI(t, []string{"run", "--no-progress", "--tool", missing}, configPath)
		if got := exitCode(err); got != workflow.ExitNotStarted {
			t.Fatalf("expected exit %d, got %d (%v)", workflow.ExitNotStarted, got, err)
		}
		requireContains(t, out, "[ERROR]")
		if entries, _ := os.ReadDir(cfg.Paths.OutputDir); len(entries) != 0 {
			t.Fatalf("expected no output, found %d entries", len(entries))
		}
	})

	t.Run("missing input", func(t *testing.T) {
		cfg := testsupport.NewConfig(t, testsupport.WithHistoryDisabled())
		configPath := writeTestConfig(t, cfg)
		_, _, err := runCLI(t, []string{"run", "--no-progress", filepath.Join(testsupport.BaseDir(cfg), "absent")}, configPath)
		if got := exitCode(err); got != workflow.ExitNotStarted {
			t.Fatalf("expected exit %d, got %d (%v)", workflow.ExitNotStarted, got, err)
		}
	})
}

func TestCheckCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHistoryDisabled())
	testsupport.WriteOdex(t, cfg.Paths.InputDir, "a.odex")
	testsupport.WriteOdex(t, cfg.Paths.InputDir, "b.odex")
	configPath := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, []string{"check"}, configPath)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	requireContains(t, out, "Eligible files")
	requireContains(t, out, "2 under")
	if _, err := os.Stat(filepath.Join(cfg.Paths.OutputDir, workflow.LockFileName)); err == nil {
		t.Fatal("check must not lock or create the output directory")
	}
}

func TestStatusLabel(t *testing.T) {
	tests := map[string]string{
		"tool_failure": "Tool Failure",
		"success":      "Success",
		"io_failure":   "Io Failure",
		"":             "Unknown",
	}
	for in, want := range tests {
		if got := statusLabel(in); got != want {
			t.Fatalf("statusLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Files", statusError, "none", false)
	if !strings.HasPrefix(got, statusIndent+"Files:") || !strings.HasSuffix(got, "[ERROR] none") {
		t.Fatalf("unexpected status line %q", got)
	}
	if colored := renderStatusLine("Files", statusOK, "", true); !strings.HasPrefix(colored, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", colored)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefghij", 6); got != "abc..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate = %q", got)
	}
}
