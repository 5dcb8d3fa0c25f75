package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"deodexer/internal/config"
)

func clearDeodexerEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DEODEXER_MAX_WORKERS",
		"DEODEXER_LOG_LEVEL",
		"DEODEXER_DB_PATH",
		"DEODEXER_TOOL_JAR",
		"DEODEXER_FRAMEWORK_DIR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearDeodexerEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "deodexer", "config.toml") {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogDir := filepath.Join(tempHome, ".local", "share", "deodexer", "logs")
	if cfg.Paths.LogDir != wantLogDir {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogDir)
	}
	if !filepath.IsAbs(cfg.Paths.OutputDir) || filepath.Base(cfg.Paths.OutputDir) != "output" {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
	if cfg.Paths.InputDir != "" {
		t.Fatalf("expected empty input dir by default, got %q", cfg.Paths.InputDir)
	}
	if cfg.History.DSN != filepath.Join(tempHome, ".local", "share", "deodexer", "history.db") {
		t.Fatalf("unexpected history dsn: %q", cfg.History.DSN)
	}
	if cfg.Workflow.Workers != 4 || cfg.Workflow.MaxWorkers != 8 {
		t.Fatalf("unexpected worker defaults: %+v", cfg.Workflow)
	}
	if got := cfg.Tool.Extensions; len(got) != 1 || got[0] != ".odex" {
		t.Fatalf("unexpected extensions: %v", got)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.OutputDir, cfg.Paths.LogDir, cfg.Paths.ReportDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearDeodexerEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "deodexer.toml")

	type payload struct {
		Paths struct {
			InputDir string `toml:"input_dir"`
		} `toml:"paths"`
		Tool struct {
			APILevel   int      `toml:"api_level"`
			Extensions []string `toml:"extensions"`
		} `toml:"tool"`
		Workflow struct {
			Workers int `toml:"workers"`
		} `toml:"workflow"`
		Report struct {
			Formats []string `toml:"formats"`
		} `toml:"report"`
	}
	custom := payload{}
	custom.Paths.InputDir = filepath.Join(tempDir, "in")
	custom.Tool.APILevel = 23
	custom.Tool.Extensions = []string{"ODEX", ".oat", ".odex"}
	custom.Workflow.Workers = 2
	custom.Report.Formats = []string{"JSON", "yml"}
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.InputDir != custom.Paths.InputDir {
		t.Fatalf("unexpected input dir: %q", cfg.Paths.InputDir)
	}
	if cfg.Tool.APILevel != 23 {
		t.Fatalf("expected api level 23, got %d", cfg.Tool.APILevel)
	}
	if strings.Join(cfg.Tool.Extensions, ",") != ".odex,.oat" {
		t.Fatalf("unexpected normalized extensions: %v", cfg.Tool.Extensions)
	}
	if strings.Join(cfg.Report.Formats, ",") != "json,yaml" {
		t.Fatalf("unexpected normalized formats: %v", cfg.Report.Formats)
	}
	if cfg.EffectiveWorkers() != 2 {
		t.Fatalf("expected 2 workers, got %d", cfg.EffectiveWorkers())
	}
}

func TestEnvOverridesConfigFile(t *testing.T) {
	clearDeodexerEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "deodexer.toml")
	contents := "[workflow]\nworkers = 2\n\n[logging]\nlevel = \"info\"\n\n[tool]\njar_path = \"/opt/file.jar\"\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("DEODEXER_MAX_WORKERS", "6")
	t.Setenv("DEODEXER_LOG_LEVEL", "DEBUG")
	t.Setenv("DEODEXER_DB_PATH", "postgres://user@localhost/deodexer")
	t.Setenv("DEODEXER_TOOL_JAR", "/opt/env.jar")
	t.Setenv("DEODEXER_FRAMEWORK_DIR", filepath.Join(tempDir, "framework"))

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Workflow.Workers != 6 {
		t.Errorf("expected workers from env, got %d", cfg.Workflow.Workers)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level from env, got %q", cfg.Logging.Level)
	}
	if cfg.History.DSN != "postgres://user@localhost/deodexer" {
		t.Errorf("expected postgres dsn kept verbatim, got %q", cfg.History.DSN)
	}
	if cfg.Tool.JarPath != "/opt/env.jar" {
		t.Errorf("expected jar from env, got %q", cfg.Tool.JarPath)
	}
	if cfg.Tool.FrameworkDir != filepath.Join(tempDir, "framework") {
		t.Errorf("expected framework dir from env, got %q", cfg.Tool.FrameworkDir)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearDeodexerEnv(t)
	os.Unsetenv("DEODEXER_TOOL_JAR")
	t.Setenv("HOME", t.TempDir())
	workDir := t.TempDir()
	t.Chdir(workDir)
	if err := os.WriteFile(filepath.Join(workDir, ".env"), []byte("DEODEXER_TOOL_JAR=/opt/dotenv.jar\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("DEODEXER_TOOL_JAR") })

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Tool.JarPath != "/opt/dotenv.jar" {
		t.Fatalf("expected jar path from .env, got %q", cfg.Tool.JarPath)
	}
}

func TestInvalidEnvWorkersRejected(t *testing.T) {
	clearDeodexerEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DEODEXER_MAX_WORKERS", "many")
	if _, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for non-numeric DEODEXER_MAX_WORKERS")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	cfg := config.Default()
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Tool.Runtime != "java" {
		t.Fatalf("expected sample runtime java, got %q", cfg.Tool.Runtime)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero timeout", func(c *config.Config) { c.Tool.TimeoutSeconds = 0 }},
		{"api level below range", func(c *config.Config) { c.Tool.APILevel = 3 }},
		{"api level above range", func(c *config.Config) { c.Tool.APILevel = 99 }},
		{"inverted range", func(c *config.Config) { c.Tool.MinAPILevel = 30; c.Tool.MaxAPILevel = 20 }},
		{"zero workers", func(c *config.Config) { c.Workflow.Workers = 0 }},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"bad report format", func(c *config.Config) { c.Report.Formats = []string{"pdf"} }},
		{"no extensions", func(c *config.Config) { c.Tool.Extensions = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidateRunRequiresInput(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.OutputDir = "/tmp/out"
	if err := cfg.ValidateRun(); err == nil {
		t.Fatal("expected error without input dir")
	}
	cfg.Paths.InputDir = "/tmp/out"
	if err := cfg.ValidateRun(); err == nil {
		t.Fatal("expected error when input equals output")
	}
	cfg.Paths.InputDir = "/tmp/in"
	if err := cfg.ValidateRun(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEffectiveWorkersClamps(t *testing.T) {
	cfg := config.Default()
	cfg.Workflow.Workers = 50
	if got := cfg.EffectiveWorkers(); got != cfg.Workflow.MaxWorkers {
		t.Fatalf("expected clamp to %d, got %d", cfg.Workflow.MaxWorkers, got)
	}
	cfg.Workflow.Workers = 0
	if got := cfg.EffectiveWorkers(); got != 1 {
		t.Fatalf("expected floor of 1, got %d", got)
	}
}

func TestJobSpecFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Tool.JarPath = "/opt/baksmali.jar"
	cfg.Tool.FrameworkDir = "/opt/framework"
	cfg.Tool.TimeoutSeconds = 12
	cfg.Tool.ExtraArgs = []string{"--debug-info"}
	cfg.Paths.InputDir = "/in"
	cfg.Paths.OutputDir = "/out"
	cfg.Workflow.SkipExisting = true

	spec := cfg.JobSpec()
	if spec.ToolPath != "/opt/baksmali.jar" || spec.FrameworkDir != "/opt/framework" {
		t.Fatalf("unexpected tool fields: %+v", spec)
	}
	if spec.Timeout != 12*time.Second {
		t.Fatalf("unexpected timeout: %s", spec.Timeout)
	}
	if spec.InputRoot != "/in" || spec.OutputDir != "/out" || !spec.SkipExisting {
		t.Fatalf("unexpected run fields: %+v", spec)
	}
	cfg.Tool.ExtraArgs[0] = "mutated"
	if spec.ExtraArgs[0] != "--debug-info" {
		t.Fatal("expected JobSpec to copy extra args")
	}
}

func TestIsPostgresDSN(t *testing.T) {
	if !config.IsPostgresDSN("postgresql://localhost/db") {
		t.Fatal("expected postgresql scheme to match")
	}
	if config.IsPostgresDSN("/var/lib/deodexer/history.db") {
		t.Fatal("expected file path not to match")
	}
}
