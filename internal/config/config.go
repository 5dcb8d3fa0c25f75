package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"deodexer/internal/job"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains input, output, and bookkeeping directories.
type Paths struct {
	InputDir  string `toml:"input_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	ReportDir string `toml:"report_dir"`
}

// Tool describes how the external deodexing tool is launched.
type Tool struct {
	Runtime          string   `toml:"runtime"`
	JarPath          string   `toml:"jar_path"`
	FrameworkDir     string   `toml:"framework_dir"`
	APILevel         int      `toml:"api_level"`
	MinAPILevel      int      `toml:"min_api_level"`
	MaxAPILevel      int      `toml:"max_api_level"`
	TimeoutSeconds   int      `toml:"timeout_seconds"`
	KillGraceSeconds int      `toml:"kill_grace_seconds"`
	Extensions       []string `toml:"extensions"`
	ExtraArgs        []string `toml:"extra_args"`
	OutputTailBytes  int      `toml:"output_tail_bytes"`
}

// Workflow contains worker pool and discovery settings.
type Workflow struct {
	Workers           int  `toml:"workers"`
	MaxWorkers        int  `toml:"max_workers"`
	MaxDepth          int  `toml:"max_depth"`
	TerminateInFlight bool `toml:"terminate_in_flight"`
	SkipExisting      bool `toml:"skip_existing"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Report controls which export formats are written at the end of a run.
type Report struct {
	Formats []string `toml:"formats"`
}

// History controls the run history database.
type History struct {
	Enabled bool   `toml:"enabled"`
	DSN     string `toml:"dsn"`
}

// Notifications contains configuration for ntfy and NATS publishing.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	NATSURL        string `toml:"nats_url"`
	NATSSubject    string `toml:"nats_subject"`
}

// API configures the optional live status server.
type API struct {
	Bind string `toml:"bind"`
}

// Config encapsulates all configuration values for deodexer.
//
// Configuration sections by subsystem:
//   - Paths: input root, output root, logs and reports
//   - Tool: runtime, tool jar, framework context and per-call limits
//   - Workflow: worker pool bounds and discovery limits
//   - Logging: log format, level, and retention
//   - Report: export formats
//   - History: run history database
//   - Notifications: ntfy and NATS publishing
//   - API: live status server bind address
type Config struct {
	Paths         Paths         `toml:"paths"`
	Tool          Tool          `toml:"tool"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
	Report        Report        `toml:"report"`
	History       History       `toml:"history"`
	Notifications Notifications `toml:"notifications"`
	API           API           `toml:"api"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/deodexer/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	loadDotEnv()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("deodexer.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir, c.Paths.ReportDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ToolPath returns the configured tool jar, falling back to the first existing
// well-known location when jar_path is unset.
func (c *Config) ToolPath() string {
	if path := strings.TrimSpace(c.Tool.JarPath); path != "" {
		return path
	}
	for _, candidate := range jarCandidates() {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

func jarCandidates() []string {
	raw := []string{
		"baksmali.jar",
		"tools/baksmali.jar",
		"/usr/local/bin/baksmali.jar",
		"~/tools/baksmali.jar",
	}
	out := make([]string, 0, len(raw))
	for _, candidate := range raw {
		expanded, err := expandPath(candidate)
		if err != nil {
			continue
		}
		out = append(out, expanded)
	}
	return out
}

// JobSpec builds the read-only job specification shared by every worker in a run.
func (c *Config) JobSpec() job.Spec {
	return job.Spec{
		Runtime:      strings.TrimSpace(c.Tool.Runtime),
		ToolPath:     c.ToolPath(),
		FrameworkDir: c.Tool.FrameworkDir,
		APILevel:     c.Tool.APILevel,
		InputRoot:    c.Paths.InputDir,
		OutputDir:    c.Paths.OutputDir,
		Timeout:      time.Duration(c.Tool.TimeoutSeconds) * time.Second,
		KillGrace:    time.Duration(c.Tool.KillGraceSeconds) * time.Second,
		ExtraArgs:    append([]string(nil), c.Tool.ExtraArgs...),
		TailBytes:    c.Tool.OutputTailBytes,
		SkipExisting: c.Workflow.SkipExisting,
	}
}

// EffectiveWorkers clamps the requested worker count to [1, max_workers].
func (c *Config) EffectiveWorkers() int {
	workers := c.Workflow.Workers
	if workers < 1 {
		workers = 1
	}
	if c.Workflow.MaxWorkers > 0 && workers > c.Workflow.MaxWorkers {
		workers = c.Workflow.MaxWorkers
	}
	return workers
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
