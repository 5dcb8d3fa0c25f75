package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"deodexer/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The tool runs directly (no runtime) from a stub script that succeeds, and
// the framework directory holds a placeholder framework.jar.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.InputDir = filepath.Join(base, "input")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ReportDir = filepath.Join(base, "reports")
	cfgVal.History.DSN = filepath.Join(base, "history.db")
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.Tool.Runtime = ""
	cfgVal.Tool.TimeoutSeconds = 10
	cfgVal.Tool.KillGraceSeconds = 1
	cfgVal.Tool.FrameworkDir = filepath.Join(base, "framework")

	for _, dir := range []string{cfgVal.Paths.InputDir, cfgVal.Tool.FrameworkDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	WriteFile(t, filepath.Join(cfgVal.Tool.FrameworkDir, "framework.jar"), 16)

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	cfgVal.Tool.JarPath = WriteStubTool(t, filepath.Join(base, "bin"), StubTool{})

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithStubTool replaces the default stub tool.
func WithStubTool(stub StubTool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Tool.JarPath = WriteStubTool(b.t, filepath.Join(b.baseDir, "bin"), stub)
	}
}

// WithWorkers sets the requested worker count.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.Workers = n
	}
}

// WithHistoryDisabled turns off the run history store.
func WithHistoryDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}
