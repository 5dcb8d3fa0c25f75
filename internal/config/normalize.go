package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// loadDotEnv reads ./.env when present. Variables already set in the process
// environment win over the file.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	_ = godotenv.Load(".env")
}

func (c *Config) normalize() error {
	if err := c.applyEnvOverrides(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTool(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeLogging()
	c.normalizeReport()
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if value, ok := lookupTrimmed("DEODEXER_MAX_WORKERS"); ok {
		workers, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("DEODEXER_MAX_WORKERS: %w", err)
		}
		c.Workflow.Workers = workers
	}
	if value, ok := lookupTrimmed("DEODEXER_LOG_LEVEL"); ok {
		c.Logging.Level = value
	}
	if value, ok := lookupTrimmed("DEODEXER_DB_PATH"); ok {
		c.History.DSN = value
	}
	if value, ok := lookupTrimmed("DEODEXER_TOOL_JAR"); ok {
		c.Tool.JarPath = value
	}
	if value, ok := lookupTrimmed("DEODEXER_FRAMEWORK_DIR"); ok {
		c.Tool.FrameworkDir = value
	}
	return nil
}

func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.InputDir, err = expandPath(strings.TrimSpace(c.Paths.InputDir)); err != nil {
		return fmt.Errorf("paths.input_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ReportDir) == "" {
		c.Paths.ReportDir = defaultReportDir
	}
	if c.Paths.ReportDir, err = expandPath(c.Paths.ReportDir); err != nil {
		return fmt.Errorf("paths.report_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTool() error {
	c.Tool.Runtime = strings.TrimSpace(c.Tool.Runtime)
	var err error
	if c.Tool.JarPath, err = expandPath(strings.TrimSpace(c.Tool.JarPath)); err != nil {
		return fmt.Errorf("tool.jar_path: %w", err)
	}
	if c.Tool.FrameworkDir, err = expandPath(strings.TrimSpace(c.Tool.FrameworkDir)); err != nil {
		return fmt.Errorf("tool.framework_dir: %w", err)
	}
	exts := make([]string, 0, len(c.Tool.Extensions))
	seen := make(map[string]struct{}, len(c.Tool.Extensions))
	for _, ext := range c.Tool.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		exts = append(exts, defaultExtensions...)
	}
	c.Tool.Extensions = exts
	if c.Tool.OutputTailBytes <= 0 {
		c.Tool.OutputTailBytes = defaultOutputTailBytes
	}
	if c.Tool.KillGraceSeconds < 0 {
		c.Tool.KillGraceSeconds = 0
	}
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.MaxWorkers <= 0 {
		c.Workflow.MaxWorkers = defaultMaxWorkers
	}
	if c.Workflow.MaxDepth <= 0 {
		c.Workflow.MaxDepth = defaultMaxDepth
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
		c.Logging.Format = "json"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func (c *Config) normalizeReport() {
	formats := make([]string, 0, len(c.Report.Formats))
	seen := make(map[string]struct{}, len(c.Report.Formats))
	for _, format := range c.Report.Formats {
		format = strings.ToLower(strings.TrimSpace(format))
		if format == "yml" {
			format = "yaml"
		}
		if format == "" {
			continue
		}
		if _, ok := seen[format]; ok {
			continue
		}
		seen[format] = struct{}{}
		formats = append(formats, format)
	}
	c.Report.Formats = formats
}

func (c *Config) normalizeHistory() error {
	c.History.DSN = strings.TrimSpace(c.History.DSN)
	if c.History.DSN == "" {
		c.History.DSN = defaultHistoryDSN
	}
	if IsPostgresDSN(c.History.DSN) {
		return nil
	}
	expanded, err := expandPath(c.History.DSN)
	if err != nil {
		return fmt.Errorf("history.dsn: %w", err)
	}
	c.History.DSN = expanded
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Notifications.NATSURL = strings.TrimSpace(c.Notifications.NATSURL)
	c.Notifications.NATSSubject = strings.TrimSpace(c.Notifications.NATSSubject)
	if c.Notifications.NATSSubject == "" {
		c.Notifications.NATSSubject = defaultNATSSubject
	}
}

// IsPostgresDSN reports whether the history DSN targets PostgreSQL rather than
// a local SQLite file.
func IsPostgresDSN(dsn string) bool {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
}
