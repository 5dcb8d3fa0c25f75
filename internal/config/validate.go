package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var supportedReportFormats = []string{"json", "csv", "yaml"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTool(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateReport(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

// ValidateRun checks the settings a deodex run needs once CLI flags have been
// applied on top of the loaded file.
func (c *Config) ValidateRun() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Paths.InputDir) == "" {
		return errors.New("paths.input_dir must be set (use --input or edit the config file)")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.InputDir == c.Paths.OutputDir {
		return errors.New("paths.output_dir must differ from paths.input_dir")
	}
	return nil
}

func (c *Config) validateTool() error {
	if err := ensurePositiveMap(map[string]int{
		"tool.timeout_seconds":   c.Tool.TimeoutSeconds,
		"tool.min_api_level":     c.Tool.MinAPILevel,
		"tool.max_api_level":     c.Tool.MaxAPILevel,
		"tool.output_tail_bytes": c.Tool.OutputTailBytes,
	}); err != nil {
		return err
	}
	if c.Tool.MinAPILevel > c.Tool.MaxAPILevel {
		return errors.New("tool.min_api_level must not exceed tool.max_api_level")
	}
	if c.Tool.APILevel < c.Tool.MinAPILevel || c.Tool.APILevel > c.Tool.MaxAPILevel {
		return fmt.Errorf("tool.api_level %d outside supported range %d-%d", c.Tool.APILevel, c.Tool.MinAPILevel, c.Tool.MaxAPILevel)
	}
	if len(c.Tool.Extensions) == 0 {
		return errors.New("tool.extensions must include at least one extension")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.Workers <= 0 {
		return errors.New("workflow.workers must be positive")
	}
	if c.Workflow.MaxWorkers <= 0 {
		return errors.New("workflow.max_workers must be positive")
	}
	if c.Workflow.MaxDepth <= 0 {
		return errors.New("workflow.max_depth must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateReport() error {
	for _, format := range c.Report.Formats {
		if !slices.Contains(supportedReportFormats, format) {
			return fmt.Errorf("report.formats: unsupported format %q (want json, csv, or yaml)", format)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if c.Notifications.NATSURL != "" && c.Notifications.NATSSubject == "" {
		return errors.New("notifications.nats_subject must be set when notifications.nats_url is set")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
