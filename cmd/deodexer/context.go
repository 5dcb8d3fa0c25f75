package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"deodexer/internal/config"
)

type commandContext struct {
	configFlag    *string
	logLevelFlag  *string
	logFormatFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag, logFormatFlag *string) *commandContext {
	return &commandContext{
		configFlag:    configFlag,
		logLevelFlag:  logLevelFlag,
		logFormatFlag: logFormatFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(c.configFlagValue())
		if err != nil {
			c.configErr = err
			return
		}
		if level := flagValue(c.logLevelFlag); level != "" {
			cfg.Logging.Level = level
		}
		if format := flagValue(c.logFormatFlag); format != "" {
			cfg.Logging.Format = format
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) configFlagValue() string {
	return flagValue(c.configFlag)
}

func flagValue(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func expandFlagPath(name, value string) (string, error) {
	expanded, err := config.ExpandPath(strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("--%s: %w", name, err)
	}
	return expanded, nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
