package config

const (
	defaultOutputDir          = "output"
	defaultReportDir          = "."
	defaultLogDir             = "~/.local/share/deodexer/logs"
	defaultLogRetentionDays   = 30
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultRuntime            = "java"
	defaultAPILevel           = 29
	defaultMinAPILevel        = 9
	defaultMaxAPILevel        = 34
	defaultToolTimeoutSeconds = 300
	defaultKillGraceSeconds   = 5
	defaultOutputTailBytes    = 8192
	defaultWorkers            = 4
	defaultMaxWorkers         = 8
	defaultMaxDepth           = 64
	defaultHistoryDSN         = "~/.local/share/deodexer/history.db"
	defaultNotifyTimeout      = 10
	defaultNATSSubject        = "deodexer.runs"
	defaultReportFormat       = "json"
)

var defaultExtensions = []string{".odex"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			ReportDir: defaultReportDir,
		},
		Tool: Tool{
			Runtime:          defaultRuntime,
			APILevel:         defaultAPILevel,
			MinAPILevel:      defaultMinAPILevel,
			MaxAPILevel:      defaultMaxAPILevel,
			TimeoutSeconds:   defaultToolTimeoutSeconds,
			KillGraceSeconds: defaultKillGraceSeconds,
			Extensions:       append([]string(nil), defaultExtensions...),
			OutputTailBytes:  defaultOutputTailBytes,
		},
		Workflow: Workflow{
			Workers:    defaultWorkers,
			MaxWorkers: defaultMaxWorkers,
			MaxDepth:   defaultMaxDepth,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Report: Report{
			Formats: []string{defaultReportFormat},
		},
		History: History{
			Enabled: true,
			DSN:     defaultHistoryDSN,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			NATSSubject:    defaultNATSSubject,
		},
	}
}
