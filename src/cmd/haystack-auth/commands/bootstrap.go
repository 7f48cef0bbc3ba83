// FILE: haystackauth/src/cmd/haystack-auth/commands/bootstrap.go
package commands

import (
	"fmt"
	"os"
	"strings"

	"haystackauth/src/internal/config"

	"github.com/lixenwraith/log"
)

// initializeLogger builds the client logger from the logging section.
// Quiet mode disables all log output.
func initializeLogger(cfg *config.LogConfig, quiet bool) (*log.Logger, error) {
	if cfg == nil {
		cfg = config.DefaultLogConfig()
	}

	logCfg := log.DefaultConfig()

	level, err := parseLogLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	logCfg.Level = level

	output := cfg.Output
	if quiet {
		output = "none"
	}

	switch output {
	case "none":
		logCfg.DisableFile = true
		logCfg.EnableConsole = false
	case "stdout", "stderr":
		logCfg.DisableFile = true
		logCfg.EnableConsole = true
		logCfg.ConsoleTarget = output
	case "file", "both":
		logCfg.DisableFile = false
		logCfg.EnableConsole = output == "both"
		logCfg.ConsoleTarget = consoleTarget(cfg)
		if cfg.File != nil {
			logCfg.Directory = cfg.File.Directory
			logCfg.Name = cfg.File.Name
		}
	default:
		return nil, fmt.Errorf("invalid log output mode: %s", cfg.Output)
	}

	// ApplyConfig creates Directory even with file output off
	if logCfg.DisableFile {
		logCfg.Directory = os.TempDir()
	}

	if cfg.Console != nil && cfg.Console.Format != "" {
		logCfg.Format = cfg.Console.Format
	}

	logger := log.NewLogger()
	if err := logger.ApplyConfig(logCfg); err != nil {
		return nil, fmt.Errorf("failed to configure logger: %w", err)
	}
	if err := logger.Start(); err != nil {
		return nil, fmt.Errorf("failed to start logger: %w", err)
	}
	return logger, nil
}

func consoleTarget(cfg *config.LogConfig) string {
	if cfg.Console != nil && cfg.Console.Target != "" {
		return cfg.Console.Target
	}
	return "stderr"
}

func parseLogLevel(level string) (int64, error) {
	switch strings.ToLower(level) {
	case "debug":
		return log.LevelDebug, nil
	case "info", "":
		return log.LevelInfo, nil
	case "warn", "warning":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", level)
	}
}
