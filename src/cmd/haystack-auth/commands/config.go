// FILE: haystackauth/src/cmd/haystack-auth/commands/config.go
package commands

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"haystackauth/src/internal/config"
)

// ConfigCommand writes and checks configuration files.
type ConfigCommand struct {
	output io.Writer
	errOut io.Writer
}

func NewConfigCommand() *ConfigCommand {
	return &ConfigCommand{
		output: os.Stdout,
		errOut: os.Stderr,
	}
}

func (cc *ConfigCommand) Execute(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(cc.errOut, cc.Help())
		return fmt.Errorf("config subcommand required")
	}

	switch args[0] {
	case "init":
		return cc.init(args[1:])
	case "check":
		return cc.check(args[1:])
	case "path":
		fmt.Fprintln(cc.output, config.GetConfigPath())
		return nil
	default:
		return fmt.Errorf("unknown config subcommand: %s", args[0])
	}
}

// init writes the built-in defaults to a TOML file.
func (cc *ConfigCommand) init(args []string) error {
	cmd := flag.NewFlagSet("config init", flag.ContinueOnError)
	cmd.SetOutput(cc.errOut)

	var (
		out   = cmd.String("o", "", "Output path (default: resolved config path)")
		force = cmd.Bool("force", false, "Overwrite an existing file")
	)
	if err := cmd.Parse(args); err != nil {
		return err
	}

	path := coalesceString(*out, config.GetConfigPath())
	if _, err := os.Stat(path); err == nil && !*force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", path)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := config.Defaults().SaveToFile(path); err != nil {
		return err
	}

	fmt.Fprintf(cc.output, "Wrote default configuration to %s\n", path)
	return nil
}

// check loads the layered configuration and prints the effective values.
func (cc *ConfigCommand) check(args []string) error {
	cmd := flag.NewFlagSet("config check", flag.ContinueOnError)
	cmd.SetOutput(cc.errOut)

	configFile := cmd.String("config", "", "Config file path")
	if err := cmd.Parse(args); err != nil {
		return err
	}

	cfg, path, err := loadConfig(*configFile)
	if err != nil {
		return err
	}

	password := "(not set)"
	if cfg.Target.Password != "" {
		password = "(set)"
	}

	fmt.Fprintf(cc.output, "Configuration OK: %s\n", path)
	fmt.Fprintf(cc.output, "  target.uri                    %s\n", cfg.Target.URI)
	fmt.Fprintf(cc.output, "  target.username               %s\n", cfg.Target.Username)
	fmt.Fprintf(cc.output, "  target.password               %s\n", password)
	fmt.Fprintf(cc.output, "  auth.timeout_ms               %d\n", cfg.Auth.TimeoutMS)
	fmt.Fprintf(cc.output, "  auth.max_attempts             %d\n", cfg.Auth.MaxAttempts)
	fmt.Fprintf(cc.output, "  auth.require_server_signature %t\n", cfg.Auth.RequireServerSignature)
	if cfg.TLS != nil {
		fmt.Fprintf(cc.output, "  tls.reject_unauthorized       %t\n", cfg.TLS.RejectUnauthorized)
	}
	if cfg.Logging != nil {
		fmt.Fprintf(cc.output, "  logging.output                %s\n", cfg.Logging.Output)
		fmt.Fprintf(cc.output, "  logging.level                 %s\n", cfg.Logging.Level)
	}
	return nil
}

func (cc *ConfigCommand) Description() string {
	return "Write or check the configuration file"
}

func (cc *ConfigCommand) Help() string {
	return `Config Command - Manage the haystack-auth configuration file

Usage:
  haystack-auth config init [-o <path>] [-force]   Write the default configuration
  haystack-auth config check [-config <path>]      Load, validate and print the configuration
  haystack-auth config path                        Print the resolved config file path

The password is never written by init.
`
}
