// FILE: haystackauth/src/cmd/haystack-auth/commands/help.go
package commands

import (
	"fmt"
	"sort"
	"strings"
)

// generalHelpTemplate is shown when no specific command is requested.
const generalHelpTemplate = `haystack-auth: log in to a Project Haystack server and print the bearer headers.

Usage:
  haystack-auth <command> [options]

Commands:
%s

For command-specific help:
  haystack-auth help <command>
  haystack-auth <command> --help

Configuration Sources (Precedence: CLI > Env > File > Defaults):
  - Command flags override all other settings
  - HSAUTH_* environment variables override file settings, e.g.
    HSAUTH_TARGET_URI, HSAUTH_TARGET_USERNAME, HSAUTH_AUTH_TIMEOUT_MS
  - TOML configuration file, located via HSAUTH_CONFIG_FILE,
    HSAUTH_CONFIG_DIR or ~/.config/haystack-auth.toml

Exit codes:
  0  success
  1  general error
  2  config file not found
  3  authentication failed

Examples:
  # Log in and print the Authorization header
  haystack-auth login -uri http://localhost:8080/api/demo -u su

  # Inspect a challenge header
  haystack-auth parse 'SCRAM hash=SHA-256, handshakeToken=aabbcc'
`

// HelpCommand handles the display of general or command-specific help messages.
type HelpCommand struct {
	router *CommandRouter
}

// NewHelpCommand creates a new help command handler.
func NewHelpCommand(router *CommandRouter) *HelpCommand {
	return &HelpCommand{router: router}
}

// Execute displays the appropriate help message based on the provided arguments.
func (c *HelpCommand) Execute(args []string) error {
	if len(args) > 0 && args[0] != "" {
		cmdName := args[0]

		if handler, exists := c.router.GetCommand(cmdName); exists {
			fmt.Print(handler.Help())
			return nil
		}

		return fmt.Errorf("unknown command: %s", cmdName)
	}

	fmt.Printf(generalHelpTemplate, c.formatCommandList())
	return nil
}

func (c *HelpCommand) Description() string {
	return "Display help information"
}

func (c *HelpCommand) Help() string {
	return `Help Command - Display help information

Usage:
  haystack-auth help              Show general help
  haystack-auth help <command>    Show help for a specific command
`
}

// formatCommandList creates an aligned list of all available commands.
func (c *HelpCommand) formatCommandList() string {
	commands := c.router.GetCommands()

	names := make([]string, 0, len(commands))
	maxLen := 0
	for name := range commands {
		names = append(names, name)
		if len(name) > maxLen {
			maxLen = len(name)
		}
	}
	sort.Strings(names)

	var lines []string
	for _, name := range names {
		handler := commands[name]
		padding := strings.Repeat(" ", maxLen-len(name)+2)
		lines = append(lines, fmt.Sprintf("  %s%s%s", name, padding, handler.Description()))
	}

	return strings.Join(lines, "\n")
}
