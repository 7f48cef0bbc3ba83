// FILE: haystackauth/src/cmd/haystack-auth/commands/router.go
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Process exit codes
const (
	ExitOK             = 0
	ExitGeneral        = 1
	ExitConfigNotFound = 2
	ExitAuthFailed     = 3
)

// ExitError carries the exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps a command error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitGeneral
}

// Handler defines the interface required for all subcommands.
type Handler interface {
	Execute(args []string) error
	Description() string
	Help() string
}

// CommandRouter routes CLI arguments to the matching subcommand.
type CommandRouter struct {
	commands map[string]Handler
}

// NewCommandRouter registers all commands. ctx bounds long-running
// commands such as login.
func NewCommandRouter(ctx context.Context) *CommandRouter {
	router := &CommandRouter{
		commands: make(map[string]Handler),
	}

	router.commands["login"] = NewLoginCommand(ctx)
	router.commands["parse"] = NewParseCommand()
	router.commands["config"] = NewConfigCommand()
	router.commands["version"] = NewVersionCommand()
	router.commands["help"] = NewHelpCommand(router)

	return router
}

// Route executes the subcommand named by args[1]. It reports false when no
// command was given.
func (r *CommandRouter) Route(args []string) (bool, error) {
	if len(args) < 2 {
		return false, nil
	}

	cmdName := args[1]

	switch cmdName {
	case "-h", "--help", "-help":
		return true, r.Help()
	case "-v", "--version", "-version":
		return true, r.commands["version"].Execute(nil)
	}

	handler, exists := r.commands[cmdName]
	if !exists {
		return false, fmt.Errorf("unknown command: %s\n\nRun 'haystack-auth help' for usage", cmdName)
	}

	// Help flag anywhere after a command shows that command's help
	for _, arg := range args[2:] {
		if arg == "-h" || arg == "--help" {
			fmt.Print(handler.Help())
			return true, nil
		}
	}

	return true, handler.Execute(args[2:])
}

// Help prints the general help.
func (r *CommandRouter) Help() error {
	return r.commands["help"].Execute(nil)
}

// GetCommand returns a specific command handler by its name.
func (r *CommandRouter) GetCommand(name string) (Handler, bool) {
	cmd, exists := r.commands[name]
	return cmd, exists
}

// GetCommands returns a map of all registered commands.
func (r *CommandRouter) GetCommands() map[string]Handler {
	return r.commands
}

// ShowCommands displays a list of available subcommands to stderr.
func (r *CommandRouter) ShowCommands() {
	for name, handler := range r.commands {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", name, handler.Description())
	}
	fmt.Fprintln(os.Stderr, "\nUse 'haystack-auth <command> --help' for command-specific help")
}

// coalesceString returns the first non-empty string from a list of arguments.
func coalesceString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// coalesceBool returns true if any of the boolean arguments is true.
func coalesceBool(values ...bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}
