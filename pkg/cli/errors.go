package cli

import (
	"errors"
	"fmt"
)

// Process exit codes.
const (
	ExitOK = 0

	// ExitError means the command could not run: bad flags, unreadable
	// catalog, storage failure.
	ExitError = 1

	// ExitFindings means the command ran but reported problems: lint
	// findings, failing catalog tests, or ambiguous evaluations.
	ExitFindings = 2
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// FindingsError reports that a command completed with Count problems. It
// maps to ExitFindings.
type FindingsError struct {
	Command string
	Count   int
}

func (e *FindingsError) Error() string {
	return fmt.Sprintf("%s: %d problem(s) found", e.Command, e.Count)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// NewFindingsError creates a new FindingsError.
func NewFindingsError(command string, count int) *FindingsError {
	return &FindingsError{Command: command, Count: count}
}

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var fe *FindingsError
	if errors.As(err, &fe) {
		return ExitFindings
	}
	return ExitError
}
