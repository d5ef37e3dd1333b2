package cliemu

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned when the CLI outlives Config.Timeout. The process
// group has been killed and no output is returned.
var ErrTimeout = errors.New("cli timed out")

// ProcessError reports a CLI run that failed without producing usable output.
type ProcessError struct {
	Cause    error
	Message  string
	Stderr   string
	ExitCode int
}

func (e *ProcessError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("cli process: %s (exit code %d)", e.Message, e.ExitCode)
	}
	return fmt.Sprintf("cli process: %s", e.Message)
}

func (e *ProcessError) Unwrap() error {
	return e.Cause
}

// CLINotFoundError indicates the CLI binary could not be located.
type CLINotFoundError struct {
	Cause error
	Path  string
}

func (e *CLINotFoundError) Error() string {
	return fmt.Sprintf("cli binary not found at %q: %v", e.Path, e.Cause)
}

func (e *CLINotFoundError) Unwrap() error {
	return e.Cause
}
