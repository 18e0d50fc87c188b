package invoker

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBackendUnavailable means a required scheduler executable is not installed.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrExternalCommand means a scheduler executable ran but did not succeed.
	ErrExternalCommand = errors.New("external command failed")
)

// CommandError describes a failed external command. Stderr is kept verbatim.
type CommandError struct {
	Command  string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", ErrExternalCommand.Error(), e.Command)
	if e.ExitCode >= 0 {
		fmt.Fprintf(&b, " exited with code %d", e.ExitCode)
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if msg := strings.TrimSpace(e.Stderr); msg != "" {
		fmt.Fprintf(&b, ": %s", msg)
	}
	return b.String()
}

// Unwrap exposes both the ErrExternalCommand kind and the underlying cause,
// so callers can match either (for example context.DeadlineExceeded).
func (e *CommandError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExternalCommand}
	}
	return []error{ErrExternalCommand, e.Err}
}

// Failf builds a *CommandError for a command whose output could not be used,
// even though the process itself exited cleanly.
func Failf(command string, format string, args ...any) error {
	return &CommandError{
		Command:  command,
		ExitCode: -1,
		Err:      fmt.Errorf(format, args...),
	}
}
