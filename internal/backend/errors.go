package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownDependency is returned by Submit when a dependency has no job.
	ErrUnknownDependency = errors.New("unknown dependency")
	// ErrUnknownTarget is returned by Cancel when the target cannot be cancelled.
	ErrUnknownTarget = errors.New("unknown target")
	// ErrClosed is returned by mutating operations after Close.
	ErrClosed = errors.New("backend is closed")
)

// TargetError names the target an operation failed for. Err, when set, is
// the underlying cause.
type TargetError struct {
	Target string
	Kind   error
	Err    error
}

func (e *TargetError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Target)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Target, e.Err)
}

func (e *TargetError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
