package script

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedOption is returned for option keys the compiler does not know.
	ErrUnsupportedOption = errors.New("unsupported option")
	// ErrInvalidOption is returned for known options with unusable values.
	ErrInvalidOption = errors.New("invalid option")
)

// OptionError describes a single rejected target option.
type OptionError struct {
	Target string
	Key    string
	Kind   error
	Reason string
}

func (e *OptionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("target %q: %s %q", e.Target, e.Kind, e.Key)
	}
	return fmt.Sprintf("target %q: %s %q: %s", e.Target, e.Kind, e.Key, e.Reason)
}

func (e *OptionError) Unwrap() error { return e.Kind }
