// Package invoker runs the scheduler's command line tools as subprocesses.
//
// It is the single seam between the backend and the host: everything that
// touches qstat, qsub or qdel goes through a Runner, so tests swap in a Fake
// and never need Grid Engine installed.
package invoker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/vk/qsubgo/internal/ctxlog"
)

// DefaultTimeout bounds a single external command when no timeout is configured.
const DefaultTimeout = 2 * time.Minute

// waitDelay caps how long Run waits for output pipes after the process is
// killed, since grandchildren may still hold them open.
const waitDelay = 500 * time.Millisecond

// Runner executes an external command and returns its standard output.
type Runner interface {
	// Run resolves name on the search path, feeds stdin (when non-empty) to
	// the process and returns what it wrote to stdout. A missing executable
	// fails with ErrBackendUnavailable; a non-zero exit or timeout fails
	// with a *CommandError.
	Run(ctx context.Context, name string, args []string, stdin string) (string, error)
}

// ExecRunner is the os/exec implementation of Runner.
type ExecRunner struct {
	// Timeout bounds each invocation. Zero disables the bound.
	Timeout time.Duration

	lookPath func(string) (string, error)
}

// NewExecRunner returns a Runner that executes real processes.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{Timeout: timeout, lookPath: exec.LookPath}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, name string, args []string, stdin string) (string, error) {
	logger := ctxlog.FromContext(ctx).With("command", name)

	lookPath := r.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	path, err := lookPath(name)
	if err != nil {
		logger.Debug("Executable not found on search path.", "error", err)
		return "", unavailable(name)
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	logger.Debug("Running external command.", "args", args, "stdin_bytes", len(stdin))
	started := time.Now()
	runErr := cmd.Run()
	logger.Debug("External command finished.", "duration", time.Since(started), "error", runErr)

	if runErr != nil {
		cmdErr := &CommandError{
			Command:  name,
			Args:     append([]string(nil), args...),
			ExitCode: -1,
			Stderr:   stderr.String(),
			Err:      runErr,
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			cmdErr.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			cmdErr.Err = ctxErr
		}
		return stdout.String(), cmdErr
	}
	return stdout.String(), nil
}

func unavailable(name string) error {
	return fmt.Errorf("%w: could not find executable %q; this backend requires Sun Grid Engine (SGE) to be installed on this host",
		ErrBackendUnavailable, name)
}

var _ Runner = (*ExecRunner)(nil)
