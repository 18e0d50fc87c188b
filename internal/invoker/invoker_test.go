package invoker

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("missing sh")
	}
}

func TestExecRunnerMissingExecutable(t *testing.T) {
	r := NewExecRunner(time.Second)
	r.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }

	_, err := r.Run(context.Background(), "qstat", []string{"-f", "-xml"}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBackendUnavailable))
	assert.ErrorContains(t, err, `"qstat"`)
	assert.ErrorContains(t, err, "Sun Grid Engine")
}

func TestExecRunnerFeedsStdin(t *testing.T) {
	requireShell(t)
	r := NewExecRunner(5 * time.Second)

	out, err := r.Run(context.Background(), "sh", []string{"-c", "cat"}, "#!/bin/bash\necho hi\n")
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/bash\necho hi\n", out)
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	requireShell(t)
	r := NewExecRunner(5 * time.Second)

	_, err := r.Run(context.Background(), "sh", []string{"-c", "echo 'denied: no such job' >&2; exit 3"}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExternalCommand))

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Equal(t, "denied: no such job\n", cmdErr.Stderr)
	assert.ErrorContains(t, err, "exited with code 3")
	assert.ErrorContains(t, err, "denied: no such job")
}

func TestExecRunnerTimeout(t *testing.T) {
	requireShell(t)
	r := NewExecRunner(50 * time.Millisecond)

	_, err := r.Run(context.Background(), "sh", []string{"-c", "exec sleep 5"}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExternalCommand))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestFake(t *testing.T) {
	ctx := context.Background()
	f := NewFake().
		On("qsub", Result{Stdout: "1\n"}, Result{Stdout: "2\n"}).
		On("qdel", Result{Err: errors.New("boom")})

	out, err := f.Run(ctx, "qsub", []string{"-terse"}, "script-a")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	out, err = f.Run(ctx, "qsub", []string{"-terse"}, "script-b")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, err = f.Run(ctx, "qsub", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out, "last result repeats")

	_, err = f.Run(ctx, "qdel", []string{"1"}, "")
	assert.EqualError(t, err, "boom")

	_, err = f.Run(ctx, "qstat", nil, "")
	assert.True(t, errors.Is(err, ErrBackendUnavailable))

	calls := f.CallsTo("qsub")
	require.Len(t, calls, 3)
	assert.Equal(t, "script-b", calls[1].Stdin)
	assert.Len(t, f.CallsTo("qdel"), 1)
	assert.Len(t, f.CallsTo("qstat"), 1)
}
