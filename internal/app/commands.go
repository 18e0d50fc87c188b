package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/vk/qsubgo/internal/backend"
	"github.com/vk/qsubgo/internal/ctxlog"
	"github.com/vk/qsubgo/internal/dag"
	"github.com/vk/qsubgo/internal/fsutil"
	"github.com/vk/qsubgo/internal/model"
)

// ErrAborted is returned when the user declines a confirmation prompt.
var ErrAborted = errors.New("aborted")

// StatusCompleted is reported for targets that have no live job and whose
// outputs are up to date.
const StatusCompleted = "COMPLETED"

func (a *App) target(name string) (*model.Target, error) {
	t, ok := a.workflow.Target(name)
	if !ok {
		return nil, fmt.Errorf("target %q is not defined in the workflow", name)
	}
	return t, nil
}

func live(s backend.Status) bool {
	return s == backend.Submitted || s == backend.Running
}

// upToDate reports whether every output of t exists and none is older than an
// existing input. Targets without outputs are never up to date.
func upToDate(t *model.Target) bool {
	if len(t.Outputs) == 0 {
		return false
	}
	outputs := resolveAll(t, t.Outputs)
	outTimes, err := fsutil.ModTimes(outputs)
	if err != nil || len(outTimes) != len(outputs) {
		return false
	}
	var oldestOutput time.Time
	for _, mt := range outTimes {
		if oldestOutput.IsZero() || mt.Before(oldestOutput) {
			oldestOutput = mt
		}
	}
	inTimes, err := fsutil.ModTimes(resolveAll(t, t.Inputs))
	if err != nil {
		return false
	}
	for _, mt := range inTimes {
		if mt.After(oldestOutput) {
			return false
		}
	}
	return true
}

func resolveAll(t *model.Target, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, dag.ResolvePath(t, p))
	}
	return out
}

// Submit submits names and everything upstream of them, in dependency order.
// Targets with a live job are skipped, as are up-to-date targets whose
// dependencies are not being rerun.
func (a *App) Submit(ctx context.Context, names []string) error {
	logger := ctxlog.FromContext(ctx)
	for _, name := range names {
		if _, err := a.target(name); err != nil {
			return err
		}
	}
	order, err := a.graph.Upstream(names...)
	if err != nil {
		return err
	}
	providers, err := dag.Providers(a.workflow.Targets)
	if err != nil {
		return err
	}

	// pending holds targets that have, or will soon have, a live job.
	pending := make(map[string]bool)
	submitted := 0
	for _, name := range order {
		t, err := a.target(name)
		if err != nil {
			return err
		}
		deps, err := a.graph.Dependencies(name)
		if err != nil {
			return err
		}

		if live(a.backend.Status(name)) {
			logger.Debug("Target already has a live job.", "target", name)
			pending[name] = true
			continue
		}

		var holds []*model.Target
		for _, dep := range deps {
			if pending[dep] {
				d, _ := a.target(dep)
				holds = append(holds, d)
			}
		}
		if len(holds) == 0 && upToDate(t) {
			logger.Debug("Target is up to date.", "target", name)
			continue
		}
		for _, in := range t.Inputs {
			path := dag.ResolvePath(t, in)
			if _, ok := providers[path]; ok {
				continue
			}
			if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("target %q: input %s does not exist and no target produces it", name, path)
			}
		}

		fmt.Fprintf(a.outW, "Submitting target %s.\n", name)
		if err := a.backend.Submit(ctx, t, holds); err != nil {
			return fmt.Errorf("failed to submit target %q: %w", name, err)
		}
		pending[name] = true
		submitted++
		jobID, _ := a.backend.JobID(name)
		logger.Info("Target submitted.", "target", name, "job_id", jobID, "holds", len(holds))
	}

	logger.Info("Submission finished.", "submitted", submitted, "considered", len(order))
	return nil
}

// rows builds status rows for names, or for every workflow target.
func (a *App) rows(names []string) ([]Row, error) {
	if len(names) == 0 {
		names = a.workflow.Names()
	}
	rows := make([]Row, 0, len(names))
	for _, name := range names {
		t, err := a.target(name)
		if err != nil {
			return nil, err
		}
		rows = append(rows, a.row(t))
	}
	return rows, nil
}

func (a *App) row(t *model.Target) Row {
	status := a.backend.Status(t.Name)
	jobID, _ := a.backend.JobID(t.Name)
	r := Row{Target: t.Name, JobID: jobID, Status: status.String()}
	if !live(status) && upToDate(t) {
		r.Status = StatusCompleted
	}
	return r
}

// Status prints one row per target.
func (a *App) Status(ctx context.Context, names []string) error {
	rows, err := a.rows(names)
	if err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("Rendering status.", "rows", len(rows), "format", a.config.OutputFormat)
	return render(a.outW, a.config.OutputFormat, rows)
}

// Cancel cancels names. With no names it asks for confirmation and cancels
// every workflow target with a tracked job.
func (a *App) Cancel(ctx context.Context, names []string) error {
	logger := ctxlog.FromContext(ctx)

	if len(names) == 0 {
		if !a.config.AssumeYes {
			if !a.confirm("This will cancel all targets! Do you want to continue?") {
				return ErrAborted
			}
		}
		for _, name := range a.workflow.Names() {
			if _, tracked := a.backend.JobID(name); tracked {
				names = append(names, name)
			}
		}
	}

	var cancelled []string
	for _, name := range names {
		if _, err := a.target(name); err != nil {
			return err
		}
		fmt.Fprintf(a.outW, "Cancelling target %s.\n", name)
		if err := a.backend.Cancel(ctx, name); err != nil {
			if errors.Is(err, backend.ErrUnknownTarget) {
				logger.Warn("Target could not be cancelled.", "target", name, "error", err)
				continue
			}
			return err
		}
		cancelled = append(cancelled, name)
	}
	a.warnLiveDependents(ctx, cancelled)
	return nil
}

// warnLiveDependents logs dependents of cancelled targets that still have a
// live job. Grid Engine releases a hold when the job it waits on is deleted,
// so those jobs may start without their inputs.
func (a *App) warnLiveDependents(ctx context.Context, cancelled []string) {
	logger := ctxlog.FromContext(ctx)
	for _, name := range cancelled {
		dependents, err := a.graph.Dependents(name)
		if err != nil {
			continue
		}
		for _, dep := range dependents {
			if live(a.backend.Status(dep)) {
				logger.Warn("Dependent target is still live after its dependency was cancelled.",
					"target", dep, "cancelled", name)
			}
		}
	}
}

// Forget drops the tracked jobs of names without cancelling them.
func (a *App) Forget(ctx context.Context, names []string) error {
	for _, name := range names {
		if _, err := a.target(name); err != nil {
			return err
		}
		if err := a.backend.ForgetJob(ctx, name); err != nil {
			return err
		}
		fmt.Fprintf(a.outW, "Forgot target %s.\n", name)
	}
	return nil
}

// confirm asks a yes/no question; anything but y or yes, including EOF, is no.
func (a *App) confirm(question string) bool {
	fmt.Fprintf(a.outW, "%s [y/N]: ", question)
	if a.inR == nil {
		return false
	}
	line, _ := bufio.NewReader(a.inR).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
