// Package backend submits workflow targets to Sun/Open Grid Engine and keeps
// track of the jobs it created.
//
// A Backend reads the scheduler's job table once, when it is constructed, and
// answers Status queries from that snapshot. The target -> job ID map survives
// restarts through the tracker file, which is written by Close.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vk/qsubgo/internal/ctxlog"
	"github.com/vk/qsubgo/internal/invoker"
	"github.com/vk/qsubgo/internal/logmanager"
	"github.com/vk/qsubgo/internal/model"
	"github.com/vk/qsubgo/internal/qstat"
	"github.com/vk/qsubgo/internal/script"
	"github.com/vk/qsubgo/internal/tracker"
)

// Status is the coarse state reported for a target.
type Status = qstat.Status

const (
	Submitted = qstat.Submitted
	Running   = qstat.Running
	Unknown   = qstat.Unknown
)

// Backend is the Grid Engine implementation of a workflow backend. All
// methods are safe for concurrent use.
type Backend struct {
	cfg      Config
	runner   invoker.Runner
	logPaths script.LogPaths
	compiler *script.Compiler
	notifier Notifier
	now      func() time.Time
	logger   *slog.Logger

	mu       sync.Mutex
	tracked  *tracker.Tracker
	snapshot map[string]Status
	closed   bool
}

// New opens the tracker file and takes the initial status snapshot. It fails
// when the scheduler tools are missing or their output cannot be parsed.
func New(ctx context.Context, cfg Config, opts ...Option) (*Backend, error) {
	cfg = cfg.withDefaults()
	b := &Backend{
		cfg:      cfg,
		notifier: nopNotifier{},
		now:      time.Now,
		logger:   ctxlog.FromContext(ctx),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.runner == nil {
		b.runner = invoker.NewExecRunner(cfg.CommandTimeout)
	}
	if b.logPaths == nil {
		b.logPaths = logmanager.New(cfg.LogDir)
	}
	if b.compiler == nil {
		b.compiler = &script.Compiler{
			ParallelEnvironment: cfg.ParallelEnvironment,
			LogPaths:            b.logPaths,
		}
	} else if b.compiler.LogPaths == nil {
		c := *b.compiler
		c.LogPaths = b.logPaths
		b.compiler = &c
	}

	tracked, err := tracker.Open(cfg.TrackerPath())
	if err != nil {
		return nil, err
	}
	b.tracked = tracked

	snapshot, err := b.readSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	b.snapshot = snapshot

	ctxlog.FromContext(ctx).Debug("Backend initialized.",
		"tracker", tracked.Path(), "tracked", tracked.Len(), "targets", tracked.Names(), "jobs", len(snapshot))
	return b, nil
}

func (b *Backend) readSnapshot(ctx context.Context) (map[string]Status, error) {
	dump, err := b.runner.Run(ctx, b.cfg.QstatCommand, []string{"-f", "-xml"}, "")
	if err != nil {
		return nil, fmt.Errorf("read job table: %w", err)
	}
	snapshot, err := qstat.Parse(dump, b.cfg.Codes)
	if err != nil {
		var parseErr *qstat.ParseError
		if errors.As(err, &parseErr) {
			ctxlog.FromContext(ctx).Debug("Unparseable qstat output.", "dump", parseErr.Dump)
		}
		return nil, fmt.Errorf("read job table: %w", err)
	}
	return snapshot, nil
}

// Submit compiles target into a job script and submits it with a hold on the
// jobs of deps. Nothing is recorded unless qsub returns a job ID.
func (b *Backend) Submit(ctx context.Context, target *model.Target, deps []*model.Target) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	logger := ctxlog.FromContext(ctx).With("target", target.Name)

	body, err := b.compiler.Compile(target)
	if err != nil {
		return err
	}
	logger.Debug("Compiled job script.", "options", target.OptionKeys(), "bytes", len(body))

	holds := make([]string, 0, len(deps))
	for _, dep := range deps {
		id, err := b.tracked.Get(dep.Name)
		if err != nil {
			return &TargetError{Target: dep.Name, Kind: ErrUnknownDependency, Err: err}
		}
		holds = append(holds, id)
	}

	if ensurer, ok := b.logPaths.(interface{ Ensure() error }); ok {
		if err := ensurer.Ensure(); err != nil {
			return err
		}
	}

	args := []string{"-terse"}
	if len(holds) > 0 {
		args = append(args, "-hold_jid", strings.Join(holds, ","))
	}
	out, err := b.runner.Run(ctx, b.cfg.QsubCommand, args, body)
	if err != nil {
		return fmt.Errorf("submit %s: %w", target.Name, err)
	}
	jobID := strings.TrimSpace(out)
	if jobID == "" {
		return fmt.Errorf("submit %s: %w", target.Name, invoker.Failf(b.cfg.QsubCommand, "returned no job id"))
	}

	b.tracked.Set(target.Name, jobID)
	b.snapshot[jobID] = Submitted
	logger.Debug("Submitted job.", "job_id", jobID, "holds", holds)

	b.notify(ctx, EventSubmitted, target.Name, jobID)
	return nil
}

// Status reports the state of the job tracked for name. Untracked targets and
// jobs the scheduler no longer lists are Unknown.
func (b *Backend) Status(name string) Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statusLocked(name)
}

func (b *Backend) statusLocked(name string) Status {
	id, err := b.tracked.Get(name)
	if err != nil {
		return Unknown
	}
	status, ok := b.snapshot[id]
	if !ok {
		return Unknown
	}
	return status
}

// Cancel deletes the job of name and forgets it. Every failure, including a
// target that was never submitted, is reported as ErrUnknownTarget with the
// cause kept in the chain.
func (b *Backend) Cancel(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	id, err := b.tracked.Get(name)
	if err != nil {
		return &TargetError{Target: name, Kind: ErrUnknownTarget, Err: err}
	}
	if _, err := b.runner.Run(ctx, b.cfg.QdelCommand, []string{id}, ""); err != nil {
		return &TargetError{Target: name, Kind: ErrUnknownTarget, Err: err}
	}
	ctxlog.FromContext(ctx).Debug("Deleted job.", "target", name, "job_id", id)

	if err := b.forgetLocked(name); err != nil {
		return err
	}
	b.notify(ctx, EventCancelled, name, id)
	return nil
}

// ForgetJob drops the tracked job of name without touching the scheduler.
func (b *Backend) ForgetJob(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	id, _ := b.tracked.Get(name)
	if err := b.forgetLocked(name); err != nil {
		return err
	}
	b.notify(ctx, EventForgotten, name, id)
	return nil
}

func (b *Backend) forgetLocked(name string) error {
	id, err := b.tracked.Get(name)
	if err != nil {
		return fmt.Errorf("forget: %w", err)
	}
	delete(b.snapshot, id)
	return b.tracked.Remove(name)
}

// Refresh re-reads the scheduler's job table. On failure the previous
// snapshot stays in place.
func (b *Backend) Refresh(ctx context.Context) error {
	snapshot, err := b.readSnapshot(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshot = snapshot
	ctxlog.FromContext(ctx).Debug("Status snapshot refreshed.", "jobs", len(snapshot))
	return nil
}

// JobID returns the job recorded for name.
func (b *Backend) JobID(name string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, err := b.tracked.Get(name)
	return id, err == nil
}

// Tracked returns a copy of the target -> job ID map.
func (b *Backend) Tracked() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tracked.Snapshot()
}

// Close persists the tracker. A failed flush leaves the backend open so
// Close can be retried; after a successful one, further calls do nothing.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}

	if err := b.tracked.Flush(); err != nil {
		return err
	}
	b.closed = true
	if closer, ok := b.notifier.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			b.logger.Debug("Closing notifier failed.", "error", err)
		}
	}
	return nil
}

func (b *Backend) notify(ctx context.Context, typ EventType, name, jobID string) {
	ev := Event{Type: typ, Target: name, JobID: jobID, At: b.now().UTC()}
	if err := b.notifier.Notify(ctx, ev); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to publish event.", "event", typ, "target", name, "error", err)
	}
}
