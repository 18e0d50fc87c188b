package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/vk/qsubgo/internal/backend"
	"github.com/vk/qsubgo/internal/config"
	"github.com/vk/qsubgo/internal/ctxlog"
	"github.com/vk/qsubgo/internal/dag"
)

// App ties a loaded workflow to a backend instance.
type App struct {
	outW   io.Writer
	inR    io.Reader
	logger *slog.Logger
	config *Config

	workflow *config.Model
	graph    *dag.Graph
	backend  *backend.Backend

	httpServer *http.Server
}

// NewApp loads the workflow, builds its graph and opens the backend. Command
// output goes to outW, logs to logW, and confirmations are read from inR.
// opts are passed through to backend.New after the workflow's own settings.
func NewApp(ctx context.Context, outW, logW io.Writer, inR io.Reader, cfg *Config, loader config.Loader, opts ...backend.Option) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	workflow, err := loader.Load(ctx, cfg.WorkflowPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}
	logger.Debug("Workflow loaded.", "targets", len(workflow.Targets))

	graph, err := dag.Build(ctx, workflow.Targets)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency graph: %w", err)
	}

	backendCfg, err := workflow.BackendConfig()
	if err != nil {
		return nil, err
	}
	allOpts := append([]backend.Option{backend.WithNotifier(workflow.Notifier())}, opts...)
	be, err := backend.New(ctx, backendCfg, allOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to start backend: %w", err)
	}

	return &App{
		outW:     outW,
		inR:      inR,
		logger:   logger,
		config:   cfg,
		workflow: workflow,
		graph:    graph,
		backend:  be,
	}, nil
}

// Run executes the configured command and always closes the backend, so the
// tracker is flushed even when the command fails.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = ctxlog.With(ctxlog.WithLogger(ctx, a.logger), "command", a.config.Command)
	ctxlog.FromContext(ctx).Debug("App.Run method started.")
	defer func() {
		err = errors.Join(err, a.Close())
	}()

	switch a.config.Command {
	case CommandSubmit:
		return a.Submit(ctx, a.config.Targets)
	case CommandStatus:
		return a.Status(ctx, a.config.Targets)
	case CommandCancel:
		return a.Cancel(ctx, a.config.Targets)
	case CommandForget:
		return a.Forget(ctx, a.config.Targets)
	case CommandServe:
		return a.Serve(ctx, a.config.Port)
	default:
		return fmt.Errorf("unknown command %q", a.config.Command)
	}
}

// Close flushes the backend. It is safe to call more than once.
func (a *App) Close() error {
	return a.backend.Close()
}

// Backend exposes the backend, primarily for tests.
func (a *App) Backend() *backend.Backend {
	return a.backend
}
