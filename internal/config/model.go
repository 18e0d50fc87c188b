package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/vk/qsubgo/internal/backend"
	"github.com/vk/qsubgo/internal/model"
	"github.com/vk/qsubgo/internal/notify"
	"github.com/vk/qsubgo/internal/qstat"
)

// BackendSGE is the only backend type the workflow file may name.
const BackendSGE = "sge"

// Model is the unified representation of a workflow.
type Model struct {
	// BaseDir is the directory relative paths are resolved against.
	BaseDir string
	Backend *Backend
	// Targets are kept in declaration order.
	Targets []*model.Target
}

// Backend is the format-agnostic `backend` block.
type Backend struct {
	Type                string
	StateDir            string
	LogDir              string
	ParallelEnvironment string
	CommandTimeout      string
	Qstat               string
	Qsub                string
	Qdel                string
	// UnknownCodes and RunningCodes are nil when the workflow keeps the
	// default state code table.
	UnknownCodes *string
	RunningCodes *string
	Notify       *Notify
}

// Notify is the optional `notify` block inside `backend`.
type Notify struct {
	URL                string
	Namespace          string
	Event              string
	InsecureSkipVerify bool
}

// Target returns the target called name.
func (m *Model) Target(name string) (*model.Target, bool) {
	for _, t := range m.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Names returns the target names in declaration order.
func (m *Model) Names() []string {
	names := make([]string, 0, len(m.Targets))
	for _, t := range m.Targets {
		names = append(names, t.Name)
	}
	return names
}

// Finalize fills in defaults, resolves relative paths and validates m.
func (m *Model) Finalize() error {
	m.applyDefaults()
	m.normalize()
	if err := m.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (m *Model) applyDefaults() {
	if m.BaseDir == "" {
		m.BaseDir = "."
	}
	if m.Backend == nil {
		m.Backend = &Backend{Type: BackendSGE}
	}
	if m.Backend.StateDir == "" {
		m.Backend.StateDir = backend.DefaultStateDir
	}
	if m.Backend.CommandTimeout == "" {
		m.Backend.CommandTimeout = "2m"
	}
	for _, t := range m.Targets {
		if t.WorkingDir == "" {
			t.WorkingDir = "."
		}
	}
}

func (m *Model) normalize() {
	m.Backend.Type = strings.TrimSpace(m.Backend.Type)
	m.Backend.StateDir = m.resolve(m.Backend.StateDir)
	if m.Backend.LogDir != "" {
		m.Backend.LogDir = m.resolve(m.Backend.LogDir)
	}
	for _, t := range m.Targets {
		t.WorkingDir = m.resolve(t.WorkingDir)
	}
}

func (m *Model) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	abs, err := filepath.Abs(filepath.Join(m.BaseDir, path))
	if err != nil {
		return filepath.Join(m.BaseDir, path)
	}
	return abs
}

func (m *Model) validate() error {
	if m.Backend.Type != BackendSGE {
		return fmt.Errorf("backend %q is not supported, only %q", m.Backend.Type, BackendSGE)
	}
	d, err := time.ParseDuration(m.Backend.CommandTimeout)
	if err != nil {
		return fmt.Errorf("backend.command_timeout: %w", err)
	}
	if d <= 0 {
		return errors.New("backend.command_timeout must be positive")
	}
	if n := m.Backend.Notify; n != nil && strings.TrimSpace(n.URL) == "" {
		return errors.New("backend.notify.url is required")
	}

	seen := make(map[string]*model.Target, len(m.Targets))
	for _, t := range m.Targets {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("%s: target name must not be empty", t.Source)
		}
		if prev, ok := seen[t.Name]; ok {
			return fmt.Errorf("target %q is defined more than once (%s and %s)", t.Name, prev.Source, t.Source)
		}
		seen[t.Name] = t
		if strings.TrimSpace(t.Spec) == "" {
			return fmt.Errorf("target %q: spec must not be empty", t.Name)
		}
	}
	for _, t := range m.Targets {
		for _, dep := range t.DependsOn {
			if _, ok := seen[dep]; !ok {
				return fmt.Errorf("target %q depends on undefined target %q", t.Name, dep)
			}
		}
	}
	return nil
}

// BackendConfig converts the finalized backend block into backend.Config.
func (m *Model) BackendConfig() (backend.Config, error) {
	b := m.Backend
	if b == nil {
		return backend.Config{}, errors.New("config: model is not finalized")
	}
	timeout, err := time.ParseDuration(b.CommandTimeout)
	if err != nil {
		return backend.Config{}, fmt.Errorf("config: backend.command_timeout: %w", err)
	}

	codes := qstat.DefaultCodes
	if b.UnknownCodes != nil {
		codes.Unknown = *b.UnknownCodes
	}
	if b.RunningCodes != nil {
		codes.Running = *b.RunningCodes
	}

	return backend.Config{
		StateDir:            b.StateDir,
		LogDir:              b.LogDir,
		ParallelEnvironment: b.ParallelEnvironment,
		CommandTimeout:      timeout,
		QstatCommand:        b.Qstat,
		QsubCommand:         b.Qsub,
		QdelCommand:         b.Qdel,
		Codes:               codes,
	}, nil
}

// Notifier builds the notifier described by the backend block.
func (m *Model) Notifier() backend.Notifier {
	if m.Backend == nil || m.Backend.Notify == nil {
		return notify.Nop{}
	}
	n := m.Backend.Notify
	return &notify.SocketIO{
		URL:                n.URL,
		Namespace:          n.Namespace,
		Event:              n.Event,
		InsecureSkipVerify: n.InsecureSkipVerify,
	}
}
