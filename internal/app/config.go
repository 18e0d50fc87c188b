package app

import (
	"errors"
	"fmt"
)

const (
	CommandSubmit = "submit"
	CommandStatus = "status"
	CommandCancel = "cancel"
	CommandForget = "forget"
	CommandServe  = "serve"
)

// Config holds everything an App needs to run one command.
type Config struct {
	WorkflowPath string

	LogFormat    string
	LogLevel     string
	OutputFormat string
	Port         int
	// AssumeYes skips the confirmation prompt of cancel.
	AssumeYes bool

	Command string
	Targets []string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.WorkflowPath == "" {
		return nil, errors.New("WorkflowPath is a required configuration field and cannot be empty")
	}
	switch cfg.Command {
	case CommandSubmit, CommandStatus, CommandCancel, CommandServe:
	case CommandForget:
		if len(cfg.Targets) == 0 {
			return nil, errors.New("forget requires at least one target name")
		}
	default:
		return nil, fmt.Errorf("unknown command %q", cfg.Command)
	}
	switch cfg.OutputFormat {
	case "", formatTable, formatJSON, formatYAML:
	default:
		return nil, fmt.Errorf("invalid format %q: must be 'table', 'json' or 'yaml'", cfg.OutputFormat)
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = formatTable
	}
	if cfg.Command == CommandServe && (cfg.Port <= 0 || cfg.Port > 65535) {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	return &cfg, nil
}
