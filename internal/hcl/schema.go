package hcl

import (
	"github.com/hashicorp/hcl/v2"
)

// fileRoot is decoded from every workflow file.
type fileRoot struct {
	Backends []*backendBlock `hcl:"backend,block"`
	Targets  []*targetBlock  `hcl:"target,block"`
}

type backendBlock struct {
	Type                string       `hcl:"type,label"`
	StateDir            string       `hcl:"state_dir,optional"`
	LogDir              string       `hcl:"log_dir,optional"`
	ParallelEnvironment string       `hcl:"parallel_environment,optional"`
	CommandTimeout      string       `hcl:"command_timeout,optional"`
	Qstat               string       `hcl:"qstat,optional"`
	Qsub                string       `hcl:"qsub,optional"`
	Qdel                string       `hcl:"qdel,optional"`
	UnknownCodes        *string      `hcl:"unknown_codes,optional"`
	RunningCodes        *string      `hcl:"running_codes,optional"`
	Notify              *notifyBlock `hcl:"notify,block"`
}

type notifyBlock struct {
	URL                string `hcl:"url"`
	Namespace          string `hcl:"namespace,optional"`
	Event              string `hcl:"event,optional"`
	InsecureSkipVerify bool   `hcl:"insecure_skip_verify,optional"`
}

type targetBlock struct {
	Name       string        `hcl:"name,label"`
	WorkingDir string        `hcl:"working_dir,optional"`
	Inputs     []string      `hcl:"inputs,optional"`
	Outputs    []string      `hcl:"outputs,optional"`
	DependsOn  []string      `hcl:"depends_on,optional"`
	Options    *optionsBlock `hcl:"options,block"`
	Spec       string        `hcl:"spec"`
}

// optionsBlock holds free-form attributes; the script compiler decides which
// keys and value types are acceptable.
type optionsBlock struct {
	Body hcl.Body `hcl:",remain"`
}
