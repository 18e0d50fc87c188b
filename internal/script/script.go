// Package script compiles a workflow target into the bash script submitted
// to Grid Engine on qsub's standard input.
//
// The output is a pure function of the target and the compiler settings:
// options are rendered in the order the target lists them, followed by the
// defaults for every option it left unset.
package script

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/qsubgo/internal/model"
)

const (
	DefaultParallelEnvironment = "smp"
	DefaultGenerator           = "qsubgo"
)

// LogPaths resolves where the scheduler writes a target's output streams.
type LogPaths interface {
	StdoutPath(target string) string
	StderrPath(target string) string
}

// Compiler renders job scripts.
type Compiler struct {
	// ParallelEnvironment is the SGE parallel environment used for -pe.
	ParallelEnvironment string
	LogPaths            LogPaths
	// Generator is written into the provenance comment.
	Generator string
}

func (c *Compiler) parallelEnvironment() string {
	if c.ParallelEnvironment == "" {
		return DefaultParallelEnvironment
	}
	return c.ParallelEnvironment
}

type resolved struct {
	spec      optionSpec
	value     cty.Value
	defaulted bool
}

// resolve validates option keys and appends defaults for unset options.
func (c *Compiler) resolve(target *model.Target) ([]resolved, error) {
	seen := make(map[string]bool, len(target.Options))
	set := make(map[string]bool, len(target.Options))
	out := make([]resolved, 0, len(optionTable))

	for _, opt := range target.Options {
		spec, ok := lookupOption(opt.Key)
		if !ok {
			return nil, &OptionError{
				Target: target.Name,
				Key:    opt.Key,
				Kind:   ErrUnsupportedOption,
				Reason: "supported options are " + strings.Join(SupportedOptions(), ", "),
			}
		}
		if seen[opt.Key] {
			return nil, &OptionError{Target: target.Name, Key: opt.Key, Kind: ErrInvalidOption, Reason: "set more than once"}
		}
		seen[opt.Key] = true
		// null falls back to the default
		if opt.Value.IsNull() {
			continue
		}
		if !opt.Value.IsWhollyKnown() {
			return nil, &OptionError{Target: target.Name, Key: opt.Key, Kind: ErrInvalidOption, Reason: "value is not known"}
		}
		set[opt.Key] = true
		out = append(out, resolved{spec: spec, value: opt.Value})
	}

	for _, spec := range optionTable {
		if set[spec.name] || spec.def.IsNull() {
			continue
		}
		out = append(out, resolved{spec: spec, value: spec.def, defaulted: true})
	}
	return out, nil
}

// coresOf returns the core count memory is split over. Call it after
// resolve, which rejects duplicate keys.
func coresOf(target *model.Target) (int64, error) {
	v, ok := target.Option("cores")
	if !ok || v.IsNull() {
		return 1, nil
	}
	n, err := asCores(v)
	if err != nil {
		return 0, &OptionError{Target: target.Name, Key: "cores", Kind: ErrInvalidOption, Reason: err.Error()}
	}
	return n, nil
}

// Compile renders the job script for target.
func (c *Compiler) Compile(target *model.Target) (string, error) {
	if target == nil {
		return "", fmt.Errorf("compile: nil target")
	}
	if c.LogPaths == nil {
		return "", fmt.Errorf("compile %q: no log paths configured", target.Name)
	}

	opts, err := c.resolve(target)
	if err != nil {
		return "", err
	}
	cores, err := coresOf(target)
	if err != nil {
		return "", err
	}

	generator := c.Generator
	if generator == "" {
		generator = DefaultGenerator
	}

	out := []string{
		"#!/bin/bash",
		"# Generated by: " + generator,
		"#$ -N " + target.Name,
		"#$ -V",
		"#$ -w v",
		"#$ -cwd",
	}

	for _, r := range opts {
		directive, err := r.spec.render(c, optionInput{value: r.value, cores: cores, defaulted: r.defaulted})
		if err != nil {
			return "", &OptionError{Target: target.Name, Key: r.spec.name, Kind: ErrInvalidOption, Reason: err.Error()}
		}
		if directive != "" {
			out = append(out, "#$ "+directive)
		}
	}

	out = append(out,
		"#$ -o "+c.LogPaths.StdoutPath(target.Name),
		"#$ -e "+c.LogPaths.StderrPath(target.Name),
		"",
		"cd "+shellQuote(target.WorkingDir),
		"export QSUBGO_JOBID=$JOB_ID",
		"export QSUBGO_TARGET_NAME="+shellQuote(target.Name),
		"set -e",
		"",
		target.Spec,
	)
	return strings.Join(out, "\n"), nil
}

var shellSafe = regexp.MustCompile(`^[A-Za-z0-9_./:@%+=,-]+$`)

// shellQuote returns s as a single bash word. Words made only of safe
// characters are left as they are.
func shellQuote(s string) string {
	if shellSafe.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
