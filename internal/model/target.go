// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the Target struct and its ordered option list.
//
// Why an ordered option list?
//
// Go maps iterate in random order. The job script emits one directive per
// option, and two compilations of the same target must produce identical
// text, so the order the user wrote the options in is the order they are
// rendered in.
package model

import (
	"github.com/zclconf/go-cty/cty"
)

// Option is a single named resource request attached to a target.
type Option struct {
	Key   string
	Value cty.Value
}

// Target is a unit of work submitted to the scheduler as one job.
type Target struct {
	Name       string
	Options    []Option
	WorkingDir string
	// Spec is the verbatim shell body of the job.
	Spec      string
	Inputs    []string
	Outputs   []string
	DependsOn []string
	// Source is where the target was declared. Nil for targets built in code.
	Source *FSInfo
}

// Option returns the value set for key, if any.
func (t *Target) Option(key string) (cty.Value, bool) {
	for _, opt := range t.Options {
		if opt.Key == key {
			return opt.Value, true
		}
	}
	return cty.NilVal, false
}

// OptionKeys returns the option keys in insertion order.
func (t *Target) OptionKeys() []string {
	keys := make([]string, 0, len(t.Options))
	for _, opt := range t.Options {
		keys = append(keys, opt.Key)
	}
	return keys
}

// String builds a string-valued option.
func String(key, value string) Option {
	return Option{Key: key, Value: cty.StringVal(value)}
}

// Number builds a number-valued option.
func Number(key string, value int64) Option {
	return Option{Key: key, Value: cty.NumberIntVal(value)}
}
