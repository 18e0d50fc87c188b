package hcl

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/qsubgo/internal/config"
	"github.com/vk/qsubgo/internal/model"
)

// translateTarget converts a target block. Relative working directories are
// resolved against dir, the directory of the file the block came from.
func translateTarget(b *targetBlock, dir string) (*model.Target, error) {
	t := &model.Target{
		Name:       b.Name,
		WorkingDir: b.WorkingDir,
		Spec:       b.Spec,
		Inputs:     b.Inputs,
		Outputs:    b.Outputs,
		DependsOn:  b.DependsOn,
	}
	if t.WorkingDir == "" {
		t.WorkingDir = dir
	} else if !filepath.IsAbs(t.WorkingDir) {
		t.WorkingDir = filepath.Join(dir, t.WorkingDir)
	}

	if b.Options != nil && b.Options.Body != nil {
		opts, err := translateOptions(b.Options.Body)
		if err != nil {
			return nil, fmt.Errorf("target %q: %w", b.Name, err)
		}
		t.Options = opts
	}
	return t, nil
}

// translateOptions evaluates every attribute of an options block. Attributes
// are returned in source order so the compiled script is stable.
func translateOptions(body hcl.Body) ([]model.Option, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}

	sorted := make([]*hcl.Attribute, 0, len(attrs))
	for _, attr := range attrs {
		sorted = append(sorted, attr)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Range.Start.Byte < sorted[j].Range.Start.Byte
	})

	opts := make([]model.Option, 0, len(sorted))
	for _, attr := range sorted {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, diags
		}
		opts = append(opts, model.Option{Key: attr.Name, Value: val})
	}
	return opts, nil
}

func translateBackend(b *backendBlock) *config.Backend {
	out := &config.Backend{
		Type:                b.Type,
		StateDir:            b.StateDir,
		LogDir:              b.LogDir,
		ParallelEnvironment: b.ParallelEnvironment,
		CommandTimeout:      b.CommandTimeout,
		Qstat:               b.Qstat,
		Qsub:                b.Qsub,
		Qdel:                b.Qdel,
		UnknownCodes:        b.UnknownCodes,
		RunningCodes:        b.RunningCodes,
	}
	if b.Notify != nil {
		out.Notify = &config.Notify{
			URL:                b.Notify.URL,
			Namespace:          b.Notify.Namespace,
			Event:              b.Notify.Event,
			InsecureSkipVerify: b.Notify.InsecureSkipVerify,
		}
	}
	return out
}
