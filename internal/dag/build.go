package dag

import (
	"context"
	"fmt"

	"github.com/vk/qsubgo/internal/ctxlog"
	"github.com/vk/qsubgo/internal/model"
)

// Build creates the graph for targets and rejects cycles.
func Build(ctx context.Context, targets []*model.Target) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	g := New()
	for _, t := range targets {
		g.AddNode(t.Name)
	}

	if err := linkExplicit(g, targets); err != nil {
		return nil, err
	}
	if err := linkImplicit(g, targets); err != nil {
		return nil, err
	}
	if err := g.DetectCycles(); err != nil {
		return nil, err
	}
	logger.Debug("Dependency graph built.", "targets", g.Len())
	return g, nil
}

// Providers maps every output path to the target that produces it.
func Providers(targets []*model.Target) (map[string]string, error) {
	providers := make(map[string]string)
	for _, t := range targets {
		for _, out := range t.Outputs {
			path := ResolvePath(t, out)
			if other, ok := providers[path]; ok && other != t.Name {
				return nil, fmt.Errorf("targets %q and %q both produce %s", other, t.Name, path)
			}
			providers[path] = t.Name
		}
	}
	return providers, nil
}
