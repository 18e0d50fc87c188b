package dag

import (
	"fmt"

	"github.com/vk/qsubgo/internal/model"
)

// linkExplicit adds an edge for every name in a target's depends_on list.
func linkExplicit(g *Graph, targets []*model.Target) error {
	for _, t := range targets {
		for _, dep := range t.DependsOn {
			if !g.Has(dep) {
				return fmt.Errorf("target %q depends on undefined target %q", t.Name, dep)
			}
			if err := g.AddEdge(dep, t.Name); err != nil {
				return fmt.Errorf("target %q: %w", t.Name, err)
			}
		}
	}
	return nil
}
