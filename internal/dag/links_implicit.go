package dag

import (
	"fmt"
	"path/filepath"

	"github.com/vk/qsubgo/internal/model"
)

// ResolvePath makes a declared input or output absolute against the
// target's working directory.
func ResolvePath(t *model.Target, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(t.WorkingDir, p)
}

// linkImplicit adds an edge from the producer of every input file to the
// target that consumes it. Inputs no target produces are left to the caller.
func linkImplicit(g *Graph, targets []*model.Target) error {
	providers, err := Providers(targets)
	if err != nil {
		return err
	}
	for _, t := range targets {
		for _, in := range t.Inputs {
			producer, ok := providers[ResolvePath(t, in)]
			if !ok {
				continue
			}
			if producer == t.Name {
				return fmt.Errorf("target %q lists %s as both input and output", t.Name, in)
			}
			if err := g.AddEdge(producer, t.Name); err != nil {
				return fmt.Errorf("target %q: %w", t.Name, err)
			}
		}
	}
	return nil
}
