package hcl

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/qsubgo/internal/config"
	"github.com/vk/qsubgo/internal/ctxlog"
	"github.com/vk/qsubgo/internal/fsutil"
	"github.com/vk/qsubgo/internal/model"
)

// Loader is the HCL implementation of config.Loader.
type Loader struct{}

func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every .hcl file found under paths and merges their blocks into
// a single finalized model. Targets keep their declaration order across files.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := findHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no workflow files found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	base, err := filepath.Abs(filepath.Dir(files[0]))
	if err != nil {
		return nil, err
	}
	m := &config.Model{BaseDir: base}
	parser := hclparse.NewParser()

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		for _, b := range root.Backends {
			if m.Backend != nil {
				return nil, fmt.Errorf("%s: only one backend block is allowed", file)
			}
			m.Backend = translateBackend(b)
		}
		dir, err := filepath.Abs(filepath.Dir(file))
		if err != nil {
			return nil, err
		}
		for _, tb := range root.Targets {
			t, err := translateTarget(tb, dir)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			t.Source = model.NewFSInfo(file)
			m.Targets = append(m.Targets, t)
		}
	}

	if err := m.Finalize(); err != nil {
		return nil, err
	}
	logger.Debug("HCL loading complete.", "targets", len(m.Targets))
	return m, nil
}

// findHCLFiles returns every .hcl file under paths once. Files inside a
// directory are visited in lexical order.
func findHCLFiles(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			files = append(files, p)
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("workflow file %s does not exist", path)
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}
		found, err := fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			add(p)
		}
	}
	return files, nil
}

var _ config.Loader = (*Loader)(nil)
