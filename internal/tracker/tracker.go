// Package tracker persists the mapping from target name to scheduler job ID.
//
// The map is loaded once by Open and written back only by Flush. A Tracker is
// not safe for concurrent use; the backend serializes access to it.
package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileName is the name of the tracker file inside the state directory.
const FileName = "sge-backend-tracked.json"

// ErrUntrackedTarget is returned when a target has no recorded job.
var ErrUntrackedTarget = errors.New("target is not tracked")

// Tracker is a durable target name -> job ID map.
type Tracker struct {
	path string
	jobs map[string]string
}

// Open loads path eagerly. A missing or empty file yields an empty tracker.
func Open(path string) (*Tracker, error) {
	t := &Tracker{path: path, jobs: make(map[string]string)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tracker %s: %w", path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return t, nil
	}
	if err := json.Unmarshal(data, &t.jobs); err != nil {
		return nil, fmt.Errorf("decode tracker %s: %w", path, err)
	}
	if t.jobs == nil {
		// the file held a JSON null
		t.jobs = make(map[string]string)
	}
	return t, nil
}

// Path returns the file the tracker flushes to.
func (t *Tracker) Path() string { return t.path }

// Get returns the job recorded for name, or ErrUntrackedTarget.
func (t *Tracker) Get(name string) (string, error) {
	id, ok := t.jobs[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUntrackedTarget, name)
	}
	return id, nil
}

func (t *Tracker) Set(name, jobID string) {
	t.jobs[name] = jobID
}

// Remove deletes the entry for name.
func (t *Tracker) Remove(name string) error {
	if _, ok := t.jobs[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUntrackedTarget, name)
	}
	delete(t.jobs, name)
	return nil
}

// Snapshot returns a copy of the current map.
func (t *Tracker) Snapshot() map[string]string {
	out := make(map[string]string, len(t.jobs))
	for k, v := range t.jobs {
		out[k] = v
	}
	return out
}

// Names returns the tracked target names in sorted order.
func (t *Tracker) Names() []string {
	names := make([]string, 0, len(t.jobs))
	for name := range t.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t *Tracker) Len() int { return len(t.jobs) }

// Flush writes the map to disk. Readers see either the previous file or the
// new one, never a partial write.
func (t *Tracker) Flush() error {
	data, err := json.MarshalIndent(t.jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tracker: %w", err)
	}
	data = append(data, '\n')
	if err := writeAtomic(t.path, data, 0o644); err != nil {
		return fmt.Errorf("flush tracker %s: %w", t.path, err)
	}
	return nil
}

func writeAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	renamed := false
	defer func() {
		_ = tmp.Close()
		if !renamed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	renamed = true
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
