// Package logmanager decides where scheduler jobs write their output.
package logmanager

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileLogManager keeps one stdout and one stderr file per target in Dir.
type FileLogManager struct {
	Dir string
}

func New(dir string) *FileLogManager {
	return &FileLogManager{Dir: dir}
}

func (m *FileLogManager) StdoutPath(target string) string {
	return filepath.Join(m.Dir, target+".stdout")
}

func (m *FileLogManager) StderrPath(target string) string {
	return filepath.Join(m.Dir, target+".stderr")
}

// Ensure creates Dir. Grid Engine does not create missing parent
// directories for -o and -e, so this must run before the first submission.
func (m *FileLogManager) Ensure() error {
	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return fmt.Errorf("create log directory %s: %w", m.Dir, err)
	}
	return nil
}
