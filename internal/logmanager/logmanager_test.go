package logmanager

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLogManager(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	m := New(dir)

	assert.Equal(t, filepath.Join(dir, "align.stdout"), m.StdoutPath("align"))
	assert.Equal(t, filepath.Join(dir, "align.stderr"), m.StderrPath("align"))

	require.NoError(t, m.Ensure())
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
