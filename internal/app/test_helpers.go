package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/vk/qsubgo/internal/backend"
	"github.com/vk/qsubgo/internal/hcl"
	"github.com/vk/qsubgo/internal/invoker"
)

// SafeBuffer is a thread-safe buffer for capturing output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// SetupAppTest writes workflow into a temporary directory and builds an App
// whose scheduler commands are served by fake. It returns the app, its
// command output and its log output.
func SetupAppTest(t *testing.T, workflow string, cfg Config, fake *invoker.Fake, stdin string) (*App, *SafeBuffer, *SafeBuffer) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.hcl")
	if err := os.WriteFile(path, []byte(workflow), 0o600); err != nil {
		t.Fatalf("write workflow: %v", err)
	}
	cfg.WorkflowPath = path
	cfg.LogLevel = "debug"
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = formatTable
	}

	out, logs := &SafeBuffer{}, &SafeBuffer{}
	a, err := NewApp(context.Background(), out, logs, strings.NewReader(stdin), &cfg, hcl.NewLoader(), backend.WithRunner(fake))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}

	t.Cleanup(func() {
		_ = a.Close()
		if os.Getenv("QSUBGO_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})
	return a, out, logs
}
