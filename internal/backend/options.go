package backend

import (
	"time"

	"github.com/vk/qsubgo/internal/invoker"
	"github.com/vk/qsubgo/internal/script"
)

// Option customizes a Backend.
type Option func(*Backend)

// WithRunner replaces the process runner used for qstat, qsub and qdel.
func WithRunner(r invoker.Runner) Option {
	return func(b *Backend) { b.runner = r }
}

// WithLogPaths replaces where job output is written.
func WithLogPaths(p script.LogPaths) Option {
	return func(b *Backend) { b.logPaths = p }
}

// WithCompiler replaces the script compiler. Its LogPaths take precedence
// over WithLogPaths.
func WithCompiler(c *script.Compiler) Option {
	return func(b *Backend) { b.compiler = c }
}

func WithNotifier(n Notifier) Option {
	return func(b *Backend) { b.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}
