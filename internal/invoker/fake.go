package invoker

import (
	"context"
	"sync"
)

// Call records one invocation seen by a Fake.
type Call struct {
	Name  string
	Args  []string
	Stdin string
}

// Result is a scripted response for a Fake.
type Result struct {
	Stdout string
	Err    error
}

// Fake is a scripted Runner for tests. Results are queued per executable
// name and consumed in order; the last queued result repeats once the queue
// is drained. Executables with nothing queued behave as if not installed.
type Fake struct {
	mu      sync.Mutex
	calls   []Call
	scripts map[string][]Result
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{scripts: map[string][]Result{}}
}

// On queues results for the named executable and returns the Fake for chaining.
func (f *Fake) On(name string, results ...Result) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[name] = append(f.scripts[name], results...)
	return f
}

// Run implements Runner.
func (f *Fake) Run(ctx context.Context, name string, args []string, stdin string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Name: name, Args: append([]string(nil), args...), Stdin: stdin})
	if err := ctx.Err(); err != nil {
		return "", &CommandError{Command: name, ExitCode: -1, Err: err}
	}
	queue := f.scripts[name]
	if len(queue) == 0 {
		return "", unavailable(name)
	}
	res := queue[0]
	if len(queue) > 1 {
		f.scripts[name] = queue[1:]
	}
	return res.Stdout, res.Err
}

// CallsTo returns the invocations of a single executable.
func (f *Fake) CallsTo(name string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

var _ Runner = (*Fake)(nil)
