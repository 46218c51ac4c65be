// Package processtest provides a scripted process.Executor for tests.
package processtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Sumatoshi-tech/scrutinizer/pkg/process"
)

// Call records one Execute invocation.
type Call struct {
	Command process.Command
	Options process.Options
}

// Handler computes the outcome of a scripted command.
type Handler func(ctx context.Context, cmd process.Command, opts process.Options) (process.Result, error)

type rule struct {
	match   func(process.Command) bool
	handler Handler
}

// Executor answers commands from registered rules. The first matching rule
// wins; unmatched commands fail.
type Executor struct {
	mu    sync.Mutex
	rules []rule
	calls []Call
}

// New returns an empty Executor.
func New() *Executor {
	return &Executor{}
}

// On registers handler for commands whose rendered form contains substr.
func (e *Executor) On(substr string, handler Handler) *Executor {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rules = append(e.rules, rule{
		match:   func(c process.Command) bool { return strings.Contains(c.String(), substr) },
		handler: handler,
	})

	return e
}

// Reply registers a fixed result for commands containing substr.
func (e *Executor) Reply(substr string, exitCode int, stdout, stderr string) *Executor {
	return e.On(substr, func(_ context.Context, cmd process.Command, _ process.Options) (process.Result, error) {
		return process.Result{Command: cmd.String(), ExitCode: exitCode, Stdout: stdout, Stderr: stderr}, nil
	})
}

// Fail registers an execution error for commands containing substr.
func (e *Executor) Fail(substr string, err error) *Executor {
	return e.On(substr, func(_ context.Context, cmd process.Command, _ process.Options) (process.Result, error) {
		return process.Result{Command: cmd.String(), ExitCode: -1}, err
	})
}

// Execute implements process.Executor.
func (e *Executor) Execute(ctx context.Context, cmd process.Command, opts process.Options) (process.Result, error) {
	e.mu.Lock()
	e.calls = append(e.calls, Call{Command: cmd, Options: opts})

	var handler Handler

	for _, r := range e.rules {
		if r.match(cmd) {
			handler = r.handler

			break
		}
	}
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return process.Result{Command: cmd.String(), ExitCode: -1}, err
	}

	if handler == nil {
		return process.Result{Command: cmd.String(), ExitCode: -1},
			fmt.Errorf("processtest: no rule for %q: %w", cmd.String(), process.ErrToolFailure)
	}

	return handler(ctx, cmd, opts)
}

// Calls returns the recorded invocations in order.
func (e *Executor) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]Call(nil), e.calls...)
}

// Commands returns the rendered form of every recorded invocation.
func (e *Executor) Commands() []string {
	calls := e.Calls()
	out := make([]string, len(calls))

	for i, c := range calls {
		out[i] = c.Command.String()
	}

	return out
}
