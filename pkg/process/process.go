// Package process runs the external tools analyzers delegate to. Runs are
// bounded by a total timeout and an optional idle timeout; a run that
// exceeds either, or whose context is cancelled, has its whole process group
// killed.
package process

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Sentinel errors. ErrTimeout and ErrIdleTimeout match ErrToolFailure under
// errors.Is.
var (
	ErrToolFailure  = errors.New("external tool failed")
	ErrTimeout      = fmt.Errorf("%w: timed out", ErrToolFailure)
	ErrIdleTimeout  = fmt.Errorf("%w: no output within idle timeout", ErrToolFailure)
	ErrEmptyCommand = errors.New("empty command")
)

// Command is either a shell command line or an argument vector.
type Command struct {
	Line string
	Args []string
}

// Shell returns a command run through "sh -c".
func Shell(line string) Command {
	return Command{Line: line}
}

// Argv returns a command executed directly.
func Argv(args ...string) Command {
	return Command{Args: args}
}

// argv returns the argument vector to execute.
func (c Command) argv() ([]string, error) {
	if len(c.Args) > 0 {
		return c.Args, nil
	}

	if strings.TrimSpace(c.Line) == "" {
		return nil, ErrEmptyCommand
	}

	return []string{"sh", "-c", c.Line}, nil
}

// String renders the command for logs and errors.
func (c Command) String() string {
	if len(c.Args) > 0 {
		return strings.Join(c.Args, " ")
	}

	return c.Line
}

// Name returns the executable name, used as the tool label in metrics.
func (c Command) Name() string {
	fields := c.Args
	if len(fields) == 0 {
		fields = strings.Fields(c.Line)
	}

	if len(fields) == 0 {
		return ""
	}

	name := fields[0]
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		name = name[idx+1:]
	}

	return name
}

// Quote returns s as a single POSIX shell word.
func Quote(s string) string {
	if s != "" && strings.Trim(s, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_./=:,+@%") == "" {
		return s
	}

	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Expand replaces each %name% placeholder in template with the shell-quoted
// value from vars.
func Expand(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2) //nolint:mnd // old/new pairs.
	for name, value := range vars {
		pairs = append(pairs, "%"+name+"%", Quote(value))
	}

	return strings.NewReplacer(pairs...).Replace(template)
}

// Options tune a single run. Zero values disable the respective limit.
type Options struct {
	Timeout     time.Duration
	IdleTimeout time.Duration
	Dir         string
	Env         []string
	Stdin       []byte
	// PTY runs the command on a pseudo-terminal. Stderr is merged into
	// Stdout because a terminal has a single output stream.
	PTY bool
}

// Result is the outcome of a run that started and finished.
type Result struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Check returns an *ExitError when the exit code is not allowed. With no
// allowed codes only 0 is accepted.
func (r Result) Check(allowed ...int) error {
	if len(allowed) == 0 {
		allowed = []int{0}
	}

	if slices.Contains(allowed, r.ExitCode) {
		return nil
	}

	return &ExitError{Command: r.Command, ExitCode: r.ExitCode, Stderr: r.Stderr, Stdout: r.Stdout}
}

// ExitError reports an unexpected exit code.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
	Stdout   string
}

// maxErrorOutput bounds how much tool output is quoted in an error message.
const maxErrorOutput = 2048

// Error implements the error interface.
func (e *ExitError) Error() string {
	out := strings.TrimSpace(e.Stderr)
	if out == "" {
		out = strings.TrimSpace(e.Stdout)
	}

	if len(out) > maxErrorOutput {
		out = out[:maxErrorOutput] + "..."
	}

	return fmt.Sprintf("%s: %q exited with code %d: %s", ErrToolFailure, e.Command, e.ExitCode, out)
}

// Unwrap returns ErrToolFailure.
func (e *ExitError) Unwrap() error {
	return ErrToolFailure
}

// Executor runs external commands.
type Executor interface {
	// Execute runs cmd to completion. A non-zero exit code is reported in
	// the Result, not as an error; errors mean the run could not start, was
	// cancelled, or hit a timeout.
	Execute(ctx context.Context, cmd Command, opts Options) (Result, error)
}
