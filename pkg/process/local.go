package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "scrutinizer"

	// ptyDrainTimeout bounds how long output is drained from a terminal after
	// the process exited; descendants may keep the terminal open.
	ptyDrainTimeout = 2 * time.Second
)

// Invocation statuses reported to an Observer.
const (
	StatusOK          = "ok"
	StatusNonZero     = "non_zero"
	StatusTimeout     = "timeout"
	StatusIdleTimeout = "idle_timeout"
	StatusCancelled   = "cancelled"
	StatusError       = "error"
)

// Observer is notified after every invocation.
type Observer interface {
	ToolInvoked(ctx context.Context, tool, status string)
}

// Local runs commands on the local host.
type Local struct {
	// Logger receives one debug record per run. Nil means slog.Default().
	Logger *slog.Logger
	// Tracer creates the "scrutinizer.exec" span. Nil means the global tracer.
	Tracer trace.Tracer
	// Observer may be nil.
	Observer Observer
	// Defaults fill zero Timeout and IdleTimeout values of Options.
	Defaults Options
}

// NewLocal returns an executor logging to logger.
func NewLocal(logger *slog.Logger) *Local {
	return &Local{Logger: logger}
}

func (l *Local) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}

	return slog.Default()
}

func (l *Local) tracer() trace.Tracer {
	if l.Tracer != nil {
		return l.Tracer
	}

	return otel.Tracer(tracerName)
}

// Execute implements Executor.
func (l *Local) Execute(ctx context.Context, cmd Command, opts Options) (Result, error) {
	argv, err := cmd.argv()
	if err != nil {
		return Result{}, err
	}

	if opts.Timeout == 0 {
		opts.Timeout = l.Defaults.Timeout
	}

	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = l.Defaults.IdleTimeout
	}

	ctx, span := l.tracer().Start(ctx, "scrutinizer.exec",
		trace.WithAttributes(
			attribute.String("exec.tool", cmd.Name()),
			attribute.Bool("exec.pty", opts.PTY),
		))
	defer span.End()

	start := time.Now()

	res, err := run(ctx, argv, opts)
	res.Command = cmd.String()
	res.Duration = time.Since(start)

	status := statusOf(res, err)

	span.SetAttributes(attribute.Int("exec.exit_code", res.ExitCode), attribute.String("exec.status", status))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)

		err = fmt.Errorf("run %q: %w", cmd.String(), err)
	}

	if l.Observer != nil {
		l.Observer.ToolInvoked(ctx, cmd.Name(), status)
	}

	l.logger().DebugContext(ctx, "process: finished",
		"command", res.Command,
		"exit_code", res.ExitCode,
		"status", status,
		"duration", res.Duration,
	)

	return res, err
}

func statusOf(res Result, err error) string {
	switch {
	case errors.Is(err, ErrIdleTimeout):
		return StatusIdleTimeout
	case errors.Is(err, ErrTimeout):
		return StatusTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCancelled
	case err != nil:
		return StatusError
	case res.ExitCode != 0:
		return StatusNonZero
	default:
		return StatusOK
	}
}

func run(ctx context.Context, argv []string, opts Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{ExitCode: -1}, err
	}

	cmd := exec.Command(argv[0], argv[1:]...) //nolint:gosec // running configured tools is the purpose.
	cmd.Dir = opts.Dir
	cmd.WaitDelay = ptyDrainTimeout

	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	activity := make(chan struct{}, 1)
	stdout := &activityBuffer{signal: activity}
	stderr := &activityBuffer{signal: activity}

	drained, err := start(cmd, opts, stdout, stderr)
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("start %s: %w", argv[0], err)
	}

	waitErr, runErr := supervise(ctx, cmd, opts, activity)

	if drained != nil {
		select {
		case <-drained:
		case <-time.After(ptyDrainTimeout):
		}
	}

	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError

	switch {
	case waitErr == nil:
		res.ExitCode = 0
	case errors.As(waitErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1

		if runErr == nil {
			runErr = fmt.Errorf("wait: %w", waitErr)
		}
	}

	if runErr != nil && res.ExitCode == 0 {
		res.ExitCode = -1
	}

	return res, runErr
}

// start launches cmd. In PTY mode it returns a channel closed once the
// terminal output has been copied.
func start(cmd *exec.Cmd, opts Options, stdout, stderr io.Writer) (<-chan struct{}, error) {
	if !opts.PTY {
		setProcessGroup(cmd)

		cmd.Stdout = stdout
		cmd.Stderr = stderr

		if opts.Stdin != nil {
			cmd.Stdin = bytes.NewReader(opts.Stdin)
		}

		return nil, cmd.Start()
	}

	tty, err := pty.Start(cmd)
	if err != nil {
		return nil, err
	}

	drained := make(chan struct{})

	go func() {
		defer close(drained)
		defer tty.Close()

		// Reading a terminal whose slave side closed fails with EIO on Linux.
		_, _ = io.Copy(stdout, tty)
	}()

	if len(opts.Stdin) > 0 {
		_, _ = tty.Write(opts.Stdin)
	}

	return drained, nil
}

// supervise waits for cmd, killing its process group on timeout, idle
// timeout or cancellation.
func supervise(ctx context.Context, cmd *exec.Cmd, opts Options, activity <-chan struct{}) (waitErr, runErr error) {
	done := make(chan error, 1)

	go func() { done <- cmd.Wait() }()

	var timeoutC, idleC <-chan time.Time

	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()

		timeoutC = timer.C
	}

	var idle *time.Timer

	if opts.IdleTimeout > 0 {
		idle = time.NewTimer(opts.IdleTimeout)
		defer idle.Stop()

		idleC = idle.C
	}

	for {
		select {
		case err := <-done:
			return err, nil
		case <-activity:
			if idle != nil {
				idle.Reset(opts.IdleTimeout)
			}

			continue
		case <-timeoutC:
			runErr = ErrTimeout
		case <-idleC:
			runErr = ErrIdleTimeout
		case <-ctx.Done():
			runErr = ctx.Err()
		}

		killProcessGroup(cmd)

		return <-done, runErr
	}
}

// activityBuffer collects output and signals every write without blocking.
type activityBuffer struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	signal chan<- struct{}
}

func (b *activityBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	n, err := b.buf.Write(p)
	b.mu.Unlock()

	select {
	case b.signal <- struct{}{}:
	default:
	}

	return n, err
}

func (b *activityBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}
