package process

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu       sync.Mutex
	statuses []string
}

func (o *recordingObserver) ToolInvoked(_ context.Context, _, status string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.statuses = append(o.statuses, status)
}

func TestCommandRendering(t *testing.T) {
	t.Parallel()

	line := Shell("/usr/bin/phpmd src text")
	assert.Equal(t, "phpmd", line.Name())
	assert.Equal(t, "/usr/bin/phpmd src text", line.String())

	argv, err := line.argv()
	require.NoError(t, err)
	assert.Equal(t, []string{"sh", "-c", "/usr/bin/phpmd src text"}, argv)

	direct := Argv("jshint", "--reporter=checkstyle", "a.js")
	assert.Equal(t, "jshint", direct.Name())
	assert.Equal(t, "jshint --reporter=checkstyle a.js", direct.String())

	_, err = Shell("   ").argv()
	require.ErrorIs(t, err, ErrEmptyCommand)
	assert.Empty(t, Command{}.Name())
}

func TestResultCheck(t *testing.T) {
	t.Parallel()

	ok := Result{Command: "tool", ExitCode: 0}
	require.NoError(t, ok.Check())

	two := Result{Command: "tool", ExitCode: 2, Stderr: "boom"}
	require.NoError(t, two.Check(0, 2))

	err := two.Check()

	var exitErr *ExitError

	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.ExitCode)
	require.ErrorIs(t, err, ErrToolFailure)
	assert.Contains(t, err.Error(), "boom")
}

func TestExitErrorTruncatesOutput(t *testing.T) {
	t.Parallel()

	err := &ExitError{Command: "tool", ExitCode: 1, Stdout: strings.Repeat("x", 5000)}

	assert.Less(t, len(err.Error()), 2200)
	assert.True(t, strings.HasSuffix(err.Error(), "..."))
}

func TestLocalCapturesOutput(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	exec := &Local{Observer: obs}

	res, err := exec.Execute(context.Background(), Shell("echo out; echo err 1>&2; exit 3"), Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.Equal(t, []string{StatusNonZero}, obs.statuses)
}

func TestLocalStdinAndEnv(t *testing.T) {
	t.Parallel()

	exec := NewLocal(nil)

	res, err := exec.Execute(context.Background(), Shell(`cat; printf "$GREETING"`), Options{
		Stdin: []byte("in-"),
		Env:   []string{"GREETING=hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "in-hello", res.Stdout)
}

func TestLocalDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	res, err := NewLocal(nil).Execute(context.Background(), Argv("pwd"), Options{Dir: dir})
	require.NoError(t, err)
	assert.Contains(t, res.Stdout, dir)
}

func TestLocalTimeoutKillsProcessGroup(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	exec := &Local{Observer: obs}

	start := time.Now()

	res, err := exec.Execute(context.Background(), Shell("sleep 30 & sleep 30; wait"), Options{Timeout: 200 * time.Millisecond})

	require.ErrorIs(t, err, ErrTimeout)
	require.ErrorIs(t, err, ErrToolFailure)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, -1, res.ExitCode)
	assert.Equal(t, []string{StatusTimeout}, obs.statuses)
}

func TestLocalIdleTimeout(t *testing.T) {
	t.Parallel()

	exec := &Local{}

	_, err := exec.Execute(context.Background(), Shell("echo start; sleep 30"), Options{
		Timeout:     20 * time.Second,
		IdleTimeout: 200 * time.Millisecond,
	})

	require.ErrorIs(t, err, ErrIdleTimeout)
}

func TestLocalIdleTimeoutResetByOutput(t *testing.T) {
	t.Parallel()

	exec := &Local{}

	res, err := exec.Execute(context.Background(),
		Shell("for i in 1 2 3 4 5; do echo $i; sleep 0.1; done"),
		Options{IdleTimeout: 2 * time.Second})

	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n4\n5\n", res.Stdout)
}

func TestLocalDefaultsApply(t *testing.T) {
	t.Parallel()

	exec := &Local{Defaults: Options{Timeout: 200 * time.Millisecond}}

	_, err := exec.Execute(context.Background(), Shell("sleep 30"), Options{})
	require.ErrorIs(t, err, ErrTimeout)
}

func TestLocalCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	obs := &recordingObserver{}

	_, err := (&Local{Observer: obs}).Execute(ctx, Shell("sleep 30"), Options{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{StatusCancelled}, obs.statuses)
}

func TestLocalCancelledBeforeStart(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocal(nil).Execute(ctx, Shell("echo never"), Options{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestLocalMissingExecutable(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}

	_, err := (&Local{Observer: obs}).Execute(context.Background(), Argv("scrutinizer-no-such-tool"), Options{})
	require.Error(t, err)
	assert.Equal(t, []string{StatusError}, obs.statuses)
}

func TestLocalPTY(t *testing.T) {
	t.Parallel()

	res, err := NewLocal(nil).Execute(context.Background(),
		Shell(`if [ -t 1 ]; then echo tty; else echo pipe; fi`),
		Options{PTY: true, Timeout: 10 * time.Second})

	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Stdout, "tty")
}

func TestRetry(t *testing.T) {
	t.Parallel()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		t.Parallel()

		calls := 0

		err := Retry(context.Background(), 3, time.Millisecond, func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}

			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns last error", func(t *testing.T) {
		t.Parallel()

		calls := 0

		err := Retry(context.Background(), 2, time.Millisecond, func(context.Context) error {
			calls++

			return errors.New("attempt")
		})

		require.EqualError(t, err, "attempt")
		assert.Equal(t, 2, calls)
	})

	t.Run("permanent stops immediately", func(t *testing.T) {
		t.Parallel()

		sentinel := errors.New("bad request")
		calls := 0

		err := Retry(context.Background(), 5, time.Millisecond, func(context.Context) error {
			calls++

			return Permanent(sentinel)
		})

		require.ErrorIs(t, err, sentinel)
		assert.Equal(t, 1, calls)
	})

	t.Run("context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())

		err := Retry(ctx, 5, time.Hour, func(context.Context) error {
			cancel()

			return errors.New("transient")
		})

		require.ErrorIs(t, err, context.Canceled)
	})

	assert.NoError(t, Permanent(nil))
}

func TestQuoteAndExpand(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "src/a.js", Quote("src/a.js"))
	assert.Equal(t, "''", Quote(""))
	assert.Equal(t, "'my file.js'", Quote("my file.js"))
	assert.Equal(t, `'it'\''s'`, Quote("it's"))

	got := Expand("phpcs --standard=%standard% %pathname%", map[string]string{
		"pathname": "dir/a b.php",
		"standard": "PSR2",
	})
	assert.Equal(t, "phpcs --standard=PSR2 'dir/a b.php'", got)

	res, err := NewLocal(nil).Execute(context.Background(), Shell(Expand("printf %fmt% %value%", map[string]string{
		"fmt": "%s", "value": "it's $HOME",
	})), Options{})
	require.NoError(t, err)
	assert.Equal(t, "it's $HOME", res.Stdout)
}
