package processtest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/scrutinizer/pkg/process"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/process/processtest"
)

func TestExecutorRules(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	exec := processtest.New().
		Reply("jshint", 2, "<checkstyle/>", "").
		Fail("broken", boom)

	res, err := exec.Execute(context.Background(), process.Argv("jshint", "a.js"), process.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ExitCode)
	assert.Equal(t, "<checkstyle/>", res.Stdout)

	_, err = exec.Execute(context.Background(), process.Shell("broken tool"), process.Options{})
	require.ErrorIs(t, err, boom)

	_, err = exec.Execute(context.Background(), process.Shell("unknown"), process.Options{})
	require.ErrorIs(t, err, process.ErrToolFailure)

	assert.Equal(t, []string{"jshint a.js", "broken tool", "unknown"}, exec.Commands())
}

func TestExecutorHonoursCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := processtest.New().Reply("x", 0, "", "").Execute(ctx, process.Shell("x"), process.Options{})
	require.ErrorIs(t, err, context.Canceled)
}
