package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApply_FillsUnsetFields(t *testing.T) {
	Version, Commit, Date = "dev", unknown, unknown

	t.Cleanup(func() { Version, Commit, Date = "dev", unknown, unknown })

	apply(&debug.BuildInfo{
		Main: debug.Module{Version: "v1.2.3"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		},
	})

	assert.Equal(t, "v1.2.3 (commit: abc123, built: 2026-01-02T03:04:05Z)", String())
}

func TestApply_KeepsLinkerValues(t *testing.T) {
	Version, Commit, Date = "v9.0.0", "fixed", unknown

	t.Cleanup(func() { Version, Commit, Date = "dev", unknown, unknown })

	apply(&debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abc123"}},
	})

	assert.Equal(t, "v9.0.0", Version)
	assert.Equal(t, "fixed", Commit)
	assert.Equal(t, unknown, Date)
}
