package linemetrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/scrutinizer/pkg/analyzers/analyze"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/model"
)

func newProject(t *testing.T, raw map[string]any, files map[string]string, order ...string) *model.Project {
	t.Helper()

	reg, err := analyze.NewRegistry(New())
	require.NoError(t, err)

	schema, err := reg.Schema()
	require.NoError(t, err)

	tree, err := schema.Resolve(raw)
	require.NoError(t, err)

	p := model.NewProject("/project")
	for _, path := range order {
		require.NoError(t, p.AddFile(model.NewFile(path, files[path])))
	}

	require.NoError(t, p.SetConfig(tree))

	return p
}

func TestAnalyzer_CountsLines(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"main.go":         "package main\n\nfunc main() {}\n",
		"gen.go":          "// Code generated by stringer. DO NOT EDIT.\npackage main\n",
		"vendor/lib/x.go": "package lib\n",
		"assets/logo.png": "\x89PNG\x00\x00\x00",
		"run.sh":          "#!/bin/sh\n\necho hi\n\n",
		"notes.txt":       "",
	}

	p := newProject(t, map[string]any{Name: true}, files,
		"main.go", "gen.go", "vendor/lib/x.go", "assets/logo.png", "run.sh", "notes.txt")

	a := New()
	require.NoError(t, a.Scrutinize(context.Background(), p))

	main, _ := p.File("main.go")
	assert.Equal(t, map[string]float64{MetricLines: 3, MetricBlankLines: 1, MetricCodeLines: 2}, main.Metrics())

	script, _ := p.File("run.sh")
	assert.Equal(t, map[string]float64{MetricLines: 4, MetricBlankLines: 2, MetricCodeLines: 2}, script.Metrics())

	for _, skipped := range []string{"gen.go", "vendor/lib/x.go", "assets/logo.png"} {
		f, _ := p.File(skipped)
		assert.Empty(t, f.Metrics(), skipped)
	}

	count, ok := p.SimpleValuedMetric(ProjectFiles)
	require.True(t, ok)
	assert.InDelta(t, 3, count, 0)

	lines, ok := p.SimpleValuedMetric(ProjectLines)
	require.True(t, ok)
	assert.InDelta(t, 7, lines, 0)

	goLines, ok := p.SimpleValuedMetric("languages.Go.lines")
	require.True(t, ok)
	assert.InDelta(t, 3, goLines, 0)
}

func TestAnalyzer_SkipsCanBeDisabled(t *testing.T) {
	t.Parallel()

	files := map[string]string{"vendor/lib/x.go": "package lib\n"}
	p := newProject(t, map[string]any{Name: map[string]any{"skip_vendored": false}}, files, "vendor/lib/x.go")

	a := New()
	a.SetWorkers(2)
	require.NoError(t, a.Scrutinize(context.Background(), p))

	f, _ := p.File("vendor/lib/x.go")
	lines, ok := f.Metric(MetricLines)
	require.True(t, ok)
	assert.InDelta(t, 1, lines, 0)
}

func TestAnalyzer_LanguageOverride(t *testing.T) {
	t.Parallel()

	files := map[string]string{"tpl/page.tmpl": "a\nb\n"}
	p := newProject(t, map[string]any{
		Name: map[string]any{
			"path_configs": []any{
				map[string]any{"paths": []any{"tpl/*"}, "config": map[string]any{"language": "Template"}},
			},
		},
	}, files, "tpl/page.tmpl")

	require.NoError(t, New().Scrutinize(context.Background(), p))

	lines, ok := p.SimpleValuedMetric("languages.Template.lines")
	require.True(t, ok)
	assert.InDelta(t, 2, lines, 0)
}
