// Package linemetrics records line counts per file and per project.
package linemetrics

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/scrutinizer/pkg/analyzers/analyze"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/config"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/model"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/textutil"
)

// Name is the configuration key of the analyzer.
const Name = "line_metrics"

// Metric keys.
const (
	MetricLines      = "lines"
	MetricBlankLines = "blank_lines"
	MetricCodeLines  = "code_lines"

	ProjectFiles = "files"
	ProjectLines = "lines"
)

// generatedMarker is the conventional header of generated sources.
const generatedMarker = "DO NOT EDIT"

// generatedHeaderLines bounds how far into a file the marker is searched.
const generatedHeaderLines = 5

// Analyzer counts lines.
type Analyzer struct {
	analyze.Collaborators

	mu        sync.Mutex
	files     int
	lines     int
	languages map[string]int
}

// New returns a line metrics analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Name implements analyze.Analyzer.
func (a *Analyzer) Name() string { return Name }

// DefaultExtensions implements analyze.FileAnalyzer; every file is counted.
func (a *Analyzer) DefaultExtensions() []string { return nil }

// BuildConfig implements analyze.Analyzer.
func (a *Analyzer) BuildConfig(b *config.Builder) {
	b.Global().Bool("skip_binary", "Skip files that look binary.").Default(true)
	b.Global().Bool("skip_vendored", "Skip vendored and third-party files.").Default(true)
	b.Global().Bool("skip_generated", "Skip files whose header marks them as generated.").Default(true)
	b.PerFile().String("language", "Language to record instead of the detected one.").Default("")
}

// Scrutinize implements analyze.Analyzer.
func (a *Analyzer) Scrutinize(ctx context.Context, p *model.Project) error {
	a.mu.Lock()
	a.files, a.lines, a.languages = 0, 0, map[string]int{}
	a.mu.Unlock()

	if err := analyze.TraverseFiles(ctx, p, a, a.Workers()); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	p.SetSimpleValuedMetric(ProjectFiles, float64(a.files))
	p.SetSimpleValuedMetric(ProjectLines, float64(a.lines))

	for lang, lines := range a.languages {
		p.SetSimpleValuedMetric("languages."+lang+".lines", float64(lines))
	}

	a.Logger().InfoContext(ctx, "line_metrics: counted", "files", a.files, "lines", a.lines)

	return nil
}

// AnalyzeFile implements analyze.FileAnalyzer.
func (a *Analyzer) AnalyzeFile(_ context.Context, p *model.Project, f *model.File) error {
	skip, err := a.skipped(p, f)
	if err != nil || skip {
		return err
	}

	stats := textutil.CountLineStats(f.Content())

	for key, value := range map[string]int{
		MetricLines:      stats.Total,
		MetricBlankLines: stats.Blank,
		MetricCodeLines:  stats.Code(),
	} {
		if err := f.Measure(key, float64(value)); err != nil {
			return fmt.Errorf("measure %s: %w", key, err)
		}
	}

	lang, err := config.Value[string](p.FileConfig(f, Name+".language"))
	if err != nil {
		return err
	}

	if lang == "" {
		lang = f.Language()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.files++
	a.lines += stats.Total

	if lang != "" {
		a.languages[lang] += stats.Total
	}

	return nil
}

func (a *Analyzer) skipped(p *model.Project, f *model.File) (bool, error) {
	for _, check := range []struct {
		key  string
		test func(*model.File) bool
	}{
		{"skip_binary", func(f *model.File) bool { return textutil.IsBinary([]byte(f.Content())) }},
		{"skip_vendored", func(f *model.File) bool { return enry.IsVendor(f.Path()) }},
		{"skip_generated", isGenerated},
	} {
		on, err := config.Value[bool](p.GlobalConfig(Name + "." + check.key))
		if err != nil {
			return false, err
		}

		if on && check.test(f) {
			a.Logger().Debug("line_metrics: skipped", "path", f.Path(), "reason", check.key)

			return true, nil
		}
	}

	return false, nil
}

func isGenerated(f *model.File) bool {
	for i, line := range textutil.Lines(f.Content()) {
		if i >= generatedHeaderLines {
			break
		}

		if strings.Contains(line, generatedMarker) {
			return true
		}
	}

	return false
}
