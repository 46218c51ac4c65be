package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/scrutinizer/pkg/model"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/scrutinizer"
)

const (
	durationPrecision = time.Millisecond
	jsonIndent        = "  "
)

// TextOptions tune the text renderer.
type TextOptions struct {
	NoColor bool
	Patches bool
}

type palette struct {
	path, failed, completed, skipped, heading *color.Color
}

func newPalette(noColor bool) palette {
	p := palette{
		path:      color.New(color.FgCyan, color.Bold),
		failed:    color.New(color.FgRed),
		completed: color.New(color.FgGreen),
		skipped:   color.New(color.FgYellow),
		heading:   color.New(color.Bold),
	}

	if noColor {
		for _, c := range []*color.Color{p.path, p.failed, p.completed, p.skipped, p.heading} {
			c.DisableColor()
		}
	}

	return p
}

func (p palette) state(s scrutinizer.State) string {
	switch s {
	case scrutinizer.StateFailed:
		return p.failed.Sprint(s)
	case scrutinizer.StateCompleted:
		return p.completed.Sprint(s)
	default:
		return p.skipped.Sprint(s)
	}
}

// RenderText writes a human readable summary of the run: comments per file,
// optional patches, project metrics and the analyzer table.
func RenderText(w io.Writer, project *model.Project, report *scrutinizer.Report, opts TextOptions) error {
	pal := newPalette(opts.NoColor)

	files := sortedFiles(project)

	var comments, size int

	for _, f := range files {
		size += len(f.Content())

		if f.HasComments() {
			pal.path.Fprintln(w, f.Path())

			for _, line := range f.CommentLines() {
				for _, c := range f.Comments(line) {
					fmt.Fprintf(w, "  Line %d: %s\n", line, c)

					comments++
				}
			}
		}

		if opts.Patches {
			if patch, ok := f.Patch(); ok {
				fmt.Fprint(w, patch)
			}
		}
	}

	if metrics := project.SimpleValuedMetrics(); len(metrics) > 0 {
		pal.heading.Fprintln(w, "\nProject metrics")
		fmt.Fprintln(w, metricsTable(metrics))
	}

	pal.heading.Fprintln(w, "\nAnalyzers")
	fmt.Fprintln(w, analyzersTable(report, pal))

	failures := report.Failures()

	summary := fmt.Sprintf("%s files (%s), %s comments, %d failures in %s",
		humanize.Comma(int64(len(files))),
		humanize.Bytes(uint64(size)), //nolint:gosec // len is never negative.
		humanize.Comma(int64(comments)),
		len(failures),
		report.Duration.Round(durationPrecision),
	)

	if len(failures) > 0 {
		pal.failed.Fprintln(w, summary)

		for _, f := range failures {
			fmt.Fprintf(w, "  - %s\n", f.Error())
		}

		return nil
	}

	pal.completed.Fprintln(w, summary)

	return nil
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false

	return tbl
}

func metricsTable(metrics map[string]float64) string {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"metric", "value"})

	for _, key := range slices.Sorted(maps.Keys(metrics)) {
		tbl.AppendRow(table.Row{key, humanize.Ftoa(metrics[key])})
	}

	return tbl.Render()
}

func analyzersTable(report *scrutinizer.Report, pal palette) string {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"analyzer", "state", "duration", "failure"})

	for _, run := range report.Analyzers {
		failure := ""
		if run.Failure != nil {
			failure = run.Failure.Err.Error()
		}

		tbl.AppendRow(table.Row{run.Name, pal.state(run.State), run.Duration.Round(durationPrecision), failure})
	}

	tbl.AppendFooter(table.Row{
		fmt.Sprintf("%d completed", report.Count(scrutinizer.StateCompleted)),
		fmt.Sprintf("%d failed", report.Count(scrutinizer.StateFailed)),
		fmt.Sprintf("%d skipped", report.Count(scrutinizer.StateSkipped)),
	})

	return tbl.Render()
}

func sortedFiles(project *model.Project) []*model.File {
	files := project.Files()

	sort.Slice(files, func(i, j int) bool { return files[i].Path() < files[j].Path() })

	return files
}

type jsonComment struct {
	Line    int    `json:"line"`
	Tool    string `json:"tool"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

type jsonFile struct {
	Path     string             `json:"path"`
	Language string             `json:"language,omitempty"`
	Comments []jsonComment      `json:"comments,omitempty"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
	Patch    string             `json:"patch,omitempty"`
}

type jsonLocation struct {
	Filename  string `json:"filename"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

type jsonElement struct {
	Type     string             `json:"type"`
	Name     string             `json:"name"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
	Flags    []string           `json:"flags,omitempty"`
	Children []string           `json:"children,omitempty"`
	Location *jsonLocation      `json:"location,omitempty"`
}

type jsonAnalyzer struct {
	Name       string `json:"name"`
	State      string `json:"state"`
	DurationMS int64  `json:"duration_ms"`
	Path       string `json:"path,omitempty"`
	Failure    string `json:"failure,omitempty"`
}

type jsonReport struct {
	Files                []jsonFile         `json:"files"`
	Metrics              map[string]float64 `json:"metrics"`
	CodeElements         []jsonElement      `json:"code_elements"`
	Analyzers            []jsonAnalyzer     `json:"analyzers"`
	AfterCommandFailures []string           `json:"after_command_failures,omitempty"`
	DurationMS           int64              `json:"duration_ms"`
}

// RenderJSON writes the run as one indented JSON document.
func RenderJSON(w io.Writer, project *model.Project, report *scrutinizer.Report) error {
	out := jsonReport{
		Files:        []jsonFile{},
		Metrics:      project.SimpleValuedMetrics(),
		CodeElements: []jsonElement{},
		DurationMS:   report.Duration.Milliseconds(),
	}

	for _, f := range sortedFiles(project) {
		out.Files = append(out.Files, toJSONFile(f))
	}

	for _, e := range project.CodeElements() {
		out.CodeElements = append(out.CodeElements, toJSONElement(e))
	}

	for _, run := range report.Analyzers {
		entry := jsonAnalyzer{Name: run.Name, State: string(run.State), DurationMS: run.Duration.Milliseconds()}

		if run.Failure != nil {
			entry.Path = run.Failure.Path
			entry.Failure = run.Failure.Err.Error()
		}

		out.Analyzers = append(out.Analyzers, entry)
	}

	for _, f := range report.AfterCommandFailures {
		out.AfterCommandFailures = append(out.AfterCommandFailures, f.Err.Error())
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", jsonIndent)

	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}

	return nil
}

func toJSONFile(f *model.File) jsonFile {
	out := jsonFile{Path: f.Path(), Language: f.Language(), Metrics: f.Metrics()}

	for _, line := range f.CommentLines() {
		for _, c := range f.Comments(line) {
			out.Comments = append(out.Comments, jsonComment{Line: line, Tool: c.Tool, ID: c.ID, Message: c.String()})
		}
	}

	if patch, ok := f.Patch(); ok {
		out.Patch = patch
	}

	return out
}

func toJSONElement(e *model.CodeElement) jsonElement {
	out := jsonElement{Type: e.Type(), Name: e.Name(), Metrics: e.Metrics(), Flags: e.Flags()}

	for _, child := range e.Children() {
		out.Children = append(out.Children, child.Type()+":"+child.Name())
	}

	if loc, ok := e.Location(); ok {
		out.Location = &jsonLocation{Filename: loc.Filename, StartLine: loc.StartLine, EndLine: loc.EndLine}
	}

	return out
}
