// Package advisories looks up the modules required by a project's go.mod in
// an OSV-compatible vulnerability database.
package advisories

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"golang.org/x/mod/modfile"

	"github.com/Sumatoshi-tech/scrutinizer/pkg/analyzers/analyze"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/config"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/model"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/process"
)

// Name is the configuration key of the analyzer.
const Name = "security_advisories"

// Defaults for Options.
const (
	DefaultEndpoint    = "https://api.osv.dev/v1/querybatch"
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = 500 * time.Millisecond

	requestTimeout = 30 * time.Second
	maxBodySize    = 8 << 20
	ecosystem      = "Go"
)

// MetricVulnerableModules counts modules with at least one advisory.
const MetricVulnerableModules = "advisories.vulnerable_modules"

// CommentID identifies the comments this analyzer records.
const CommentID = "security_advisories.vulnerable_module"

// ErrLookup is returned when the advisory database cannot be queried. It is
// an external tool failure.
var ErrLookup = fmt.Errorf("%w: advisory lookup failed", process.ErrToolFailure)

// Options configure the database client.
type Options struct {
	Endpoint    string
	MaxAttempts int
	BaseDelay   time.Duration
	Client      *http.Client
}

// Analyzer queries vulnerability advisories for Go module requirements.
type Analyzer struct {
	analyze.Collaborators

	opts Options
}

// New returns an advisories analyzer. Zero options fall back to the defaults.
func New(opts Options) *Analyzer {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}

	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}

	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}

	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: requestTimeout}
	}

	return &Analyzer{opts: opts}
}

// Name implements analyze.Analyzer.
func (a *Analyzer) Name() string { return Name }

// BuildConfig implements analyze.Analyzer.
func (a *Analyzer) BuildConfig(b *config.Builder) {
	b.Global().String("go_mod", "Project-relative path of the go.mod file.").Default("go.mod")
	b.Global().Bool("include_indirect", "Also check indirect requirements.").Default(true)
	b.Global().StringList("ignored_ids", "Advisory IDs that are not reported.")
}

type requirement struct {
	Path    string
	Version string
	Line    int
}

// Scrutinize implements analyze.Analyzer.
func (a *Analyzer) Scrutinize(ctx context.Context, p *model.Project) error {
	settings, err := readSettings(p)
	if err != nil {
		return err
	}

	f, ok := p.File(settings.goMod)
	if !ok {
		a.Logger().DebugContext(ctx, "security_advisories: no go.mod in project", "path", settings.goMod)

		return nil
	}

	reqs, err := requirements(f, settings.includeIndirect)
	if err != nil {
		return err
	}

	if len(reqs) == 0 {
		p.SetSimpleValuedMetric(MetricVulnerableModules, 0)

		return nil
	}

	found, err := a.query(ctx, reqs)
	if err != nil {
		return err
	}

	vulnerable := 0

	for i, req := range reqs {
		ids := slices.DeleteFunc(found[i], func(id string) bool { return slices.Contains(settings.ignored, id) })
		if len(ids) == 0 {
			continue
		}

		vulnerable++

		f.AddComment(req.Line, model.Comment{
			Tool:    Name,
			ID:      CommentID,
			Message: "Module {module}@{version} has known vulnerabilities: {advisories}.",
			Params: map[string]any{
				"module":     req.Path,
				"version":    req.Version,
				"advisories": strings.Join(ids, ", "),
			},
		})
	}

	p.SetSimpleValuedMetric(MetricVulnerableModules, float64(vulnerable))

	a.Logger().InfoContext(ctx, "security_advisories: lookup finished",
		"modules", len(reqs), "vulnerable", vulnerable)

	return nil
}

type settings struct {
	goMod           string
	includeIndirect bool
	ignored         []string
}

func readSettings(p *model.Project) (settings, error) {
	var (
		s   settings
		err error
	)

	if s.goMod, err = config.Value[string](p.GlobalConfig(Name + ".go_mod")); err != nil {
		return s, err
	}

	if s.includeIndirect, err = config.Value[bool](p.GlobalConfig(Name + ".include_indirect")); err != nil {
		return s, err
	}

	if s.ignored, err = config.Value[[]string](p.GlobalConfig(Name + ".ignored_ids")); err != nil {
		return s, err
	}

	return s, nil
}

// requirements lists the modules to check. Versioned replacements are looked
// up instead of the module they replace; local replacements are skipped.
func requirements(f *model.File, includeIndirect bool) ([]requirement, error) {
	mod, err := modfile.Parse(f.Path(), []byte(f.Content()), nil)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.Path(), err)
	}

	replaced := make(map[string]modfile.Replace, len(mod.Replace))
	for _, r := range mod.Replace {
		replaced[r.Old.Path] = *r
	}

	out := make([]requirement, 0, len(mod.Require))

	for _, r := range mod.Require {
		if r.Indirect && !includeIndirect {
			continue
		}

		req := requirement{Path: r.Mod.Path, Version: r.Mod.Version, Line: r.Syntax.Start.Line}

		if rep, ok := replaced[r.Mod.Path]; ok && (rep.Old.Version == "" || rep.Old.Version == r.Mod.Version) {
			if rep.New.Version == "" {
				continue
			}

			req.Path, req.Version = rep.New.Path, rep.New.Version
		}

		out = append(out, req)
	}

	return out, nil
}

type osvQuery struct {
	Package osvPackage `json:"package"`
	Version string     `json:"version"`
}

type osvPackage struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`
}

type osvBatchRequest struct {
	Queries []osvQuery `json:"queries"`
}

type osvBatchResponse struct {
	Results []struct {
		Vulns []struct {
			ID string `json:"id"`
		} `json:"vulns"`
	} `json:"results"`
}

// query returns the advisory IDs per requirement, in request order.
func (a *Analyzer) query(ctx context.Context, reqs []requirement) ([][]string, error) {
	batch := osvBatchRequest{Queries: make([]osvQuery, 0, len(reqs))}
	for _, r := range reqs {
		batch.Queries = append(batch.Queries, osvQuery{
			Package: osvPackage{Name: r.Path, Ecosystem: ecosystem},
			Version: strings.TrimPrefix(r.Version, "v"),
		})
	}

	body, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("encode advisory query: %w", err)
	}

	var resp osvBatchResponse

	err = process.Retry(ctx, a.opts.MaxAttempts, a.opts.BaseDelay, func(ctx context.Context) error {
		return a.post(ctx, body, &resp)
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Results) != len(reqs) {
		return nil, fmt.Errorf("%w: %d results for %d queries", ErrLookup, len(resp.Results), len(reqs))
	}

	out := make([][]string, len(reqs))

	for i, res := range resp.Results {
		for _, v := range res.Vulns {
			out[i] = append(out[i], v.ID)
		}

		slices.Sort(out[i])
		out[i] = slices.Compact(out[i])
	}

	return out, nil
}

// post sends one batch request. Client errors are not retried.
func (a *Analyzer) post(ctx context.Context, body []byte, out *osvBatchResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return process.Permanent(fmt.Errorf("build advisory request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := a.opts.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return process.Permanent(ctx.Err())
		}

		a.Logger().WarnContext(ctx, "security_advisories: request failed", "error", err)

		return fmt.Errorf("%w: %w", ErrLookup, err)
	}

	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrLookup, err)
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests:
		a.Logger().WarnContext(ctx, "security_advisories: retryable response", "status", resp.StatusCode)

		return fmt.Errorf("%w: status %d", ErrLookup, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return process.Permanent(fmt.Errorf("%w: status %d", ErrLookup, resp.StatusCode))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return process.Permanent(fmt.Errorf("%w: decode response: %w", ErrLookup, err))
	}

	return nil
}
