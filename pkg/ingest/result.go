// Package ingest normalizes external tool output into comments, fixed file
// content and metrics, and applies the normalized result to the project model.
package ingest

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Sumatoshi-tech/scrutinizer/pkg/model"
)

// Sentinel errors.
var (
	ErrMalformedOutput = errors.New("malformed tool output")
	ErrUnknownFormat   = errors.New("unknown output format")
	ErrMultiIteration  = errors.New("multiple iterations would repeat findings")
)

// maxQuotedRaw bounds how much raw output a MalformedOutputError quotes.
const maxQuotedRaw = 512

// MalformedOutputError reports output that does not decode in its declared format.
type MalformedOutputError struct {
	Format string
	Raw    string
	Err    error
}

// Error implements the error interface.
func (e *MalformedOutputError) Error() string {
	raw := e.Raw
	if len(raw) > maxQuotedRaw {
		raw = raw[:maxQuotedRaw] + "..."
	}

	return fmt.Sprintf("%s (%s): %v: %q", ErrMalformedOutput, e.Format, e.Err, raw)
}

// Unwrap returns ErrMalformedOutput and the decoder error.
func (e *MalformedOutputError) Unwrap() []error {
	return []error{ErrMalformedOutput, e.Err}
}

func malformed(format string, raw []byte, err error) error {
	return &MalformedOutputError{Format: format, Raw: string(raw), Err: err}
}

// Comment is one normalized finding. Path is only set by decoders whose
// output may cover several files.
type Comment struct {
	Path    string         `json:"path,omitempty"    msgpack:"path,omitempty"    yaml:"path,omitempty"`
	Line    int            `json:"line"              msgpack:"line"              yaml:"line"`
	ID      string         `json:"id"                msgpack:"id"                yaml:"id"`
	Message string         `json:"message"           msgpack:"message"           yaml:"message"`
	Params  map[string]any `json:"params,omitempty"  msgpack:"params,omitempty"  yaml:"params,omitempty"`
}

// Result is the normalized shape every decoder converges on.
type Result struct {
	Comments     []Comment          `json:"comments,omitempty"      msgpack:"comments,omitempty"      yaml:"comments,omitempty"`
	FixedContent *string            `json:"fixed_content,omitempty" msgpack:"fixed_content,omitempty" yaml:"fixed_content,omitempty"`
	Metrics      map[string]float64 `json:"metrics,omitempty"       msgpack:"metrics,omitempty"       yaml:"metrics,omitempty"`
}

// HasFindings reports whether applying r would add comments or a patch.
func (r Result) HasFindings() bool {
	return len(r.Comments) > 0 || r.FixedContent != nil
}

// IsEmpty reports whether r carries nothing at all.
func (r Result) IsEmpty() bool {
	return !r.HasFindings() && len(r.Metrics) == 0
}

// Encode serializes r for the result cache.
func Encode(r Result) ([]byte, error) {
	data, err := msgpack.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}

	return data, nil
}

// Decode reverses Encode.
func Decode(data []byte) (Result, error) {
	var r Result

	if err := msgpack.Unmarshal(data, &r); err != nil {
		return Result{}, fmt.Errorf("decode result: %w", err)
	}

	return r, nil
}

// Apply appends r's comments to f, replaces f's fixed content when r carries
// one and records r's metrics on f.
func Apply(f *model.File, tool string, r Result) error {
	for _, c := range r.Comments {
		f.AddComment(c.Line, model.NewComment(tool, c.ID, c.Message, c.Params))
	}

	if r.FixedContent != nil {
		f.FixedFile().SetContent(*r.FixedContent)
	}

	for _, key := range slices.Sorted(maps.Keys(r.Metrics)) {
		if err := f.Measure(key, r.Metrics[key]); err != nil {
			return fmt.Errorf("apply %s result to %s: %w", tool, f.Path(), err)
		}
	}

	return nil
}

// ApplyProject routes r's comments to the files named by their Path and sets
// r's metrics as project metrics. Comments for files that are not part of the
// project are dropped; their count is returned. Fixed content is ignored
// because it has no target file.
func ApplyProject(p *model.Project, tool string, r Result) int {
	dropped := 0

	for _, c := range r.Comments {
		f, ok := p.File(relativePath(p.Directory(), c.Path))
		if !ok {
			dropped++

			continue
		}

		f.AddComment(c.Line, model.NewComment(tool, c.ID, c.Message, c.Params))
	}

	for key, value := range r.Metrics {
		p.SetSimpleValuedMetric(key, value)
	}

	return dropped
}

func relativePath(dir, path string) string {
	path = strings.TrimPrefix(path, "./")

	if dir == "" {
		return path
	}

	prefix := strings.TrimSuffix(dir, "/") + "/"

	return strings.TrimPrefix(path, prefix)
}

// CheckIterations fails when a tool configured for more than one iteration
// produced findings; each pass would report the same defects again.
func CheckIterations(iterations int, r Result) error {
	if iterations > 1 && r.HasFindings() {
		return fmt.Errorf("%w: %d iterations configured", ErrMultiIteration, iterations)
	}

	return nil
}
