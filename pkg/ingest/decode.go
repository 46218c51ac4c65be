package ingest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/scrutinizer/pkg/safeconv"
)

// Output formats.
const (
	FormatNone       = "none"
	FormatCheckstyle = "checkstyle"
	FormatJSON       = "json"
	FormatYAML       = "yaml"
	FormatPlain      = "plain"
	FormatMetrics    = "metrics"
)

// Decoder turns raw tool output into a Result.
type Decoder func(raw []byte) (Result, error)

var decoders = map[string]Decoder{
	FormatNone:       func([]byte) (Result, error) { return Result{}, nil },
	FormatCheckstyle: decodeCheckstyle,
	FormatJSON:       decodeJSON,
	FormatYAML:       decodeYAML,
	FormatPlain:      decodePlain,
	FormatMetrics:    decodeMetrics,
}

// Formats lists the supported format names in sorted order.
func Formats() []string {
	names := make([]string, 0, len(decoders))
	for name := range decoders {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// YieldsFindings reports whether output in format can carry comments or a patch.
func YieldsFindings(format string) bool {
	return format != FormatNone && format != FormatMetrics
}

// DecodeOutput decodes raw tool output in the named format.
func DecodeOutput(format string, raw []byte) (Result, error) {
	decode, ok := decoders[format]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	return decode(raw)
}

type checkstyleDoc struct {
	XMLName xml.Name         `xml:"checkstyle"`
	Files   []checkstyleFile `xml:"file"`
}

type checkstyleFile struct {
	Name   string            `xml:"name,attr"`
	Errors []checkstyleError `xml:"error"`
}

type checkstyleError struct {
	Line     string `xml:"line,attr"`
	Column   string `xml:"column,attr"`
	Severity string `xml:"severity,attr"`
	Message  string `xml:"message,attr"`
	Source   string `xml:"source,attr"`
}

func decodeCheckstyle(raw []byte) (Result, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Result{}, nil
	}

	var doc checkstyleDoc

	if err := xml.Unmarshal(raw, &doc); err != nil {
		return Result{}, malformed(FormatCheckstyle, raw, err)
	}

	var res Result

	for _, file := range doc.Files {
		for _, e := range file.Errors {
			line, err := safeconv.ToInt(strings.TrimSpace(e.Line))
			if err != nil {
				return Result{}, malformed(FormatCheckstyle, raw, fmt.Errorf("line of %q: %w", e.Message, err))
			}

			params := map[string]any{}
			if e.Severity != "" {
				params["severity"] = e.Severity
			}

			if e.Column != "" {
				params["column"] = e.Column
			}

			res.Comments = append(res.Comments, Comment{
				Path:    file.Name,
				Line:    line,
				ID:      e.Source,
				Message: e.Message,
				Params:  params,
			})
		}
	}

	return res, nil
}

//go:embed output-schema.json
var outputSchema []byte

var outputSchemaLoader = gojsonschema.NewBytesLoader(outputSchema)

func validateOutput(format string, raw []byte, doc gojsonschema.JSONLoader) error {
	result, err := gojsonschema.Validate(outputSchemaLoader, doc)
	if err != nil {
		return malformed(format, raw, err)
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		msgs = append(msgs, re.String())
	}

	return malformed(format, raw, errors.New(strings.Join(msgs, "; ")))
}

func decodeJSON(raw []byte) (Result, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Result{}, nil
	}

	if err := validateOutput(FormatJSON, raw, gojsonschema.NewBytesLoader(raw)); err != nil {
		return Result{}, err
	}

	var res Result

	if err := json.Unmarshal(raw, &res); err != nil {
		return Result{}, malformed(FormatJSON, raw, err)
	}

	return res, nil
}

func decodeYAML(raw []byte) (Result, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Result{}, nil
	}

	var doc any

	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Result{}, malformed(FormatYAML, raw, err)
	}

	if err := validateOutput(FormatYAML, raw, gojsonschema.NewGoLoader(doc)); err != nil {
		return Result{}, err
	}

	var res Result

	if err := yaml.Unmarshal(raw, &res); err != nil {
		return Result{}, malformed(FormatYAML, raw, err)
	}

	return res, nil
}

// plainLine matches "path:line[:column]: message [id]" and "line: message".
var plainLine = regexp.MustCompile(`^(?:(.+?):)?(\d+)(?::(\d+))?:\s*(.*?)(?:\s+\[([^\]]+)\])?\s*$`)

// decodePlain reads compiler-style lines. Lines that do not look like
// findings, such as summaries, are ignored.
func decodePlain(raw []byte) (Result, error) {
	var res Result

	for _, text := range strings.Split(string(raw), "\n") {
		m := plainLine.FindStringSubmatch(strings.TrimRight(text, "\r"))
		if m == nil || m[4] == "" {
			continue
		}

		line, err := safeconv.ToInt(m[2])
		if err != nil {
			return Result{}, malformed(FormatPlain, raw, err)
		}

		c := Comment{Path: m[1], Line: line, ID: m[5], Message: m[4]}
		if m[3] != "" {
			c.Params = map[string]any{"column": m[3]}
		}

		res.Comments = append(res.Comments, c)
	}

	return res, nil
}

// decodeMetrics reads "key: value" or "key=value" lines. Blank lines and
// lines starting with '#' are skipped.
func decodeMetrics(raw []byte) (Result, error) {
	res := Result{Metrics: map[string]float64{}}

	for n, text := range strings.Split(string(raw), "\n") {
		text = strings.TrimSpace(text)
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		key, value, ok := strings.Cut(text, "=")
		if !ok {
			key, value, ok = strings.Cut(text, ":")
		}

		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return Result{}, malformed(FormatMetrics, raw, fmt.Errorf("line %d: expected key=value", n+1))
		}

		number, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return Result{}, malformed(FormatMetrics, raw, fmt.Errorf("line %d: %w", n+1, err))
		}

		res.Metrics[key] = number
	}

	return res, nil
}
