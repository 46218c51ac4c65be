package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/scrutinizer/pkg/model"
)

const checkstyleFixture = `<?xml version="1.0" encoding="utf-8"?>
<checkstyle version="4.3">
  <file name="foo.js">
    <error line="1" column="5" severity="warning" message="&apos;a&apos; is defined but never used." source="jshint.W098" />
    <error line="2" column="5" severity="warning" message="&apos;b&apos; is defined but never used." source="jshint.W098" />
  </file>
</checkstyle>`

func TestDecodeCheckstyle(t *testing.T) {
	t.Parallel()

	res, err := DecodeOutput(FormatCheckstyle, []byte(checkstyleFixture))
	require.NoError(t, err)
	require.Len(t, res.Comments, 2)

	first := res.Comments[0]
	assert.Equal(t, "foo.js", first.Path)
	assert.Equal(t, 1, first.Line)
	assert.Equal(t, "jshint.W098", first.ID)
	assert.Equal(t, "'a' is defined but never used.", first.Message)
	assert.Equal(t, "warning", first.Params["severity"])
	assert.Equal(t, 2, res.Comments[1].Line)
	assert.Nil(t, res.FixedContent)
}

func TestFormatsConverge(t *testing.T) {
	t.Parallel()

	inputs := map[string]string{
		FormatCheckstyle: `<checkstyle><file name="a.php"><error line="3" message="Bad var x" source="naming"/></file></checkstyle>`,
		FormatJSON:       `{"comments": [{"path": "a.php", "line": 3, "id": "naming", "message": "Bad var x"}]}`,
		FormatYAML:       "comments:\n  - path: a.php\n    line: 3\n    id: naming\n    message: Bad var x\n",
		FormatPlain:      "a.php:3: Bad var x [naming]\nFound 1 problem\n",
	}

	for format, raw := range inputs {
		t.Run(format, func(t *testing.T) {
			t.Parallel()

			res, err := DecodeOutput(format, []byte(raw))
			require.NoError(t, err)
			require.Len(t, res.Comments, 1)

			c := res.Comments[0]
			assert.Equal(t, "a.php", c.Path)
			assert.Equal(t, 3, c.Line)
			assert.Equal(t, "naming", c.ID)
			assert.Equal(t, "Bad var x", c.Message)
		})
	}
}

func TestDecodeJSON_FixedContentAndParams(t *testing.T) {
	t.Parallel()

	raw := `{"comments": [{"line": 1, "id": "x", "message": "Bad var {name}", "params": {"name": "y"}}],
	         "fixed_content": "fixed\n", "metrics": {"score": 1.5}}`

	res, err := DecodeOutput(FormatJSON, []byte(raw))
	require.NoError(t, err)
	require.NotNil(t, res.FixedContent)
	assert.Equal(t, "fixed\n", *res.FixedContent)
	assert.Equal(t, map[string]float64{"score": 1.5}, res.Metrics)
	assert.Equal(t, "y", res.Comments[0].Params["name"])

	nullFix, err := DecodeOutput(FormatJSON, []byte(`{"fixed_content": null}`))
	require.NoError(t, err)
	assert.Nil(t, nullFix.FixedContent)
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		FormatCheckstyle: "<checkstyle><file",
		FormatJSON:       `{"comments": [{"line": "one"}]}`,
		FormatYAML:       "comments: [unclosed",
		FormatMetrics:    "loc 10",
	}

	for format, raw := range cases {
		t.Run(format, func(t *testing.T) {
			t.Parallel()

			_, err := DecodeOutput(format, []byte(raw))
			require.ErrorIs(t, err, ErrMalformedOutput)

			var mErr *MalformedOutputError

			require.ErrorAs(t, err, &mErr)
			assert.Equal(t, format, mErr.Format)
			assert.Equal(t, raw, mErr.Raw)
		})
	}
}

func TestDecodeJSON_RejectsUnknownProperties(t *testing.T) {
	t.Parallel()

	_, err := DecodeOutput(FormatJSON, []byte(`{"warnings": []}`))
	require.ErrorIs(t, err, ErrMalformedOutput)
}

func TestDecodeMetrics(t *testing.T) {
	t.Parallel()

	res, err := DecodeOutput(FormatMetrics, []byte("# header\nloc=120\n\ncoverage: 0.75\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"loc": 120, "coverage": 0.75}, res.Metrics)
	assert.False(t, res.HasFindings())
}

func TestDecodeEmptyAndUnknown(t *testing.T) {
	t.Parallel()

	for _, format := range Formats() {
		res, err := DecodeOutput(format, nil)
		require.NoError(t, err, format)
		assert.False(t, res.HasFindings(), format)
	}

	_, err := DecodeOutput("sarif", nil)
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestYieldsFindings(t *testing.T) {
	t.Parallel()

	assert.False(t, YieldsFindings(FormatNone))
	assert.False(t, YieldsFindings(FormatMetrics))
	assert.True(t, YieldsFindings(FormatCheckstyle))
	assert.True(t, YieldsFindings(FormatPlain))
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	fixed := "new"
	in := Result{
		Comments:     []Comment{{Line: 4, ID: "r", Message: "m {x}", Params: map[string]any{"x": "y"}}},
		FixedContent: &fixed,
		Metrics:      map[string]float64{"k": 2},
	}

	data, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = Decode([]byte{0xc1})
	require.Error(t, err)
}

func TestApply_EndToEndDump(t *testing.T) {
	t.Parallel()

	f := model.NewFile("foo.js", "var a;\nvar b;\n")

	res, err := DecodeOutput(FormatCheckstyle, []byte(checkstyleFixture))
	require.NoError(t, err)
	require.NoError(t, Apply(f, "js_hint", res))

	comments := f.AllComments()
	require.Len(t, comments, 2)
	assert.Len(t, comments[1], 1)
	assert.Len(t, comments[2], 1)
	assert.Equal(t, "Line 1: 'a' is defined but never used.\nLine 2: 'b' is defined but never used.\n", f.Dump())
}

func TestApply_AppendsAndPatches(t *testing.T) {
	t.Parallel()

	f := model.NewFile("a.txt", "a\n")
	f.AddComment(1, model.NewComment("other", "x", "existing", nil))

	fixed := "b\n"
	require.NoError(t, Apply(f, "tool", Result{
		Comments:     []Comment{{Line: 1, ID: "y", Message: "new"}},
		FixedContent: &fixed,
		Metrics:      map[string]float64{"size": 1},
	}))

	assert.Len(t, f.Comments(1), 2)
	assert.Equal(t, "b\n", f.FixedFile().Content())

	err := Apply(f, "tool", Result{Metrics: map[string]float64{"size": 2}})
	require.ErrorIs(t, err, model.ErrMetricExists)
}

func TestApplyProject(t *testing.T) {
	t.Parallel()

	p := model.NewProject("/src/project")
	f := model.NewFile("lib/a.go", "package a\n")
	require.NoError(t, p.AddFile(f))

	dropped := ApplyProject(p, "tool", Result{
		Comments: []Comment{
			{Path: "/src/project/lib/a.go", Line: 1, ID: "abs", Message: "absolute"},
			{Path: "./lib/a.go", Line: 1, ID: "rel", Message: "relative"},
			{Path: "vendor/x.go", Line: 1, ID: "gone", Message: "not analyzed"},
		},
		Metrics: map[string]float64{"coverage": 0.5},
	})

	assert.Equal(t, 1, dropped)
	assert.Len(t, f.Comments(1), 2)

	value, ok := p.SimpleValuedMetric("coverage")
	require.True(t, ok)
	assert.InDelta(t, 0.5, value, 1e-9)
}

func TestCheckIterations(t *testing.T) {
	t.Parallel()

	findings := Result{Comments: []Comment{{Line: 1, Message: "x"}}}

	require.NoError(t, CheckIterations(1, findings))
	require.NoError(t, CheckIterations(3, Result{Metrics: map[string]float64{"a": 1}}))
	require.ErrorIs(t, CheckIterations(2, findings), ErrMultiIteration)
}

func TestMalformedOutputError_TruncatesRaw(t *testing.T) {
	t.Parallel()

	err := &MalformedOutputError{Format: FormatJSON, Raw: strings.Repeat("x", 4096), Err: assert.AnError}
	assert.Less(t, len(err.Error()), 1024)
}
