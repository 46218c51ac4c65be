package model_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/scrutinizer/pkg/config"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/model"
)

func TestComment_Render(t *testing.T) {
	t.Parallel()

	c := model.NewComment("js_hint", "W098", "Bad var {name}", map[string]any{"name": "x"})
	assert.Equal(t, "Bad var x", c.String())
	assert.Equal(t, c.String(), c.String(), "rendering is repeatable")

	percent := model.NewComment("php_md", "unused", "%name% is unused in %fn%", map[string]any{"name": "$a", "fn": "f"})
	assert.Equal(t, "$a is unused in f", percent.String())

	plain := model.NewComment("tool", "id", "no params {here}", nil)
	assert.Equal(t, "no params {here}", plain.String())

	assert.True(t, c.Equal(model.NewComment("other", "other", "Bad var x", nil)))
	assert.False(t, c.Equal(plain))
}

func TestFile_CommentsPreserveOrder(t *testing.T) {
	t.Parallel()

	f := model.NewFile("foo.js", "var a;\nvar b;\n")
	f.AddComment(2, model.NewComment("t", "a", "second line first", nil))
	f.AddComment(1, model.NewComment("t", "b", "first line", nil))
	f.AddComment(2, model.NewComment("u", "c", "second line second", nil))

	assert.Equal(t, []int{1, 2}, f.CommentLines())
	require.Len(t, f.Comments(2), 2)
	assert.Equal(t, "second line first", f.Comments(2)[0].String())
	assert.Equal(t, "second line second", f.Comments(2)[1].String())
	assert.Empty(t, f.Comments(3))

	assert.Equal(t, "Line 1: first line\nLine 2: second line first\nLine 2: second line second\n", f.Dump())
}

func TestFile_MeasureWriteOnce(t *testing.T) {
	t.Parallel()

	f := model.NewFile("a.go", "")

	require.NoError(t, f.Measure("loc", 10))
	require.ErrorIs(t, f.Measure("loc", 11), model.ErrMetricExists)
	require.NoError(t, f.Measure("blank", 2))

	loc, ok := f.Metric("loc")
	require.True(t, ok)
	assert.InDelta(t, 10.0, loc, 0)
	assert.Equal(t, map[string]float64{"loc": 10, "blank": 2}, f.Metrics())
}

func TestFile_LineAttributesLastWriteWins(t *testing.T) {
	t.Parallel()

	f := model.NewFile("a.go", "x\n")
	f.SetLineAttribute(1, "coverage_count", 1)
	f.SetLineAttribute(1, "coverage_count", 3)
	f.SetLineAttribute(1, "duplicated", true)

	v, ok := f.LineAttribute(1, "coverage_count")
	require.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, map[string]any{"coverage_count": 3, "duplicated": true}, f.LineAttributes(1))

	_, ok = f.LineAttribute(2, "coverage_count")
	assert.False(t, ok)
}

func TestFile_FixedFileAndPatch(t *testing.T) {
	t.Parallel()

	f := model.NewFile("src/a.txt", "a\nb\nc\n")

	_, ok := f.Patch()
	assert.False(t, ok, "no fixed file yet")
	assert.False(t, f.HasFixedFile())

	fixed := f.FixedFile()
	assert.Same(t, fixed, f.FixedFile(), "get-or-create returns the same instance")
	assert.Equal(t, "a\nb\nc\n", fixed.Content())

	_, ok = f.Patch()
	assert.False(t, ok, "equal contents produce no patch")

	fixed.SetContent("a\nB\nc\n")

	patch, ok := f.Patch()
	require.True(t, ok)
	assert.Equal(t, "--- a/src/a.txt\n+++ b/src/a.txt\n@@ -1,3 +1,3 @@\n a\n-b\n+B\n c\n", patch)
}

func TestFile_Extension(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "js", model.NewFile("web/app.min.js", "").Extension())
	assert.Empty(t, model.NewFile("Makefile", "").Extension())
	assert.Equal(t, "Go", model.NewFile("main.go", "package main\n").Language())
}

func TestFile_ConcurrentComments(t *testing.T) {
	t.Parallel()

	f := model.NewFile("a.go", "")

	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			f.AddComment(i%5, model.NewComment("t", "id", fmt.Sprint(i), nil))
		}()
	}

	wg.Wait()

	total := 0
	for _, list := range f.AllComments() {
		total += len(list)
	}

	assert.Equal(t, 50, total)
}

func TestProject_Files(t *testing.T) {
	t.Parallel()

	p := model.NewProject("/src")
	require.NoError(t, p.AddFile(model.NewFile("b.go", "")))
	require.NoError(t, p.AddFile(model.NewFile("a.go", "")))
	require.ErrorIs(t, p.AddFile(model.NewFile("a.go", "other")), model.ErrDuplicateFile)

	assert.Equal(t, "/src", p.Directory())
	require.Len(t, p.Files(), 2)
	assert.Equal(t, "b.go", p.Files()[0].Path())
	assert.True(t, p.HasFile("a.go"))
	assert.True(t, p.IsAnalyzed("a.go"))
	assert.False(t, p.IsAnalyzed("c.go"))

	f, ok := p.File("a.go")
	require.True(t, ok)
	assert.Empty(t, f.Content(), "the duplicate did not overwrite")
}

func TestProject_Config(t *testing.T) {
	t.Parallel()

	b := config.NewBuilder("lint")
	b.Global().Int("timeout", "t").Default(5)
	b.PerFile().String("level", "l").Default("strict")

	as, err := b.Build()
	require.NoError(t, err)

	schema := config.NewSchema()
	require.NoError(t, schema.Add(as))

	tree, err := schema.Resolve(map[string]any{"lint": map[string]any{
		"path_configs": []any{map[string]any{"paths": []any{"tests/*"}, "enabled": false, "config": map[string]any{"level": "lax"}}},
	}})
	require.NoError(t, err)

	p := model.NewProject(".")

	_, err = p.GlobalConfig("lint.timeout")
	require.ErrorIs(t, err, model.ErrNoConfig)

	require.NoError(t, p.SetConfig(tree))
	require.ErrorIs(t, p.SetConfig(tree), model.ErrConfigAlreadySet)

	timeout, err := p.GlobalConfig("lint.timeout")
	require.NoError(t, err)
	assert.Equal(t, 5, timeout)

	testFile := model.NewFile("tests/a_test.go", "")
	srcFile := model.NewFile("src/a.go", "")

	level, err := p.FileConfig(testFile, "lint.level")
	require.NoError(t, err)
	assert.Equal(t, "lax", level)

	level, err = p.FileConfig(srcFile, "lint.level")
	require.NoError(t, err)
	assert.Equal(t, "strict", level)

	assert.Equal(t, false, p.PathConfig(testFile, "lint.enabled", true))
	assert.Equal(t, true, p.PathConfig(srcFile, "lint.enabled", true))
}

func TestProject_CodeElements(t *testing.T) {
	t.Parallel()

	p := model.NewProject(".")

	pkg := p.CodeElement(model.ElementPackage, "example.com/x")
	assert.Same(t, pkg, p.CodeElement(model.ElementPackage, "example.com/x"))

	class := p.CodeElement(model.ElementClass, "example.com/x.T")
	assert.True(t, pkg.AddChild(class))
	assert.False(t, pkg.AddChild(p.CodeElement(model.ElementClass, "example.com/x.T")))
	assert.False(t, pkg.AddChild(model.NewCodeElement(model.ElementClass, "example.com/x.T")))
	assert.Len(t, pkg.Children(), 1)

	// Same name, different type is a different element.
	assert.True(t, pkg.AddChild(p.CodeElement(model.ElementOperation, "example.com/x.T")))
	assert.Len(t, pkg.Children(), 2)

	class.SetMetric("lines", 10)
	class.SetMetric("lines", 12)

	lines, ok := class.Metric("lines")
	require.True(t, ok)
	assert.InDelta(t, 12.0, lines, 0)

	class.SetFlag(model.FlagSimpleGetter)
	assert.True(t, class.HasFlag(model.FlagSimpleGetter))
	assert.Equal(t, []string{model.FlagSimpleGetter}, class.Flags())

	_, ok = class.Location()
	assert.False(t, ok)

	class.SetLocation(model.Location{Filename: "x/t.go", StartLine: 3, EndLine: 9})

	loc, ok := class.Location()
	require.True(t, ok)
	assert.Equal(t, 3, loc.StartLine)

	_, ok = p.LookupCodeElement(model.ElementClass, "missing")
	assert.False(t, ok)
	assert.Len(t, p.CodeElements(), 3)
}

func TestProject_SimpleMetrics(t *testing.T) {
	t.Parallel()

	p := model.NewProject(".")
	p.SetSimpleValuedMetric("files", 3)
	p.SetSimpleValuedMetric("files", 4)

	v, ok := p.SimpleValuedMetric("files")
	require.True(t, ok)
	assert.InDelta(t, 4.0, v, 0)
	assert.Equal(t, map[string]float64{"files": 4}, p.SimpleValuedMetrics())
}

func TestUnifiedDiff(t *testing.T) {
	t.Parallel()

	assert.Empty(t, model.UnifiedDiff("x", "same\n", "same\n"))

	before := "1\n2\n3\n4\n5\n6\n7\n8\n9\n10\n11\n12\n13\n14\n15\n16\n"
	after := "1\nTWO\n3\n4\n5\n6\n7\n8\n9\n10\n11\n12\n13\n14\nFIFTEEN\n16\n"

	diff := model.UnifiedDiff("n.txt", before, after)
	assert.Contains(t, diff, "@@ -1,5 +1,5 @@\n 1\n-2\n+TWO\n 3\n 4\n 5\n")
	assert.Contains(t, diff, "@@ -12,5 +12,5 @@\n 12\n 13\n 14\n-15\n+FIFTEEN\n 16\n")

	noNewline := model.UnifiedDiff("z", "a\n", "a\nb")
	assert.Contains(t, noNewline, "+b\n\\ No newline at end of file\n")
}
