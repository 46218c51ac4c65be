// Package gostructure builds the package, type and function code elements
// of Go sources together with their size and complexity metrics.
package gostructure

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"path"
	"strings"

	"github.com/Sumatoshi-tech/scrutinizer/pkg/analyzers/analyze"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/config"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/model"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/pathfilter"
)

// Name is the configuration key of the analyzer.
const Name = "go_structure"

// Metric keys.
const (
	MetricLines        = "lines"
	MetricComplexity   = "cyclomatic_complexity"
	MetricNesting      = "nesting_depth"
	MetricParameters   = "parameters"
	MetricMethods      = "methods"
	MetricOperations   = "operations"
	MetricClasses      = "classes"
	ProjectPackages    = "go.packages"
	ProjectClasses     = "go.classes"
	ProjectOperations  = "go.operations"
	ProjectParseErrors = "go.parse_errors"
)

// Analyzer parses Go files.
type Analyzer struct {
	analyze.Collaborators
}

// New returns a Go structure analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Name implements analyze.Analyzer.
func (a *Analyzer) Name() string { return Name }

// BuildConfig implements analyze.Analyzer.
func (a *Analyzer) BuildConfig(b *config.Builder) {
	b.Global().Bool("include_tests", "Also analyze _test.go files.")
}

// Scrutinize implements analyze.Analyzer. Files that fail to parse are
// logged and skipped.
func (a *Analyzer) Scrutinize(ctx context.Context, p *model.Project) error {
	includeTests, err := config.Value[bool](p.GlobalConfig(Name + ".include_tests"))
	if err != nil {
		return err
	}

	var filter pathfilter.Filter
	if tree := p.Config(); tree != nil {
		filter = tree.AnalyzerFilter(Name)
	}

	b := &builder{project: p, fset: token.NewFileSet()}

	for _, f := range p.Files() {
		if err := ctx.Err(); err != nil {
			return err
		}

		if f.Extension() != "go" || pathfilter.IsFiltered(f.Path(), filter) {
			continue
		}

		if !includeTests && strings.HasSuffix(f.Path(), "_test.go") {
			continue
		}

		parsed, parseErr := parser.ParseFile(b.fset, f.Path(), f.Content(), parser.SkipObjectResolution)
		if parseErr != nil {
			b.parseErrors++

			a.Logger().WarnContext(ctx, "go_structure: file skipped", "path", f.Path(), "error", parseErr)

			continue
		}

		b.file(f, parsed)
	}

	p.SetSimpleValuedMetric(ProjectPackages, float64(len(b.packages())))
	p.SetSimpleValuedMetric(ProjectClasses, float64(b.classes))
	p.SetSimpleValuedMetric(ProjectOperations, float64(b.operations))
	p.SetSimpleValuedMetric(ProjectParseErrors, float64(b.parseErrors))

	return nil
}

type builder struct {
	project     *model.Project
	fset        *token.FileSet
	classes     int
	operations  int
	parseErrors int
}

func (b *builder) packages() []*model.CodeElement {
	var out []*model.CodeElement

	for _, e := range b.project.CodeElements() {
		if e.Type() == model.ElementPackage {
			out = append(out, e)
		}
	}

	return out
}

func (b *builder) location(filename string, node ast.Node) model.Location {
	return model.Location{
		Filename:  filename,
		StartLine: b.fset.Position(node.Pos()).Line,
		EndLine:   b.fset.Position(node.End()).Line,
	}
}

func (b *builder) lines(node ast.Node) float64 {
	return float64(b.fset.Position(node.End()).Line - b.fset.Position(node.Pos()).Line + 1)
}

// packageName qualifies the Go package by its directory so that packages of
// the same name in different directories stay apart.
func packageName(filePath, pkg string) string {
	dir := path.Dir(filePath)
	if dir == "." {
		return pkg
	}

	return dir + ":" + pkg
}

func (b *builder) file(f *model.File, parsed *ast.File) {
	pkgName := packageName(f.Path(), parsed.Name.Name)
	pkg := b.project.CodeElement(model.ElementPackage, pkgName)

	if _, ok := pkg.Location(); !ok {
		pkg.SetLocation(model.Location{Filename: path.Dir(f.Path())})
	}

	for _, decl := range parsed.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}

			for _, spec := range d.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}

				class := b.class(pkgName, ts.Name.Name)
				class.SetLocation(b.location(f.Path(), ts))
				class.SetMetric(MetricLines, b.lines(ts))
				pkg.AddChild(class)
			}

			pkg.SetMetric(MetricClasses, float64(len(childrenOfType(pkg, model.ElementClass))))
		case *ast.FuncDecl:
			b.function(f, pkg, pkgName, d)
		}
	}
}

func (b *builder) class(pkgName, typeName string) *model.CodeElement {
	name := pkgName + "." + typeName
	if _, exists := b.project.LookupCodeElement(model.ElementClass, name); !exists {
		b.classes++
	}

	return b.project.CodeElement(model.ElementClass, name)
}

func (b *builder) function(f *model.File, pkg *model.CodeElement, pkgName string, d *ast.FuncDecl) {
	parent := pkg
	name := pkgName + "." + d.Name.Name

	recvName, recvType := receiver(d)
	if recvType != "" {
		parent = b.class(pkgName, recvType)
		name = pkgName + "." + recvType + "." + d.Name.Name

		if pkg.AddChild(parent) {
			pkg.SetMetric(MetricClasses, float64(len(childrenOfType(pkg, model.ElementClass))))
		}
	}

	op := b.project.CodeElement(model.ElementOperation, name)
	op.SetLocation(b.location(f.Path(), d))
	op.SetMetric(MetricLines, b.lines(d))
	op.SetMetric(MetricParameters, float64(d.Type.Params.NumFields()))

	complexity, nesting := measureBody(d.Body)
	op.SetMetric(MetricComplexity, float64(complexity))
	op.SetMetric(MetricNesting, float64(nesting))

	switch {
	case isSimpleGetter(d, recvName):
		op.SetFlag(model.FlagSimpleGetter)
	case isSimpleSetter(d, recvName):
		op.SetFlag(model.FlagSimpleSetter)
	}

	if parent.AddChild(op) {
		b.operations++

		key := MetricOperations
		if parent.Type() == model.ElementClass {
			key = MetricMethods
		}

		count, _ := parent.Metric(key)
		parent.SetMetric(key, count+1)
	}
}

func childrenOfType(e *model.CodeElement, typ string) []*model.CodeElement {
	var out []*model.CodeElement

	for _, c := range e.Children() {
		if c.Type() == typ {
			out = append(out, c)
		}
	}

	return out
}

// receiver returns the receiver variable and base type name of a method.
func receiver(d *ast.FuncDecl) (name, typeName string) {
	if d.Recv == nil || len(d.Recv.List) == 0 {
		return "", ""
	}

	field := d.Recv.List[0]
	if len(field.Names) > 0 {
		name = field.Names[0].Name
	}

	expr := field.Type
	for {
		switch t := expr.(type) {
		case *ast.StarExpr:
			expr = t.X
		case *ast.IndexExpr:
			expr = t.X
		case *ast.IndexListExpr:
			expr = t.X
		case *ast.Ident:
			return name, t.Name
		default:
			return name, ""
		}
	}
}

// measureBody returns the cyclomatic complexity and the deepest nesting of
// control structures. An else-if chain stays at the depth of its first if.
func measureBody(body *ast.BlockStmt) (complexity, nesting int) {
	complexity = 1
	if body == nil {
		return complexity, 0
	}

	var (
		visit  func(depth int) func(ast.Node) bool
		walkIf func(s *ast.IfStmt, level int)
	)

	// within inspects the children of n, skipping n itself.
	within := func(n ast.Node, depth int) {
		v := visit(depth)
		ast.Inspect(n, func(child ast.Node) bool {
			return child == n || v(child)
		})
	}

	visit = func(depth int) func(ast.Node) bool {
		return func(child ast.Node) bool {
			switch c := child.(type) {
			case *ast.FuncLit:
				// Closures count towards the enclosing function.
				ast.Inspect(c.Body, visit(depth))

				return false
			case *ast.IfStmt:
				walkIf(c, depth+1)

				return false
			case *ast.ForStmt, *ast.RangeStmt:
				complexity++
				nesting = max(nesting, depth+1)
				within(c, depth+1)

				return false
			case *ast.SwitchStmt, *ast.TypeSwitchStmt, *ast.SelectStmt:
				nesting = max(nesting, depth+1)
				within(c, depth+1)

				return false
			case *ast.CaseClause:
				if c.List != nil {
					complexity++
				}
			case *ast.CommClause:
				if c.Comm != nil {
					complexity++
				}
			case *ast.BinaryExpr:
				if c.Op == token.LAND || c.Op == token.LOR {
					complexity++
				}
			}

			return true
		}
	}

	walkIf = func(s *ast.IfStmt, level int) {
		complexity++
		nesting = max(nesting, level)

		v := visit(level)
		if s.Init != nil {
			ast.Inspect(s.Init, v)
		}

		ast.Inspect(s.Cond, v)
		ast.Inspect(s.Body, v)

		switch e := s.Else.(type) {
		case *ast.IfStmt:
			walkIf(e, level)
		case *ast.BlockStmt:
			ast.Inspect(e, v)
		}
	}

	ast.Inspect(body, visit(0))

	return complexity, nesting
}

// isSimpleGetter matches "func (r T) X() V { return r.field }".
func isSimpleGetter(d *ast.FuncDecl, recv string) bool {
	if recv == "" || d.Body == nil || len(d.Body.List) != 1 ||
		d.Type.Params.NumFields() != 0 || d.Type.Results.NumFields() != 1 {
		return false
	}

	ret, ok := d.Body.List[0].(*ast.ReturnStmt)
	if !ok || len(ret.Results) != 1 {
		return false
	}

	return isReceiverField(ret.Results[0], recv)
}

// isSimpleSetter matches "func (r *T) SetX(v V) { r.field = v }".
func isSimpleSetter(d *ast.FuncDecl, recv string) bool {
	if recv == "" || d.Body == nil || len(d.Body.List) != 1 ||
		d.Type.Params.NumFields() != 1 || d.Type.Results.NumFields() != 0 {
		return false
	}

	params := d.Type.Params.List[0].Names
	if len(params) != 1 {
		return false
	}

	assign, ok := d.Body.List[0].(*ast.AssignStmt)
	if !ok || assign.Tok != token.ASSIGN || len(assign.Lhs) != 1 || len(assign.Rhs) != 1 {
		return false
	}

	value, ok := assign.Rhs[0].(*ast.Ident)

	return ok && value.Name == params[0].Name && isReceiverField(assign.Lhs[0], recv)
}

func isReceiverField(expr ast.Expr, recv string) bool {
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok {
		return false
	}

	ident, ok := sel.X.(*ast.Ident)

	return ok && ident.Name == recv
}
