// Package codestyle_test enforces repository-wide conventions that gofmt and
// go vet do not cover.
package codestyle_test

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/require"
	"golang.org/x/mod/modfile"
)

// sourceFile is a parsed non-test, non-generated Go file.
type sourceFile struct {
	rel  string
	ast  *ast.File
	fset *token.FileSet
}

// repo is the module under test.
type repo struct {
	root       string
	modulePath string
	files      []sourceFile
}

func loadRepo(t *testing.T) repo {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, statErr := os.Stat(filepath.Join(dir, "go.mod")); statErr == nil {
			break
		}

		parent := filepath.Dir(dir)
		require.NotEqual(t, dir, parent, "no go.mod above the test directory")

		dir = parent
	}

	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	require.NoError(t, err)

	r := repo{root: dir, modulePath: modfile.ModulePath(data)}
	require.NotEmpty(t, r.modulePath)

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			if path != dir && skipDir(d.Name()) {
				return filepath.SkipDir
			}

			return nil
		}

		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		fset := token.NewFileSet()

		parsed, parseErr := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if parseErr != nil {
			return fmt.Errorf("parse %s: %w", path, parseErr)
		}

		if ast.IsGenerated(parsed) {
			return nil
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return fmt.Errorf("relative path of %s: %w", path, relErr)
		}

		r.files = append(r.files, sourceFile{rel: filepath.ToSlash(rel), ast: parsed, fset: fset})

		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, r.files)

	return r
}

// skipDir matches directories the go tool ignores plus fixtures.
func skipDir(name string) bool {
	switch name {
	case "vendor", "testdata", "node_modules":
		return true
	default:
		return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
	}
}

func report(t *testing.T, what string, violations []string) {
	t.Helper()

	if len(violations) > 0 {
		t.Errorf("found %d %s:\n\n%s", len(violations), what, strings.Join(violations, "\n\n"))
	}
}

func (f sourceFile) pos(p token.Pos) string {
	return fmt.Sprintf("%s:%d", f.rel, f.fset.Position(p).Line)
}

// typeSpecs calls fn for every top-level type declaration of f.
func (f sourceFile) typeSpecs(fn func(*ast.TypeSpec)) {
	for _, decl := range f.ast.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}

		for _, spec := range gen.Specs {
			if ts, isType := spec.(*ast.TypeSpec); isType {
				fn(ts)
			}
		}
	}
}

// Grab-bag file names and where their content belongs instead.
var bannedFilenames = map[string]string{
	"types.go":     "declare types next to the code that uses them",
	"utils.go":     "move each function into the file that owns its domain",
	"helpers.go":   "move each function into the file that owns its domain",
	"common.go":    "move each symbol into the file that owns its concept",
	"constants.go": "declare constants where they are used",
	"errors.go":    "declare sentinel errors next to the functions returning them",
}

func TestNoBannedFilenames(t *testing.T) {
	t.Parallel()

	r := loadRepo(t)

	var violations []string

	for _, f := range r.files {
		if fix, banned := bannedFilenames[filepath.Base(f.rel)]; banned {
			violations = append(violations, fmt.Sprintf("%s: %s", f.rel, fix))
		}
	}

	report(t, "grab-bag file name(s)", violations)
}

// maxInterfaceMethods bounds interfaces; capabilities compose by embedding.
const maxInterfaceMethods = 5

func TestNoFatInterfaces(t *testing.T) {
	t.Parallel()

	r := loadRepo(t)

	var violations []string

	for _, f := range r.files {
		f.typeSpecs(func(ts *ast.TypeSpec) {
			iface, ok := ts.Type.(*ast.InterfaceType)
			if !ok {
				return
			}

			methods := 0

			for _, m := range iface.Methods.List {
				if _, isFunc := m.Type.(*ast.FuncType); isFunc {
					methods++
				}
			}

			if methods > maxInterfaceMethods {
				violations = append(violations, fmt.Sprintf(
					"%s: interface %s has %d methods (max %d); split it and embed the parts",
					f.pos(ts.Pos()), ts.Name.Name, methods, maxInterfaceMethods))
			}
		})
	}

	report(t, "fat interface(s)", violations)
}

var bannedPackageNames = map[string]bool{
	"util": true, "utils": true, "misc": true, "shared": true, "common": true, "base": true, "helpers": true,
}

func TestNoGrabBagPackages(t *testing.T) {
	t.Parallel()

	r := loadRepo(t)
	seen := make(map[string]bool)

	var violations []string

	for _, f := range r.files {
		name := f.ast.Name.Name
		if bannedPackageNames[name] && !seen[name] {
			seen[name] = true
			violations = append(violations, fmt.Sprintf(
				"%s: package %q says nothing about what it provides", f.rel, name))
		}
	}

	report(t, "grab-bag package(s)", violations)
}

// stutters reports whether exported repeats the package name at a word
// boundary, returning the remainder:
//
//	cache.CacheLayer -> ("Layer", true)
//	analyze.Analyzer -> ("", false)
//	config.Config    -> ("", false)
func stutters(pkg, exported string) (string, bool) {
	titled := strings.ToUpper(pkg[:1]) + pkg[1:]

	rest, found := strings.CutPrefix(exported, titled)
	if !found || rest == "" {
		return "", false
	}

	first := rune(rest[0])

	return rest, unicode.IsUpper(first) || unicode.IsDigit(first)
}

func TestStutters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pkg, name, rest string
		want            bool
	}{
		{"cache", "CacheLayer", "Layer", true},
		{"model", "Model2", "2", true},
		{"analyze", "Analyzer", "", false},
		{"config", "Config", "", false},
		{"ingest", "Result", "", false},
	}

	for _, tt := range tests {
		rest, got := stutters(tt.pkg, tt.name)
		require.Equal(t, tt.want, got, tt.name)

		if got {
			require.Equal(t, tt.rest, rest, tt.name)
		}
	}
}

func TestNoStutteringExports(t *testing.T) {
	t.Parallel()

	r := loadRepo(t)

	var violations []string

	for _, f := range r.files {
		pkg := f.ast.Name.Name
		if pkg == "main" {
			continue
		}

		f.typeSpecs(func(ts *ast.TypeSpec) {
			if !ts.Name.IsExported() {
				return
			}

			if rest, bad := stutters(pkg, ts.Name.Name); bad {
				violations = append(violations, fmt.Sprintf(
					"%s: %s.%s reads twice; rename it to %s", f.pos(ts.Pos()), pkg, ts.Name.Name, rest))
			}
		})
	}

	report(t, "stuttering export(s)", violations)
}

// TestPkgDoesNotImportInternal keeps the engine packages usable from other
// modules: pkg/ never reaches into internal/ or cmd/.
func TestPkgDoesNotImportInternal(t *testing.T) {
	t.Parallel()

	r := loadRepo(t)
	forbidden := []string{r.modulePath + "/internal/", r.modulePath + "/cmd/"}

	var violations []string

	for _, f := range r.files {
		if !strings.HasPrefix(f.rel, "pkg/") {
			continue
		}

		for _, imp := range f.ast.Imports {
			path, err := strconv.Unquote(imp.Path.Value)
			require.NoError(t, err)

			for _, prefix := range forbidden {
				if strings.HasPrefix(path, prefix) {
					violations = append(violations, fmt.Sprintf("%s imports %s", f.pos(imp.Pos()), path))
				}
			}
		}
	}

	report(t, "layering violation(s)", violations)
}

// TestSentinelErrorMessages checks errors.New sentinels follow the Go error
// string rules: lowercase first letter and no trailing punctuation.
func TestSentinelErrorMessages(t *testing.T) {
	t.Parallel()

	r := loadRepo(t)

	var violations []string

	for _, f := range r.files {
		for _, decl := range f.ast.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok || gen.Tok != token.VAR {
				continue
			}

			for _, spec := range gen.Specs {
				vs, isValue := spec.(*ast.ValueSpec)
				if !isValue {
					continue
				}

				for i, name := range vs.Names {
					if !strings.HasPrefix(name.Name, "Err") || i >= len(vs.Values) {
						continue
					}

					msg, found := errorsNewMessage(vs.Values[i])
					if !found || msg == "" {
						continue
					}

					first := rune(msg[0])
					last := msg[len(msg)-1]

					if unicode.IsUpper(first) || strings.ContainsRune(".!:\n", rune(last)) {
						violations = append(violations, fmt.Sprintf(
							"%s: %s message %q must start lowercase and end without punctuation",
							f.pos(name.Pos()), name.Name, msg))
					}
				}
			}
		}
	}

	report(t, "sentinel message(s)", violations)
}

// errorsNewMessage returns the literal prefix of an errors.New argument.
func errorsNewMessage(expr ast.Expr) (string, bool) {
	call, ok := expr.(*ast.CallExpr)
	if !ok || len(call.Args) != 1 {
		return "", false
	}

	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "New" {
		return "", false
	}

	if pkg, isIdent := sel.X.(*ast.Ident); !isIdent || pkg.Name != "errors" {
		return "", false
	}

	arg := call.Args[0]
	if bin, isBin := arg.(*ast.BinaryExpr); isBin {
		arg = bin.X
	}

	lit, ok := arg.(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return "", false
	}

	msg, err := strconv.Unquote(lit.Value)

	return msg, err == nil
}

// logMessagePattern is the "component: event" shape of every log message.
var logMessagePattern = regexp.MustCompile(`^[a-z][a-z_]*: [a-z]`)

// logMethods maps slog method names to the index of their message argument.
var logMethods = map[string]int{
	"Debug":        0,
	"Info":         0,
	"Warn":         0,
	"DebugContext": 1,
	"InfoContext":  1,
	"WarnContext":  1,
	"ErrorContext": 1,
}

// TestLogMessagesNameTheirComponent verifies that literal log messages start
// with the emitting component, e.g. "cache: memory layer".
func TestLogMessagesNameTheirComponent(t *testing.T) {
	t.Parallel()

	r := loadRepo(t)

	var violations []string

	for _, f := range r.files {
		ast.Inspect(f.ast, func(n ast.Node) bool {
			call, isCall := n.(*ast.CallExpr)
			if !isCall {
				return true
			}

			sel, isSel := call.Fun.(*ast.SelectorExpr)
			if !isSel {
				return true
			}

			idx, isLog := logMethods[sel.Sel.Name]
			if !isLog || len(call.Args) <= idx {
				return true
			}

			lit, isLit := call.Args[idx].(*ast.BasicLit)
			if !isLit || lit.Kind != token.STRING {
				return true
			}

			msg, err := strconv.Unquote(lit.Value)
			if err != nil || logMessagePattern.MatchString(msg) {
				return true
			}

			violations = append(violations, fmt.Sprintf(
				"%s: log message %q must start with its component, e.g. \"scrutinizer: %s\"",
				f.pos(lit.Pos()), msg, msg))

			return true
		})
	}

	report(t, "unprefixed log message(s)", violations)
}
