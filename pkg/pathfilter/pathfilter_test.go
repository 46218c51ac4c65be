package pathfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{"star crosses slash", "src/*", "src/Foo.php", true},
		{"star crosses nested dirs", "src/*", "src/a/b/Foo.php", true},
		{"other prefix", "src/*", "lib/Foo.php", false},
		{"full path required", "Foo.php", "src/Foo.php", false},
		{"extension glob", "*.js", "web/app/main.js", true},
		{"extension glob miss", "*.js", "web/app/main.jsx", false},
		{"literal", "README.md", "README.md", true},
		{"question mark", "a?c", "abc", true},
		{"question mark needs char", "a?c", "ac", false},
		{"class", "file[0-9].txt", "file7.txt", true},
		{"class miss", "file[0-9].txt", "fileX.txt", false},
		{"negated class", "file[!0-9].txt", "fileX.txt", true},
		{"caret negated class", "file[^0-9].txt", "file1.txt", false},
		{"escaped star", `a\*b`, "a*b", true},
		{"escaped star literal only", `a\*b`, "axxb", false},
		{"unterminated class", "file[0-9", "file1", false},
		{"multiple stars", "*/tests/*", "pkg/x/tests/y_test.go", true},
		{"trailing stars", "src/**", "src/", true},
		{"empty pattern empty path", "", "", true},
		{"empty pattern", "", "a", false},
		{"star matches empty", "*", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, Match(tt.pattern, tt.path))
		})
	}
}

func TestMatches(t *testing.T) {
	t.Parallel()

	assert.True(t, Matches("src/Foo.php", []string{"src/*"}))
	assert.False(t, Matches("lib/Foo.php", []string{"src/*"}))
	assert.True(t, Matches("lib/Foo.php", []string{"src/*", "lib/*"}))
	assert.False(t, Matches("lib/Foo.php", nil))
}

func TestIsFiltered(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		path   string
		filter Filter
		want   bool
	}{
		{"empty filter includes everything", "any/file.go", Filter{}, false},
		{"include match", "src/a.go", Filter{Paths: []string{"src/*"}}, false},
		{"include miss", "lib/a.go", Filter{Paths: []string{"src/*"}}, true},
		{"exclude match", "vendor/a.go", Filter{ExcludedPaths: []string{"vendor/*"}}, true},
		{"exclude miss", "src/a.go", Filter{ExcludedPaths: []string{"vendor/*"}}, false},
		{
			"exclude wins over include",
			"src/gen/a.go",
			Filter{Paths: []string{"src/*"}, ExcludedPaths: []string{"src/gen/*"}},
			true,
		},
		{
			"include gate checked first",
			"lib/a.go",
			Filter{Paths: []string{"src/*"}, ExcludedPaths: []string{"src/gen/*"}},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := IsFiltered(tt.path, tt.filter)
			assert.Equal(t, tt.want, got)

			want := (len(tt.filter.Paths) > 0 && !Matches(tt.path, tt.filter.Paths)) ||
				Matches(tt.path, tt.filter.ExcludedPaths)
			assert.Equal(t, want, got)
		})
	}
}

func TestFilter_IsEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, Filter{}.IsEmpty())
	assert.False(t, Filter{Paths: []string{"*"}}.IsEmpty())
	assert.False(t, Filter{ExcludedPaths: []string{"*"}}.IsEmpty())
}
