// Package pathfilter decides whether project-relative paths are included in an
// analysis, using fnmatch-style glob patterns that must match the whole path.
//
// Unlike [path.Match], a '*' in a pattern also matches '/' so that "src/*"
// selects every file below src/ regardless of depth.
package pathfilter

// Filter is an include/exclude pattern pair as found in a "filter" block.
type Filter struct {
	Paths         []string `json:"paths" yaml:"paths"`
	ExcludedPaths []string `json:"excluded_paths" yaml:"excluded_paths"`
}

// IsEmpty reports whether the filter has neither include nor exclude patterns.
func (f Filter) IsEmpty() bool {
	return len(f.Paths) == 0 && len(f.ExcludedPaths) == 0
}

// IsFiltered reports whether path is filtered out by f.
//
// A path is filtered out when include patterns exist and none of them match,
// or when any exclude pattern matches.
func IsFiltered(path string, f Filter) bool {
	if len(f.Paths) > 0 && !Matches(path, f.Paths) {
		return true
	}

	return Matches(path, f.ExcludedPaths)
}

// Matches reports whether any pattern in patterns matches the entire path.
func Matches(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if Match(pattern, path) {
			return true
		}
	}

	return false
}

// Match reports whether name matches the shell pattern.
//
// Supported syntax: '*' (any run of characters, '/' included), '?' (any single
// character), '[...]' character classes with ranges and '!' or '^' negation, and
// '\' to escape the next character. Malformed classes never match.
func Match(pattern, name string) bool {
	px, nx := 0, 0

	// Backtracking point for the most recent '*'.
	starPx, starNx := -1, -1

	for nx < len(name) {
		if px < len(pattern) {
			switch pattern[px] {
			case '*':
				starPx = px
				starNx = nx
				px++

				continue
			case '?':
				px++
				nx++

				continue
			case '[':
				matched, width, ok := matchClass(pattern[px:], name[nx])
				if ok && matched {
					px += width
					nx++

					continue
				}
			case '\\':
				if px+1 < len(pattern) && pattern[px+1] == name[nx] {
					px += 2
					nx++

					continue
				}
			default:
				if pattern[px] == name[nx] {
					px++
					nx++

					continue
				}
			}
		}

		if starPx < 0 {
			return false
		}

		starNx++
		px = starPx + 1
		nx = starNx
	}

	for px < len(pattern) && pattern[px] == '*' {
		px++
	}

	return px == len(pattern)
}

// matchClass matches ch against the character class at the start of class.
// It returns whether ch matched, the width of the class expression in bytes, and
// false as the last value when the class is not terminated.
func matchClass(class string, ch byte) (matched bool, width int, ok bool) {
	idx := 1
	negate := false

	if idx < len(class) && (class[idx] == '!' || class[idx] == '^') {
		negate = true
		idx++
	}

	first := true

	for idx < len(class) {
		if class[idx] == ']' && !first {
			return matched != negate, idx + 1, true
		}

		first = false

		lo := class[idx]
		if lo == '\\' && idx+1 < len(class) {
			idx++
			lo = class[idx]
		}

		idx++

		hi := lo

		if idx+1 < len(class) && class[idx] == '-' && class[idx+1] != ']' {
			hi = class[idx+1]
			idx += 2
		}

		if lo <= ch && ch <= hi {
			matched = true
		}
	}

	return false, 0, false
}
