package config

import (
	"crypto/sha1" //nolint:gosec // fingerprints are not security sensitive.
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/scrutinizer/pkg/pathfilter"
)

// ErrPath marks a lookup of a configuration path the schema does not define.
// It signals a programming error in the caller, not bad user input.
var ErrPath = errors.New("undefined configuration path")

// fingerprintLength is the number of hex characters kept from the digest.
const fingerprintLength = 8

// PathError reports the first missing segment of a configuration lookup.
type PathError struct {
	Path    string
	Segment string
}

// Error implements the error interface.
func (e *PathError) Error() string {
	return fmt.Sprintf("%s: %q has no segment %q", ErrPath, e.Path, e.Segment)
}

// Unwrap returns ErrPath.
func (e *PathError) Unwrap() error {
	return ErrPath
}

// pathOverride is one resolved path_configs entry.
type pathOverride struct {
	paths   []string
	entry   map[string]any
	partial map[string]any
	merged  map[string]any
}

// Tree is a resolved configuration document. It is immutable; lookups
// return values that callers must not modify.
type Tree struct {
	root      map[string]any
	order     []string
	overrides map[string][]pathOverride
}

func newTree(root map[string]any, schema *Schema) (*Tree, error) {
	t := &Tree{root: root, overrides: make(map[string][]pathOverride)}

	for _, as := range schema.analyzers {
		t.order = append(t.order, as.name)

		block, _ := root[as.name].(map[string]any)
		base, _ := block[KeyConfig].(map[string]any)
		entries, _ := block[KeyPathConfigs].([]any)

		for _, raw := range entries {
			entry, ok := raw.(map[string]any)
			if !ok {
				return nil, invalid(as.name+"."+KeyPathConfigs, "expected objects")
			}

			paths, _ := entry[KeyPaths].([]string)
			partial, _ := entry[KeyConfig].(map[string]any)

			t.overrides[as.name] = append(t.overrides[as.name], pathOverride{
				paths:   paths,
				entry:   entry,
				partial: partial,
				merged:  DeepMerge(base, partial),
			})
		}
	}

	return t, nil
}

// Map returns the resolved document.
func (t *Tree) Map() map[string]any { return t.root }

// AnalyzerNames returns the analyzer names in registration order.
func (t *Tree) AnalyzerNames() []string { return t.order }

// Analyzer returns the resolved block of an analyzer.
func (t *Tree) Analyzer(name string) (map[string]any, bool) {
	block, ok := t.root[name].(map[string]any)

	return block, ok
}

// Enabled reports whether the analyzer is enabled globally.
func (t *Tree) Enabled(name string) bool {
	block, ok := t.Analyzer(name)
	if !ok {
		return false
	}

	enabled, _ := block[KeyEnabled].(bool)

	return enabled
}

// Filter returns the project-wide filter.
func (t *Tree) Filter() pathfilter.Filter {
	return filterOf(t.root[KeyFilter])
}

// AnalyzerFilter returns the filter block of an analyzer.
func (t *Tree) AnalyzerFilter(name string) pathfilter.Filter {
	block, _ := t.Analyzer(name)

	return filterOf(block[KeyFilter])
}

// BeforeCommands returns the commands to run before the analyzers.
func (t *Tree) BeforeCommands() []string {
	cmds, _ := t.root[KeyBeforeCommands].([]string)

	return cmds
}

// AfterCommands returns the commands to run after the analyzers.
func (t *Tree) AfterCommands() []string {
	cmds, _ := t.root[KeyAfterCommands].([]string)

	return cmds
}

func filterOf(v any) pathfilter.Filter {
	m, _ := v.(map[string]any)
	paths, _ := m[KeyPaths].([]string)
	excluded, _ := m[KeyExcludedPaths].([]string)

	return pathfilter.Filter{Paths: paths, ExcludedPaths: excluded}
}

// Global walks the dotted path "analyzer.key.sub" from the document root.
func (t *Tree) Global(path string) (any, error) {
	return walk(t.root, path, splitPath(path))
}

// File returns the effective per-file value at "analyzer.key.sub" for the
// file at filePath. The first path_configs entry whose patterns match
// selects the merged override config; otherwise the base config is used.
func (t *Tree) File(filePath, path string) (any, error) {
	segments := splitPath(path)
	name := segments[0]

	if _, ok := t.Analyzer(name); !ok {
		return nil, &PathError{Path: path, Segment: name}
	}

	if override, ok := t.match(name, filePath); ok {
		return walk(override.merged, path, segments[1:])
	}

	return walk(t.root, path, append([]string{name, KeyConfig}, segments[1:]...))
}

// PathConfig returns the value of "analyzer.key" from the first path_configs
// entry matching filePath. The entry's own keys (such as enabled) take
// precedence over keys of its override config. Returns def when no entry
// matches or the matching entry does not set the key.
func (t *Tree) PathConfig(filePath, path string, def any) any {
	segments := splitPath(path)
	if len(segments) != 2 { //nolint:mnd // analyzer name plus one key.
		return def
	}

	override, ok := t.match(segments[0], filePath)
	if !ok {
		return def
	}

	if v, found := override.entry[segments[1]]; found && segments[1] != KeyConfig && segments[1] != KeyPaths {
		return v
	}

	if v, found := override.partial[segments[1]]; found {
		return v
	}

	return def
}

func (t *Tree) match(name, filePath string) (pathOverride, bool) {
	for _, o := range t.overrides[name] {
		if pathfilter.Matches(filePath, o.paths) {
			return o, true
		}
	}

	return pathOverride{}, false
}

// Fingerprint returns a short digest of the analyzer's resolved block.
// Equal configurations give equal fingerprints across runs.
func (t *Tree) Fingerprint(name string) string {
	block, _ := t.Analyzer(name)

	// encoding/json sorts map keys, which makes the encoding canonical.
	data, err := json.Marshal(block)
	if err != nil {
		data = fmt.Appendf(nil, "%v", block)
	}

	sum := sha1.Sum(data) //nolint:gosec // see import.

	return hex.EncodeToString(sum[:])[:fingerprintLength]
}

func splitPath(path string) []string {
	return strings.Split(path, ".")
}

func walk(root any, path string, segments []string) (any, error) {
	current := root

	for _, segment := range segments {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, &PathError{Path: path, Segment: segment}
			}

			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, &PathError{Path: path, Segment: segment}
			}

			current = node[idx]
		case []string:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, &PathError{Path: path, Segment: segment}
			}

			current = node[idx]
		default:
			return nil, &PathError{Path: path, Segment: segment}
		}
	}

	return current, nil
}

// DeepMerge returns base with override merged on top. Nested objects merge
// recursively; any other override value replaces the base value. Neither
// input is modified.
func DeepMerge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))

	for k, v := range base {
		out[k] = cloneValue(v)
	}

	for k, v := range override {
		baseChild, baseIsMap := out[k].(map[string]any)
		overrideChild, overrideIsMap := v.(map[string]any)

		if baseIsMap && overrideIsMap {
			out[k] = DeepMerge(baseChild, overrideChild)

			continue
		}

		out[k] = cloneValue(v)
	}

	return out
}

// Value asserts the result of a lookup to T. A nil value yields the zero T.
// A type mismatch is reported as ErrPath since the schema fixes every type.
func Value[T any](v any, err error) (T, error) {
	var zero T

	if err != nil {
		return zero, err
	}

	if v == nil {
		return zero, nil
	}

	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: value is %T, not %T", ErrPath, v, zero)
	}

	return typed, nil
}
