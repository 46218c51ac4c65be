package config

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/scrutinizer/pkg/levenshtein"
	"github.com/Sumatoshi-tech/scrutinizer/pkg/safeconv"
)

// maxSuggestionDistance bounds the edit distance of "did you mean" hints.
const maxSuggestionDistance = 2

// Sentinel errors.
var (
	// ErrValidation marks user configuration that does not satisfy the schema.
	ErrValidation = errors.New("invalid configuration")
	// ErrDuplicateAnalyzer is returned when two analyzers share a name.
	ErrDuplicateAnalyzer = errors.New("analyzer registered twice")

	errEmptyList = errors.New("must not be empty")
)

// ValidationError reports the dotted path of an invalid configuration value.
type ValidationError struct {
	Path   string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}

	return fmt.Sprintf("%s at %q: %s", ErrValidation, e.Path, e.Reason)
}

// Unwrap returns ErrValidation so callers can use errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(path, format string, args ...any) error {
	return &ValidationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// Resolve validates raw against the schema, fills defaults and returns the
// resolved tree. Raw may come from any of the supported document formats.
func (s *Schema) Resolve(raw map[string]any) (*Tree, error) {
	if raw == nil {
		raw = map[string]any{}
	}

	raw = Normalize(raw).(map[string]any) //nolint:forcetypeassert // Normalize preserves maps.

	resolved := make(map[string]any, len(raw))

	for key := range raw {
		_, isDocKey := s.root.Lookup(key)
		_, isAnalyzer := s.byName[key]

		if !isDocKey && !isAnalyzer {
			known := s.knownKeys()
			if guess, ok := levenshtein.Closest(key, known, maxSuggestionDistance); ok {
				return nil, invalid(key, "unknown analyzer or key; did you mean %q?", guess)
			}

			return nil, invalid(key, "unknown analyzer or key; known keys are %s", strings.Join(known, ", "))
		}
	}

	for _, f := range s.root.Fields() {
		value, err := resolveField(f, raw[f.name], hasKey(raw, f.name), f.name, true)
		if err != nil {
			return nil, err
		}

		resolved[f.name] = value
	}

	for _, as := range s.analyzers {
		value, err := resolveAnalyzer(as, raw[as.name], hasKey(raw, as.name), as.name)
		if err != nil {
			return nil, err
		}

		resolved[as.name] = value
	}

	return newTree(resolved, s)
}

func (s *Schema) knownKeys() []string {
	keys := make([]string, 0, s.root.Len()+len(s.analyzers))

	for _, f := range s.root.Fields() {
		keys = append(keys, f.name)
	}

	for _, as := range s.analyzers {
		keys = append(keys, as.name)
	}

	return keys
}

// resolveAnalyzer applies the enable shorthands before resolving the block:
// a missing key disables, null and true enable with defaults, false disables,
// and an object without an explicit "enabled" key counts as enabled.
func resolveAnalyzer(as *AnalyzerSchema, raw any, present bool, path string) (map[string]any, error) {
	var block map[string]any

	switch v := raw.(type) {
	case nil:
		block = map[string]any{KeyEnabled: present}
	case bool:
		block = map[string]any{KeyEnabled: v}
	case map[string]any:
		block = make(map[string]any, len(v)+1)
		for k, val := range v {
			block[k] = val
		}

		if _, ok := block[KeyEnabled]; !ok {
			block[KeyEnabled] = true
		}
	default:
		return nil, invalid(path, "expected an object or a boolean, got %T", raw)
	}

	return resolveObject(as.root, block, path, true)
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]

	return ok
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}

	return parent + "." + key
}

// resolveObject resolves raw against node. Without defaults only the keys
// present in raw appear in the result.
func resolveObject(node *Node, raw any, path string, withDefaults bool) (map[string]any, error) {
	var in map[string]any

	switch v := raw.(type) {
	case nil:
		in = map[string]any{}
	case map[string]any:
		in = v
	default:
		return nil, invalid(path, "expected an object, got %T", raw)
	}

	for key := range in {
		if _, ok := node.Lookup(key); !ok {
			if guess, found := levenshtein.Closest(key, node.names(), maxSuggestionDistance); found {
				return nil, invalid(joinPath(path, key), "unrecognized option; did you mean %q?", guess)
			}

			return nil, invalid(joinPath(path, key), "unrecognized option")
		}
	}

	out := make(map[string]any, len(node.fields))

	for _, f := range node.fields {
		present := hasKey(in, f.name)
		if !present && !withDefaults {
			continue
		}

		value, err := resolveField(f, in[f.name], present, joinPath(path, f.name), withDefaults)
		if err != nil {
			return nil, err
		}

		out[f.name] = value
	}

	return out, nil
}

func resolveField(f *Field, raw any, present bool, path string, withDefaults bool) (any, error) {
	if !present || raw == nil {
		if f.required {
			return nil, invalid(path, "is required")
		}

		return defaultFor(f, path)
	}

	value, err := convert(f, raw, path, withDefaults && !f.partial)
	if err != nil {
		return nil, err
	}

	return value, runValidators(f, value, path)
}

func defaultFor(f *Field, path string) (any, error) {
	if f.hasDefault {
		return Normalize(cloneValue(f.def)), nil
	}

	if f.kind == KindObject && !f.partial {
		return resolveObject(f.children, nil, path, true)
	}

	return nil, nil //nolint:nilnil // absent optional values resolve to nil.
}

func runValidators(f *Field, value any, path string) error {
	for _, validate := range f.validators {
		if err := validate(value); err != nil {
			return invalid(path, "%s", err.Error())
		}
	}

	return nil
}

func convert(f *Field, raw any, path string, withDefaults bool) (any, error) {
	switch f.kind {
	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, invalid(path, "expected a boolean, got %T", raw)
		}

		return b, nil
	case KindInt:
		return convertInt(f, raw, path)
	case KindFloat:
		if !safeconv.IsNumber(raw) {
			return nil, invalid(path, "expected a number, got %T", raw)
		}

		return safeconv.ToFloat(raw)
	case KindString:
		return convertString(raw, path)
	case KindStringList:
		return convertStringList(raw, path)
	case KindEnum:
		s, err := convertString(raw, path)
		if err != nil {
			return nil, err
		}

		if !slices.Contains(f.choices, s) {
			return nil, invalid(path, "value %q is not allowed; permissible values: %s", s, strings.Join(f.choices, ", "))
		}

		return s, nil
	case KindObject:
		return resolveObject(f.children, raw, path, withDefaults)
	case KindList:
		return convertList(f, raw, path, withDefaults)
	case KindAny:
		return raw, nil
	default:
		return nil, invalid(path, "unsupported field kind %s", f.kind)
	}
}

func convertInt(f *Field, raw any, path string) (any, error) {
	if !safeconv.IsNumber(raw) {
		return nil, invalid(path, "expected an integer, got %T", raw)
	}

	n, err := safeconv.ToInt(raw)
	if err != nil {
		return nil, invalid(path, "%s", err.Error())
	}

	if f.minInt != nil && n < *f.minInt {
		return nil, invalid(path, "%d is less than the minimum %d", n, *f.minInt)
	}

	if f.maxInt != nil && n > *f.maxInt {
		return nil, invalid(path, "%d is greater than the maximum %d", n, *f.maxInt)
	}

	return n, nil
}

func convertString(raw any, path string) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", invalid(path, "expected a string, got %T", raw)
	}
}

func convertStringList(raw any, path string) ([]string, error) {
	switch v := raw.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return slices.Clone(v), nil
	case []any:
		out := make([]string, 0, len(v))

		for i, item := range v {
			s, err := convertString(item, path+"."+strconv.Itoa(i))
			if err != nil {
				return nil, err
			}

			out = append(out, s)
		}

		return out, nil
	default:
		return nil, invalid(path, "expected a list of strings, got %T", raw)
	}
}

func convertList(f *Field, raw any, path string, withDefaults bool) ([]any, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, invalid(path, "expected a list, got %T", raw)
	}

	out := make([]any, 0, len(items))

	for i, item := range items {
		resolved, err := resolveObject(f.children, item, path+"."+strconv.Itoa(i), withDefaults)
		if err != nil {
			return nil, err
		}

		out = append(out, resolved)
	}

	return out, nil
}

// Normalize converts decoded documents into the shapes the resolver works
// with: map[string]any for objects, []any for lists, int for integers.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Normalize(val)
		}

		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = Normalize(val)
		}

		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}

		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}

		return out
	case []string:
		return slices.Clone(t)
	case int64, int32, int16, int8, uint, uint64, uint32, uint16, uint8:
		if n, err := safeconv.ToInt(t); err == nil {
			return n
		}

		return t
	case float32:
		return float64(t)
	default:
		return v
	}
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}

		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}

		return out
	case []string:
		return slices.Clone(t)
	default:
		return v
	}
}
