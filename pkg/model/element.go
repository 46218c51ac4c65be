package model

import (
	"maps"
	"slices"
	"sync"
)

// Well-known code element types.
const (
	ElementPackage   = "package"
	ElementClass     = "class"
	ElementOperation = "operation"
)

// Well-known code element flags.
const (
	FlagSimpleGetter = "simple-getter"
	FlagSimpleSetter = "simple-setter"
)

// Location points at a span of a file. Zero lines mean unknown.
type Location struct {
	Filename  string
	StartLine int
	EndLine   int
}

type elementKey struct {
	typ  string
	name string
}

// CodeElement is a structural unit of the project (package, class,
// operation) carrying its own metrics. All elements of a project share one
// lock because analyzers link and measure them across files.
type CodeElement struct {
	typ  string
	name string

	mu         *sync.Mutex
	metrics    map[string]float64
	children   []*CodeElement
	childIndex map[elementKey]struct{}
	location   *Location
	flags      map[string]struct{}
}

// NewCodeElement creates a standalone element with its own lock. Elements
// owned by a project are obtained through [Project.CodeElement].
func NewCodeElement(typ, name string) *CodeElement {
	return newCodeElement(typ, name, &sync.Mutex{})
}

func newCodeElement(typ, name string, mu *sync.Mutex) *CodeElement {
	return &CodeElement{
		typ:        typ,
		name:       name,
		mu:         mu,
		metrics:    make(map[string]float64),
		childIndex: make(map[elementKey]struct{}),
		flags:      make(map[string]struct{}),
	}
}

// Type returns the element type.
func (e *CodeElement) Type() string { return e.typ }

// Name returns the fully qualified name.
func (e *CodeElement) Name() string { return e.name }

// SetMetric stores a metric, overwriting an earlier value.
func (e *CodeElement) SetMetric(key string, value float64) {
	e.mu.Lock()
	e.metrics[key] = value
	e.mu.Unlock()
}

// Metric returns one metric.
func (e *CodeElement) Metric(key string) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, ok := e.metrics[key]

	return v, ok
}

// Metrics returns a copy of all metrics.
func (e *CodeElement) Metrics() map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return maps.Clone(e.metrics)
}

// AddChild links child below e. Adding a child with the same type and name
// again is a no-op; it reports whether the child was new.
func (e *CodeElement) AddChild(child *CodeElement) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := elementKey{typ: child.typ, name: child.name}
	if _, ok := e.childIndex[key]; ok {
		return false
	}

	e.childIndex[key] = struct{}{}
	e.children = append(e.children, child)

	return true
}

// Children returns the children in insertion order.
func (e *CodeElement) Children() []*CodeElement {
	e.mu.Lock()
	defer e.mu.Unlock()

	return slices.Clone(e.children)
}

// SetLocation records where the element is defined.
func (e *CodeElement) SetLocation(loc Location) {
	e.mu.Lock()
	e.location = &loc
	e.mu.Unlock()
}

// Location returns the definition site, if known.
func (e *CodeElement) Location() (Location, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.location == nil {
		return Location{}, false
	}

	return *e.location, true
}

// SetFlag adds a tag such as [FlagSimpleGetter].
func (e *CodeElement) SetFlag(flag string) {
	e.mu.Lock()
	e.flags[flag] = struct{}{}
	e.mu.Unlock()
}

// HasFlag reports whether the tag is set.
func (e *CodeElement) HasFlag(flag string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.flags[flag]

	return ok
}

// Flags returns the tags, sorted.
func (e *CodeElement) Flags() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return slices.Sorted(maps.Keys(e.flags))
}
