// Package model holds the in-memory result of an analysis run: the files
// under review with their comments, line attributes, metrics and proposed
// fixes, plus project-wide metrics and structural code elements.
package model

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/Sumatoshi-tech/scrutinizer/pkg/config"
)

// Sentinel errors.
var (
	ErrDuplicateFile    = errors.New("file already part of the project")
	ErrConfigAlreadySet = errors.New("project configuration already set")
	ErrNoConfig         = errors.New("project configuration not set")
)

// Project is the set of files under analysis. Files are added while the
// project is built and never removed afterwards.
type Project struct {
	directory string

	files []*File
	index map[string]*File

	configMu sync.RWMutex
	tree     *config.Tree

	elementsMu   sync.Mutex
	elements     map[elementKey]*CodeElement
	elementOrder []*CodeElement

	metricsMu     sync.Mutex
	simpleMetrics map[string]float64
}

// NewProject creates an empty project rooted at directory.
func NewProject(directory string) *Project {
	return &Project{
		directory:     directory,
		index:         make(map[string]*File),
		elements:      make(map[elementKey]*CodeElement),
		simpleMetrics: make(map[string]float64),
	}
}

// Directory returns the analyzed root directory.
func (p *Project) Directory() string { return p.directory }

// AddFile registers f. Registering a second file with the same path fails
// with ErrDuplicateFile. Files must be added before analyzers run.
func (p *Project) AddFile(f *File) error {
	if _, ok := p.index[f.Path()]; ok {
		return fmt.Errorf("%s: %w", f.Path(), ErrDuplicateFile)
	}

	p.index[f.Path()] = f
	p.files = append(p.files, f)

	return nil
}

// File returns the file at path.
func (p *Project) File(filePath string) (*File, bool) {
	f, ok := p.index[filePath]

	return f, ok
}

// HasFile reports whether path is part of the project.
func (p *Project) HasFile(filePath string) bool {
	_, ok := p.index[filePath]

	return ok
}

// IsAnalyzed reports whether path survived the project filter.
func (p *Project) IsAnalyzed(filePath string) bool {
	return p.HasFile(filePath)
}

// Files returns the files in the order they were added.
func (p *Project) Files() []*File {
	return slices.Clone(p.files)
}

// SetConfig stores the resolved configuration. It may be called once.
func (p *Project) SetConfig(tree *config.Tree) error {
	p.configMu.Lock()
	defer p.configMu.Unlock()

	if p.tree != nil {
		return ErrConfigAlreadySet
	}

	p.tree = tree

	return nil
}

// Config returns the resolved configuration, nil before [Project.SetConfig].
func (p *Project) Config() *config.Tree {
	p.configMu.RLock()
	defer p.configMu.RUnlock()

	return p.tree
}

func (p *Project) configTree() (*config.Tree, error) {
	tree := p.Config()
	if tree == nil {
		return nil, ErrNoConfig
	}

	return tree, nil
}

// GlobalConfig looks up "analyzer.key.sub" in the resolved configuration.
func (p *Project) GlobalConfig(path string) (any, error) {
	tree, err := p.configTree()
	if err != nil {
		return nil, err
	}

	return tree.Global(path)
}

// FileConfig looks up the effective per-file value of "analyzer.key" for f.
func (p *Project) FileConfig(f *File, path string) (any, error) {
	tree, err := p.configTree()
	if err != nil {
		return nil, err
	}

	return tree.File(f.Path(), path)
}

// PathConfig returns the path-scoped value of "analyzer.key" for f, or def.
func (p *Project) PathConfig(f *File, path string, def any) any {
	tree := p.Config()
	if tree == nil {
		return def
	}

	return tree.PathConfig(f.Path(), path, def)
}

// CodeElement returns the element with the given type and name, creating it
// on first use.
func (p *Project) CodeElement(typ, name string) *CodeElement {
	p.elementsMu.Lock()
	defer p.elementsMu.Unlock()

	key := elementKey{typ: typ, name: name}
	if e, ok := p.elements[key]; ok {
		return e
	}

	e := newCodeElement(typ, name, &p.elementsMu)

	p.elements[key] = e
	p.elementOrder = append(p.elementOrder, e)

	return e
}

// LookupCodeElement returns an existing element.
func (p *Project) LookupCodeElement(typ, name string) (*CodeElement, bool) {
	p.elementsMu.Lock()
	defer p.elementsMu.Unlock()

	e, ok := p.elements[elementKey{typ: typ, name: name}]

	return e, ok
}

// CodeElements returns all elements in creation order.
func (p *Project) CodeElements() []*CodeElement {
	p.elementsMu.Lock()
	defer p.elementsMu.Unlock()

	return slices.Clone(p.elementOrder)
}

// SetSimpleValuedMetric stores a project metric, overwriting earlier values.
func (p *Project) SetSimpleValuedMetric(key string, value float64) {
	p.metricsMu.Lock()
	p.simpleMetrics[key] = value
	p.metricsMu.Unlock()
}

// SimpleValuedMetric returns one project metric.
func (p *Project) SimpleValuedMetric(key string) (float64, bool) {
	p.metricsMu.Lock()
	defer p.metricsMu.Unlock()

	v, ok := p.simpleMetrics[key]

	return v, ok
}

// SimpleValuedMetrics returns a copy of the project metrics.
func (p *Project) SimpleValuedMetrics() map[string]float64 {
	p.metricsMu.Lock()
	defer p.metricsMu.Unlock()

	return maps.Clone(p.simpleMetrics)
}
