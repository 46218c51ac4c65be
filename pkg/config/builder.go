// Package config defines the analysis configuration schema, resolves raw
// configuration documents against it and answers per-file configuration
// lookups for analyzers.
//
// Every analyzer declares its own fields through a [Builder]. The resolver
// wraps those fields in a common envelope:
//
//	<analyzer>:
//	  enabled: false
//	  filter: {paths: [], excluded_paths: []}
//	  config: {...}          # per-file settings, overridable by path
//	  path_configs:          # first matching entry wins
//	    - paths: [...]
//	      enabled: true
//	      config: {...}
//	  <global settings>
package config

import (
	"fmt"
	"slices"
)

// Envelope keys shared by every analyzer.
const (
	KeyEnabled       = "enabled"
	KeyFilter        = "filter"
	KeyPaths         = "paths"
	KeyExcludedPaths = "excluded_paths"
	KeyConfig        = "config"
	KeyPathConfigs   = "path_configs"
)

// Document root keys that are not analyzers.
const (
	KeyBeforeCommands = "before_commands"
	KeyAfterCommands  = "after_commands"
)

var reservedKeys = []string{KeyEnabled, KeyFilter, KeyConfig, KeyPathConfigs}

// Builder collects one analyzer's configuration fields.
type Builder struct {
	name    string
	global  *Node
	perFile *Node
}

// NewBuilder returns a builder for the analyzer called name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name, global: NewNode(), perFile: NewNode()}
}

// Name returns the analyzer name the builder was created for.
func (b *Builder) Name() string { return b.name }

// Global returns the node holding settings applied once per project.
func (b *Builder) Global() *Node { return b.global }

// PerFile returns the node holding the "config" block, which path_configs
// entries may override for matching files.
func (b *Builder) PerFile() *Node { return b.perFile }

// Build wraps the declared fields in the common envelope.
func (b *Builder) Build() (*AnalyzerSchema, error) {
	for _, f := range b.global.Fields() {
		if slices.Contains(reservedKeys, f.Name()) {
			return nil, fmt.Errorf("analyzer %s: global field %q clashes with a reserved key", b.name, f.Name())
		}
	}

	root := NewNode()
	root.Bool(KeyEnabled, "Whether the analyzer runs.")
	root.Object(KeyFilter, "Files this analyzer looks at.", filterFields)

	for _, f := range b.global.Fields() {
		root.add(f)
	}

	if b.perFile.Len() > 0 {
		root.add(&Field{
			name:        KeyConfig,
			kind:        KindObject,
			description: "Settings applied per file; path_configs may override them.",
			children:    b.perFile,
		})
		root.List(KeyPathConfigs, "Path-scoped overrides; the first entry whose paths match a file wins.",
			func(n *Node) {
				n.StringList(KeyPaths, "Glob patterns selecting the files this entry applies to.").
					Required().
					Validate(nonEmptyList)
				n.Bool(KeyEnabled, "Whether the analyzer runs for matching files.").Default(true)
				n.add(&Field{
					name:        KeyConfig,
					kind:        KindObject,
					description: "Overrides merged over the base config block.",
					children:    b.perFile,
					partial:     true,
				})
			})
	}

	return &AnalyzerSchema{name: b.name, root: root, perFile: b.perFile}, nil
}

func filterFields(n *Node) {
	n.StringList(KeyPaths, "Include patterns; when set, a file must match one of them.")
	n.StringList(KeyExcludedPaths, "Exclude patterns; a matching file is skipped.")
}

func nonEmptyList(v any) error {
	if list, ok := v.([]string); ok && len(list) == 0 {
		return errEmptyList
	}

	return nil
}

// AnalyzerSchema is the complete, enveloped schema of one analyzer.
type AnalyzerSchema struct {
	name    string
	root    *Node
	perFile *Node
}

// Name returns the analyzer name.
func (s *AnalyzerSchema) Name() string { return s.name }

// Root returns the top-level node of the analyzer block.
func (s *AnalyzerSchema) Root() *Node { return s.root }

// HasPerFile reports whether the analyzer declared per-file settings.
func (s *AnalyzerSchema) HasPerFile() bool { return s.perFile.Len() > 0 }

// Schema is the schema of a whole configuration document.
type Schema struct {
	root      *Node
	analyzers []*AnalyzerSchema
	byName    map[string]*AnalyzerSchema
}

// NewSchema returns a schema holding only the document-level keys.
func NewSchema() *Schema {
	root := NewNode()
	root.Object(KeyFilter, "Project-wide filter applied before any analyzer sees a file.", filterFields)
	root.StringList(KeyBeforeCommands, "Shell commands run in the project root before analysis.")
	root.StringList(KeyAfterCommands, "Shell commands run in the project root after analysis.")

	return &Schema{root: root, byName: make(map[string]*AnalyzerSchema)}
}

// Add registers an analyzer schema. Names must be unique and must not clash
// with document-level keys.
func (s *Schema) Add(as *AnalyzerSchema) error {
	if _, ok := s.byName[as.name]; ok {
		return fmt.Errorf("analyzer %s: %w", as.name, ErrDuplicateAnalyzer)
	}

	if _, ok := s.root.Lookup(as.name); ok {
		return fmt.Errorf("analyzer %s: name clashes with a document key", as.name)
	}

	s.analyzers = append(s.analyzers, as)
	s.byName[as.name] = as

	return nil
}

// Analyzers returns the registered analyzer schemas in registration order.
func (s *Schema) Analyzers() []*AnalyzerSchema { return s.analyzers }

// Analyzer returns the schema registered under name.
func (s *Schema) Analyzer(name string) (*AnalyzerSchema, bool) {
	as, ok := s.byName[name]

	return as, ok
}

// Document returns the node of document-level keys.
func (s *Schema) Document() *Node { return s.root }
