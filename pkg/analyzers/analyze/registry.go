package analyze

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/scrutinizer/pkg/config"
)

// ErrDuplicateName is returned when two analyzers share a name.
var ErrDuplicateName = errors.New("analyzer name already registered")

// Registry holds analyzers in registration order, which is also the order
// they run in.
type Registry struct {
	analyzers []Analyzer
	index     map[string]Analyzer
}

// NewRegistry registers the given analyzers.
func NewRegistry(analyzers ...Analyzer) (*Registry, error) {
	r := &Registry{index: make(map[string]Analyzer, len(analyzers))}

	for _, a := range analyzers {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Register appends a.
func (r *Registry) Register(a Analyzer) error {
	if _, exists := r.index[a.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateName, a.Name())
	}

	r.analyzers = append(r.analyzers, a)
	r.index[a.Name()] = a

	return nil
}

// Analyzers returns the analyzers in registration order.
func (r *Registry) Analyzers() []Analyzer {
	return r.analyzers
}

// Lookup returns the analyzer called name.
func (r *Registry) Lookup(name string) (Analyzer, bool) {
	a, ok := r.index[name]

	return a, ok
}

// Names returns the analyzer names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.analyzers))
	for i, a := range r.analyzers {
		names[i] = a.Name()
	}

	return names
}

// Schema builds the configuration schema covering every registered analyzer.
func (r *Registry) Schema() (*config.Schema, error) {
	schema := config.NewSchema()

	for _, a := range r.analyzers {
		as, err := BuildSchema(a)
		if err != nil {
			return nil, err
		}

		if err := schema.Add(as); err != nil {
			return nil, fmt.Errorf("register schema of %s: %w", a.Name(), err)
		}
	}

	return schema, nil
}
