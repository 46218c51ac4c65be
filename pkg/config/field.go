package config

import (
	"fmt"
	"strings"
)

// Kind identifies the value type a field accepts.
type Kind int

// Field kinds.
const (
	KindBool Kind = iota
	KindInt
	KindFloat
	KindString
	KindStringList
	KindEnum
	KindObject
	KindList
	KindAny
)

var kindNames = map[Kind]string{
	KindBool:       "bool",
	KindInt:        "int",
	KindFloat:      "float",
	KindString:     "string",
	KindStringList: "string list",
	KindEnum:       "enum",
	KindObject:     "object",
	KindList:       "list",
	KindAny:        "any",
}

// String returns the human-readable kind name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

// ValidatorFunc checks an already type-converted value. A returned error is
// reported as a [ValidationError] at the field's path.
type ValidatorFunc func(value any) error

// Field describes one configuration key. Fields are created through the
// typed constructors on [Node] and refined with the chainable setters.
type Field struct {
	name        string
	kind        Kind
	description string
	def         any
	hasDefault  bool
	required    bool
	choices     []string
	minInt      *int
	maxInt      *int
	children    *Node
	validators  []ValidatorFunc

	// partial objects are resolved without filling defaults.
	partial bool
}

// Name returns the key of the field inside its parent object.
func (f *Field) Name() string { return f.name }

// Kind returns the field kind.
func (f *Field) Kind() Kind { return f.kind }

// Description returns the documentation string.
func (f *Field) Description() string { return f.description }

// Choices returns the allowed values of an enum field.
func (f *Field) Choices() []string { return f.choices }

// Children returns the nested node of object and list fields, nil otherwise.
func (f *Field) Children() *Node { return f.children }

// DefaultValue returns the configured default and whether one was set.
func (f *Field) DefaultValue() (any, bool) { return f.def, f.hasDefault }

// IsRequired reports whether the field must be present in the input.
func (f *Field) IsRequired() bool { return f.required }

// Default sets the value used when the key is omitted.
func (f *Field) Default(v any) *Field {
	f.def = v
	f.hasDefault = true

	return f
}

// Required marks the key as mandatory. Required fields have no default.
func (f *Field) Required() *Field {
	f.required = true
	f.hasDefault = false
	f.def = nil

	return f
}

// Min sets the inclusive lower bound of an int field.
func (f *Field) Min(v int) *Field {
	f.minInt = &v

	return f
}

// Max sets the inclusive upper bound of an int field.
func (f *Field) Max(v int) *Field {
	f.maxInt = &v

	return f
}

// Validate appends a custom validator.
func (f *Field) Validate(fn ValidatorFunc) *Field {
	f.validators = append(f.validators, fn)

	return f
}

// Node is an object in the schema: an ordered set of named fields.
type Node struct {
	fields []*Field
	index  map[string]*Field
}

// NewNode returns an empty object node.
func NewNode() *Node {
	return &Node{index: make(map[string]*Field)}
}

// Fields returns the fields in declaration order.
func (n *Node) Fields() []*Field { return n.fields }

// Lookup returns the field with the given key.
func (n *Node) Lookup(name string) (*Field, bool) {
	f, ok := n.index[name]

	return f, ok
}

// Len returns the number of declared fields.
func (n *Node) Len() int { return len(n.fields) }

func (n *Node) names() []string {
	names := make([]string, len(n.fields))
	for i, f := range n.fields {
		names[i] = f.name
	}

	return names
}

// Bool declares a boolean field defaulting to false.
func (n *Node) Bool(name, description string) *Field {
	return n.add(&Field{name: name, kind: KindBool, description: description}).Default(false)
}

// Int declares an integer field.
func (n *Node) Int(name, description string) *Field {
	return n.add(&Field{name: name, kind: KindInt, description: description})
}

// Float declares a floating point field.
func (n *Node) Float(name, description string) *Field {
	return n.add(&Field{name: name, kind: KindFloat, description: description})
}

// String declares a string field.
func (n *Node) String(name, description string) *Field {
	return n.add(&Field{name: name, kind: KindString, description: description})
}

// StringList declares a list-of-strings field defaulting to an empty list.
func (n *Node) StringList(name, description string) *Field {
	return n.add(&Field{name: name, kind: KindStringList, description: description}).Default([]string{})
}

// Enum declares a string field restricted to choices.
func (n *Node) Enum(name, description string, choices ...string) *Field {
	return n.add(&Field{name: name, kind: KindEnum, description: description, choices: choices})
}

// Object declares a nested object whose fields are declared by build.
func (n *Node) Object(name, description string, build func(*Node)) *Field {
	child := NewNode()
	if build != nil {
		build(child)
	}

	return n.add(&Field{name: name, kind: KindObject, description: description, children: child})
}

// List declares a list of objects, each shaped by build.
func (n *Node) List(name, description string, build func(*Node)) *Field {
	child := NewNode()
	if build != nil {
		build(child)
	}

	f := n.add(&Field{name: name, kind: KindList, description: description, children: child})

	return f.Default([]any{})
}

// Any declares a free-form field accepting arbitrary data.
func (n *Node) Any(name, description string) *Field {
	return n.add(&Field{name: name, kind: KindAny, description: description})
}

// add registers f, replacing an earlier field of the same name in place.
func (n *Node) add(f *Field) *Field {
	if n.index == nil {
		n.index = make(map[string]*Field)
	}

	if existing, ok := n.index[f.name]; ok {
		for i, candidate := range n.fields {
			if candidate == existing {
				n.fields[i] = f
			}
		}
	} else {
		n.fields = append(n.fields, f)
	}

	n.index[f.name] = f

	return f
}

// RequireToken returns a validator that rejects strings containing none of
// the given tokens, e.g. a command template lacking a "%pathname%" placeholder.
func RequireToken(tokens ...string) ValidatorFunc {
	return func(value any) error {
		s, ok := value.(string)
		if !ok {
			return nil
		}

		for _, token := range tokens {
			if strings.Contains(s, token) {
				return nil
			}
		}

		return fmt.Errorf("must contain %s", strings.Join(tokens, " or "))
	}
}
