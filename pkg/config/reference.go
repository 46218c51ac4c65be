package config

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const referenceIndent = 4

// Reference renders a YAML document listing every key of the schema with its
// default value. Descriptions become comments; list fields show one
// prototype entry.
func Reference(schema *Schema) ([]byte, error) {
	doc := &yaml.Node{Kind: yaml.MappingNode}

	if err := appendFields(doc, schema.Document().Fields()); err != nil {
		return nil, err
	}

	for _, as := range schema.Analyzers() {
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: as.Name(), HeadComment: "Analyzer " + as.Name()}

		value, err := objectNode(as.Root())
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", as.Name(), err)
		}

		doc.Content = append(doc.Content, key, value)
	}

	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(referenceIndent)

	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{doc}}); err != nil {
		return nil, fmt.Errorf("encode reference: %w", err)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode reference: %w", err)
	}

	return buf.Bytes(), nil
}

func objectNode(n *Node) (*yaml.Node, error) {
	out := &yaml.Node{Kind: yaml.MappingNode}

	return out, appendFields(out, n.Fields())
}

func appendFields(parent *yaml.Node, fields []*Field) error {
	for _, f := range fields {
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: f.Name(), HeadComment: f.Description()}

		value, err := valueNode(f)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name(), err)
		}

		value.LineComment = annotation(f)
		parent.Content = append(parent.Content, key, value)
	}

	return nil
}

func valueNode(f *Field) (*yaml.Node, error) {
	switch f.Kind() {
	case KindObject:
		return objectNode(f.Children())
	case KindList:
		item, err := objectNode(f.Children())
		if err != nil {
			return nil, err
		}

		return &yaml.Node{Kind: yaml.SequenceNode, Content: []*yaml.Node{item}}, nil
	case KindEnum:
		if def, ok := f.DefaultValue(); ok {
			return encodeNode(def)
		}

		if len(f.Choices()) > 0 {
			return encodeNode(f.Choices()[0])
		}
	}

	def, ok := f.DefaultValue()
	if !ok {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "~"}, nil
	}

	return encodeNode(def)
}

func encodeNode(v any) (*yaml.Node, error) {
	var n yaml.Node

	if err := n.Encode(v); err != nil {
		return nil, fmt.Errorf("encode default: %w", err)
	}

	if n.Kind == yaml.SequenceNode && len(n.Content) == 0 {
		n.Style = yaml.FlowStyle
	}

	return &n, nil
}

func annotation(f *Field) string {
	var notes []string

	if f.IsRequired() {
		notes = append(notes, "required")
	}

	if f.Kind() == KindEnum {
		notes = append(notes, "one of "+strings.Join(f.Choices(), ", "))
	}

	if f.minInt != nil || f.maxInt != nil {
		lo, hi := "-inf", "+inf"

		if f.minInt != nil {
			lo = fmt.Sprint(*f.minInt)
		}

		if f.maxInt != nil {
			hi = fmt.Sprint(*f.maxInt)
		}

		notes = append(notes, fmt.Sprintf("range [%s, %s]", lo, hi))
	}

	return strings.Join(notes, "; ")
}
