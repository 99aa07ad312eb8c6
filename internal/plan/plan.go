// Package plan loads and validates table rebuild plans.
package plan

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hurou927/schemashift/internal/schema"
)

// Plan describes the target shape of one table and where each target column's
// values come from.
type Plan struct {
	Source  string             `yaml:"source"`
	Target  []TargetColumn     `yaml:"target"`
	Mapping map[string]Mapping `yaml:"mapping"`
}

// TargetColumn is a column of the rebuilt table, optionally referencing another table.
type TargetColumn struct {
	schema.Column `yaml:",inline"`
	References    *Reference `yaml:"references,omitempty"`
}

// Reference declares a single-column foreign key on a target column.
type Reference struct {
	Table  string `yaml:"table"`
	Column string `yaml:"column"`
}

// Mapping feeds a target column either from a source column or from a constant.
// In YAML a bare scalar is a source column name:
//
//	code: code
//	name: {column: airport_name}
//	country: {value: US}
type Mapping struct {
	Column string
	Value  any
	// IsValue distinguishes a constant NULL from an unset value.
	IsValue bool
}

// FromColumn returns a mapping copying source column name.
func FromColumn(name string) Mapping {
	return Mapping{Column: name}
}

// FromValue returns a mapping filling every row with v.
func FromValue(v any) Mapping {
	return Mapping{Value: v, IsValue: true}
}

func (m *Mapping) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		m.Column = node.Value
		return nil
	case yaml.MappingNode:
	default:
		return fmt.Errorf("line %d: mapping must be a column name or a {column} / {value} map", node.Line)
	}

	var column, value *yaml.Node
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "column":
			column = val
		case "value":
			value = val
		default:
			return fmt.Errorf("line %d: unknown mapping key %q", key.Line, key.Value)
		}
	}

	switch {
	case column != nil && value != nil:
		return fmt.Errorf("line %d: mapping sets both column and value", node.Line)
	case column != nil:
		if column.Kind != yaml.ScalarNode || column.Value == "" {
			return fmt.Errorf("line %d: mapping column must be a name", column.Line)
		}
		m.Column = column.Value
	case value != nil:
		m.IsValue = true
		if value.ShortTag() == "!!null" {
			return nil
		}
		if err := value.Decode(&m.Value); err != nil {
			return fmt.Errorf("line %d: decoding value: %w", value.Line, err)
		}
	default:
		return fmt.Errorf("line %d: mapping needs a column or a value", node.Line)
	}
	return nil
}

func (m Mapping) MarshalYAML() (any, error) {
	if m.IsValue {
		return map[string]any{"value": m.Value}, nil
	}
	return m.Column, nil
}

// String renders the mapping for reports.
func (m Mapping) String() string {
	if m.IsValue {
		if m.Value == nil {
			return "NULL"
		}
		return fmt.Sprintf("%v (constant)", m.Value)
	}
	return m.Column
}

// Load reads a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML plan, rejecting unknown keys.
func Parse(data []byte) (*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Plan
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parsing plan file: %w", err)
	}
	return &p, nil
}

// Columns returns the target column definitions in order.
func (p *Plan) Columns() []schema.Column {
	cols := make([]schema.Column, len(p.Target))
	for i, t := range p.Target {
		cols[i] = t.Column
	}
	return cols
}

// ForeignKeys returns the FK constraints declared on target columns.
func (p *Plan) ForeignKeys() []schema.ForeignKey {
	var fks []schema.ForeignKey
	for _, t := range p.Target {
		if t.References == nil {
			continue
		}
		fks = append(fks, schema.ForeignKey{
			ChildTable:    p.Source,
			ChildColumns:  []string{t.Name},
			ParentTable:   t.References.Table,
			ParentColumns: []string{t.References.Column},
		})
	}
	return fks
}
