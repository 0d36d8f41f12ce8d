package segment

import (
	"fmt"
	"strings"
)

// CardinalityUnknown is reported by columns that cannot enumerate their distinct
// values up front (numeric columns, unindexed string columns, complex columns).
const CardinalityUnknown = -1

// ValueType is the declared value type of a column.
type ValueType int

const (
	TypeString ValueType = iota
	TypeLong
	TypeDouble
	TypeComplex
)

func (t ValueType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeLong:
		return "long"
	case TypeDouble:
		return "double"
	case TypeComplex:
		return "complex"
	default:
		return fmt.Sprintf("ValueType(%d)", int(t))
	}
}

// IsNumeric reports whether values of this type are long or double.
func (t ValueType) IsNumeric() bool {
	return t == TypeLong || t == TypeDouble
}

// ParseValueType maps a column type name to a ValueType.
func ParseValueType(s string) (ValueType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "":
		return TypeString, nil
	case "long":
		return TypeLong, nil
	case "double", "float":
		return TypeDouble, nil
	case "complex", "json":
		return TypeComplex, nil
	}
	return 0, fmt.Errorf("unsupported column type %q", s)
}

// ColumnCapabilities describes what a column can do for the query engine.
type ColumnCapabilities struct {
	Type        ValueType
	Cardinality int // CardinalityUnknown if not known
	MultiValue  bool
}

// HasKnownCardinality reports whether the column can be index-addressed by
// dictionary id.
func (c ColumnCapabilities) HasKnownCardinality() bool {
	return c.Cardinality >= 0
}

// ColumnSpec is the declared shape of one segment column.
type ColumnSpec struct {
	Name               string `yaml:"name" json:"name"`
	Type               string `yaml:"type" json:"type"`
	MultiValue         bool   `yaml:"multi_value,omitempty" json:"multi_value,omitempty"`
	UnknownCardinality bool   `yaml:"unknown_cardinality,omitempty" json:"unknown_cardinality,omitempty"`
}
