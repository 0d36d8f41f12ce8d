package aggregation

import (
	"fmt"

	"github.com/aevon-lab/aevon-topn/internal/segment"
)

// Supported metric types.
const (
	TypeCount       = "count"
	TypeSum         = "sum"
	TypeMin         = "min"
	TypeMax         = "max"
	TypeCardinality = "cardinality"
	TypeQuantile    = "quantile"
)

// Accumulator holds the running state of one metric for one group key.
// Add reads the current row through the selectors bound at creation time.
// Release must be called exactly once when the accumulator is no longer needed.
type Accumulator interface {
	Add()
	Value() any
	Release()
}

// Factory creates accumulators for one metric of a query.
type Factory interface {
	// Name is the output name of the metric.
	Name() string

	// Factorize binds a fresh accumulator to the selectors of a cursor.
	Factorize(columns segment.ColumnSelectorFactory) (Accumulator, error)

	// Compare orders two finalized values of this metric. nil sorts first.
	Compare(a, b any) int
}

// Spec is the declarative form of a metric in a query.
type Spec struct {
	Type     string  `json:"type" yaml:"type"`
	Name     string  `json:"name" yaml:"name"`
	Field    string  `json:"field,omitempty" yaml:"field,omitempty"`
	Quantile float64 `json:"quantile,omitempty" yaml:"quantile,omitempty"`
}

// Constructor validates a Spec and returns its Factory.
type Constructor func(spec Spec) (Factory, error)

// Factories is the registry of metric types.
// To add a metric type: implement Factory and register its constructor here.
var Factories = map[string]Constructor{
	TypeCount:       newDecimalFactory,
	TypeSum:         newDecimalFactory,
	TypeMin:         newDecimalFactory,
	TypeMax:         newDecimalFactory,
	TypeCardinality: newCardinalityFactory,
	TypeQuantile:    newQuantileFactory,
}

// ValidType reports whether t is a registered metric type.
func ValidType(t string) bool {
	_, ok := Factories[t]
	return ok
}

// NewFactory resolves spec against the registry.
func NewFactory(spec Spec) (Factory, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("aggregation name must not be empty")
	}
	ctor, ok := Factories[spec.Type]
	if !ok {
		return nil, fmt.Errorf("aggregation %q: unknown type %q", spec.Name, spec.Type)
	}
	return ctor(spec)
}
