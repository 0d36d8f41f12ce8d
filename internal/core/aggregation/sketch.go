package aggregation

import (
	"cmp"
	"fmt"
	"math"
	"sync"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/axiomhq/hyperloglog"

	"github.com/aevon-lab/aevon-topn/internal/segment"
)

// quantileRelativeAccuracy is the DDSketch relative accuracy guarantee.
const quantileRelativeAccuracy = 0.01

// cardinalityFactory estimates distinct values of a dimension column.
type cardinalityFactory struct {
	name  string
	field string
}

func newCardinalityFactory(spec Spec) (Factory, error) {
	if spec.Field == "" {
		return nil, fmt.Errorf("aggregation %q: cardinality requires a field", spec.Name)
	}
	return &cardinalityFactory{name: spec.Name, field: spec.Field}, nil
}

func (f *cardinalityFactory) Name() string { return f.name }

func (f *cardinalityFactory) Factorize(columns segment.ColumnSelectorFactory) (Accumulator, error) {
	return &cardinalityAccumulator{
		sel: columns.MakeDimensionSelector(f.field),
		hll: hyperloglog.New14(),
	}, nil
}

func (f *cardinalityFactory) Compare(a, b any) int {
	ia, aok := a.(int64)
	ib, bok := b.(int64)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	return cmp.Compare(ia, ib)
}

type cardinalityAccumulator struct {
	sel segment.DimensionSelector
	hll *hyperloglog.Sketch
}

func (a *cardinalityAccumulator) Add() {
	for _, id := range a.sel.Row() {
		if name, ok := a.sel.LookupName(id); ok {
			a.hll.Insert([]byte(name))
		}
	}
}

func (a *cardinalityAccumulator) Value() any {
	if a.hll == nil {
		return nil
	}
	return int64(a.hll.Estimate())
}

func (a *cardinalityAccumulator) Release() {
	a.hll = nil
	a.sel = nil
}

// sketchPool recycles DDSketches between accumulators. Sketches are cleared
// before they go back.
var sketchPool = sync.Pool{
	New: func() any {
		s, err := ddsketch.NewDefaultDDSketch(quantileRelativeAccuracy)
		if err != nil {
			return nil
		}
		return s
	},
}

// quantileFactory approximates a quantile of a numeric column.
type quantileFactory struct {
	name     string
	field    string
	quantile float64
}

func newQuantileFactory(spec Spec) (Factory, error) {
	if spec.Field == "" {
		return nil, fmt.Errorf("aggregation %q: quantile requires a field", spec.Name)
	}
	if spec.Quantile < 0 || spec.Quantile > 1 || math.IsNaN(spec.Quantile) {
		return nil, fmt.Errorf("aggregation %q: quantile must be within [0, 1], got %v", spec.Name, spec.Quantile)
	}
	return &quantileFactory{name: spec.Name, field: spec.Field, quantile: spec.Quantile}, nil
}

func (f *quantileFactory) Name() string { return f.name }

func (f *quantileFactory) Factorize(columns segment.ColumnSelectorFactory) (Accumulator, error) {
	s, _ := sketchPool.Get().(*ddsketch.DDSketch)
	if s == nil {
		return nil, fmt.Errorf("aggregation %q: allocating sketch failed", f.name)
	}
	return &quantileAccumulator{
		sel:      columns.MakeNumericSelector(f.field),
		sketch:   s,
		quantile: f.quantile,
	}, nil
}

func (f *quantileFactory) Compare(a, b any) int {
	fa, aok := a.(float64)
	fb, bok := b.(float64)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	return cmp.Compare(fa, fb)
}

type quantileAccumulator struct {
	sel      segment.NumericSelector
	sketch   *ddsketch.DDSketch
	quantile float64
}

func (a *quantileAccumulator) Add() {
	if a.sel.IsNull() {
		return
	}
	v := a.sel.Double()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	a.sketch.Add(v) //nolint:errcheck
}

func (a *quantileAccumulator) Value() any {
	if a.sketch == nil || a.sketch.IsEmpty() {
		return nil
	}
	v, err := a.sketch.GetValueAtQuantile(a.quantile)
	if err != nil {
		return nil
	}
	return v
}

func (a *quantileAccumulator) Release() {
	if a.sketch == nil {
		return
	}
	a.sketch.Clear()
	sketchPool.Put(a.sketch)
	a.sketch = nil
	a.sel = nil
}
