package aggregation

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/aevon-lab/aevon-topn/internal/segment"
)

// ExtractDecimal converts a raw column value to a decimal.
// Returns false for nil, non-finite floats and values that are not numeric.
func ExtractDecimal(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(val), true
	case float32:
		return ExtractDecimal(float64(val))
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	case int32:
		return decimal.NewFromInt(int64(val)), true
	case string:
		d, err := decimal.NewFromString(val)
		if err == nil {
			return d, true
		}
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err == nil {
			return d, true
		}
	case decimal.Decimal:
		return val, true
	}
	return decimal.Zero, false
}

// decimalReader returns a per-row reader of field as a decimal, choosing the
// cheapest selector the column supports.
func decimalReader(columns segment.ColumnSelectorFactory, field string) func() (decimal.Decimal, bool) {
	caps, ok := columns.Capabilities(field)
	if ok && caps.Type == segment.TypeLong {
		sel := columns.MakeNumericSelector(field)
		return func() (decimal.Decimal, bool) {
			if sel.IsNull() {
				return decimal.Zero, false
			}
			return decimal.NewFromInt(sel.Long()), true
		}
	}
	if ok && caps.Type == segment.TypeDouble {
		sel := columns.MakeNumericSelector(field)
		return func() (decimal.Decimal, bool) {
			if sel.IsNull() {
				return decimal.Zero, false
			}
			return ExtractDecimal(sel.Double())
		}
	}
	obj := columns.MakeObjectSelector(field)
	return func() (decimal.Decimal, bool) {
		return ExtractDecimal(obj.Object())
	}
}

// decimalFactory serves count, sum, min and max.
type decimalFactory struct {
	name  string
	typ   string
	field string
	op    Aggregator
}

func newDecimalFactory(spec Spec) (Factory, error) {
	if spec.Type != TypeCount && spec.Field == "" {
		return nil, fmt.Errorf("aggregation %q: %s requires a field", spec.Name, spec.Type)
	}
	return &decimalFactory{name: spec.Name, typ: spec.Type, field: spec.Field, op: Operators[spec.Type]}, nil
}

func (f *decimalFactory) Name() string { return f.name }

func (f *decimalFactory) Factorize(columns segment.ColumnSelectorFactory) (Accumulator, error) {
	acc := &decimalAccumulator{op: f.op}
	switch f.typ {
	case TypeCount:
		acc.read = func() (decimal.Decimal, bool) { return decimal.Zero, true }
		acc.empty = decimal.Zero
	case TypeSum:
		acc.read = decimalReader(columns, f.field)
		acc.empty = decimal.Zero
	default:
		acc.read = decimalReader(columns, f.field)
	}
	return acc, nil
}

func (f *decimalFactory) Compare(a, b any) int {
	da, aok := a.(decimal.Decimal)
	db, bok := b.(decimal.Decimal)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	return da.Cmp(db)
}
