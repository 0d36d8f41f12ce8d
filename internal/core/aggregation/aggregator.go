package aggregation

import (
	"github.com/shopspring/decimal"
)

// Aggregator defines the reduce semantics of a decimal operator.
// To add a new operator: implement this interface and register it in Operators.
type Aggregator interface {
	// Initial returns the aggregate value after the very first row for a key.
	// count → 1; sum/min/max → the incoming value itself.
	Initial(incoming decimal.Decimal) decimal.Decimal

	// Apply folds an incoming value into an existing aggregate.
	Apply(current, incoming decimal.Decimal) decimal.Decimal
}

// Operators is the registry of the decimal operators backing the count, sum,
// min and max metric types.
var Operators = map[string]Aggregator{
	TypeCount: countAgg{},
	TypeSum:   sumAgg{},
	TypeMin:   minAgg{},
	TypeMax:   maxAgg{},
}

// countAgg increments by 1 per row. The incoming value is ignored.
type countAgg struct{}

func (countAgg) Initial(_ decimal.Decimal) decimal.Decimal    { return decimal.NewFromInt(1) }
func (countAgg) Apply(cur, _ decimal.Decimal) decimal.Decimal { return cur.Add(decimal.NewFromInt(1)) }

// sumAgg accumulates the sum of incoming values.
type sumAgg struct{}

func (sumAgg) Initial(v decimal.Decimal) decimal.Decimal      { return v }
func (sumAgg) Apply(cur, inc decimal.Decimal) decimal.Decimal { return cur.Add(inc) }

// minAgg tracks the minimum value seen.
type minAgg struct{}

func (minAgg) Initial(v decimal.Decimal) decimal.Decimal { return v }
func (minAgg) Apply(cur, inc decimal.Decimal) decimal.Decimal {
	if inc.LessThan(cur) {
		return inc
	}
	return cur
}

// maxAgg tracks the maximum value seen.
type maxAgg struct{}

func (maxAgg) Initial(v decimal.Decimal) decimal.Decimal { return v }
func (maxAgg) Apply(cur, inc decimal.Decimal) decimal.Decimal {
	if inc.GreaterThan(cur) {
		return inc
	}
	return cur
}

// decimalAccumulator folds one decimal per row through an Aggregator.
type decimalAccumulator struct {
	op    Aggregator
	read  func() (decimal.Decimal, bool)
	empty any // value reported when no row contributed

	value    decimal.Decimal
	seen     bool
	released bool
}

func (a *decimalAccumulator) Add() {
	v, ok := a.read()
	if !ok {
		return
	}
	if !a.seen {
		a.value = a.op.Initial(v)
		a.seen = true
		return
	}
	a.value = a.op.Apply(a.value, v)
}

func (a *decimalAccumulator) Value() any {
	if !a.seen {
		return a.empty
	}
	return a.value
}

func (a *decimalAccumulator) Release() {
	a.released = true
	a.read = nil
}
