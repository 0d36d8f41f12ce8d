package topn

import (
	"context"

	"github.com/aevon-lab/aevon-topn/internal/core/aggregation"
	"github.com/aevon-lab/aevon-topn/internal/core/extraction"
	"github.com/aevon-lab/aevon-topn/internal/segment"
)

// ctxCheckInterval is how many rows are folded between cancellation checks.
const ctxCheckInterval = 1024

// ColumnSelectorStrategy is the per value type half of the dimension-extraction
// algorithm. It is picked once per query from the grouping column's type.
type ColumnSelectorStrategy interface {
	// MakeRowResolver prepares what is needed to map the current row to its
	// group keys.
	MakeRowResolver(p *Params, fn extraction.Fn) *DimValSelector

	// MakeStore returns an empty key → accumulators store.
	MakeStore(p *Params, factories []aggregation.Factory) *AggregateStore

	// ScanAndAggregate folds every remaining row of the cursor into store and
	// returns the number of rows visited.
	ScanAndAggregate(ctx context.Context, p *Params, sel *DimValSelector, store *AggregateStore) (int64, error)

	// UpdateResults offers every key with its finalized metric values.
	UpdateResults(store *AggregateStore, rb ResultBuilder)
}

// DimValSelector is the row → key resolver built for one pass. Only the
// selector for the strategy's value type is set.
type DimValSelector struct {
	fn extraction.Fn

	dim segment.DimensionSelector
	num segment.NumericSelector
	obj segment.ObjectSelector

	// slotCache maps dictionary id to store slot when the column's ids are
	// stable across rows; -1 means not yet resolved.
	slotCache []int
}

var strategies = map[segment.ValueType]ColumnSelectorStrategy{
	segment.TypeString:  stringStrategy{},
	segment.TypeLong:    numericStrategy{keyType: KeyLong},
	segment.TypeDouble:  numericStrategy{keyType: KeyDouble},
	segment.TypeComplex: complexStrategy{},
}

func strategyFor(t segment.ValueType) ColumnSelectorStrategy {
	if s, ok := strategies[t]; ok {
		return s
	}
	return complexStrategy{}
}

// baseStrategy holds the operations shared by every value type.
type baseStrategy struct{}

func (baseStrategy) MakeStore(p *Params, factories []aggregation.Factory) *AggregateStore {
	return NewAggregateStore(factories, p.Cursor.ColumnSelectorFactory())
}

func (baseStrategy) UpdateResults(store *AggregateStore, rb ResultBuilder) {
	store.Each(func(key GroupKey, accs []aggregation.Accumulator) {
		values := make([]any, len(accs))
		for i, acc := range accs {
			values[i] = acc.Value()
		}
		rb.Offer(key, values)
	})
}

// extractKey applies fn to a raw value and wraps the result as a string key.
func extractKey(fn extraction.Fn, raw any) GroupKey {
	if v, ok := fn.Apply(raw); ok {
		return StringKey(v)
	}
	return NullKey(KeyString)
}

// addAll feeds the current row into every accumulator of slot.
func addAll(store *AggregateStore, slot int) {
	for _, acc := range store.Accumulators(slot) {
		acc.Add()
	}
}

// scanRows drives the cursor to the end, calling fold once per row. The
// context is checked every ctxCheckInterval rows.
func scanRows(ctx context.Context, cursor segment.Cursor, fold func() error) (int64, error) {
	var rows int64
	for !cursor.IsDone() {
		if rows%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return rows, err
			}
		}
		if err := fold(); err != nil {
			return rows, err
		}
		rows++
		if err := cursor.Advance(); err != nil {
			return rows, cursorError("advance", rows, err)
		}
	}
	return rows, nil
}
