package topn

import (
	"context"

	"github.com/aevon-lab/aevon-topn/internal/core/extraction"
)

// numericStrategy groups long and double columns. Without an extraction
// function the raw number is the key.
type numericStrategy struct {
	baseStrategy
	keyType KeyType
}

func (numericStrategy) MakeRowResolver(p *Params, fn extraction.Fn) *DimValSelector {
	return &DimValSelector{fn: fn, num: p.Cursor.ColumnSelectorFactory().MakeNumericSelector(p.Column.Column)}
}

func (s numericStrategy) key(sel *DimValSelector) GroupKey {
	if sel.num.IsNull() {
		if sel.fn != nil {
			return extractKey(sel.fn, nil)
		}
		return NullKey(s.keyType)
	}
	if s.keyType == KeyLong {
		v := sel.num.Long()
		if sel.fn != nil {
			return extractKey(sel.fn, v)
		}
		return LongKey(v)
	}
	v := sel.num.Double()
	if sel.fn != nil {
		return extractKey(sel.fn, v)
	}
	return DoubleKey(v)
}

func (s numericStrategy) ScanAndAggregate(ctx context.Context, p *Params, sel *DimValSelector, store *AggregateStore) (int64, error) {
	return scanRows(ctx, p.Cursor, func() error {
		slot, err := store.Slot(s.key(sel))
		if err != nil {
			return err
		}
		addAll(store, slot)
		return nil
	})
}
