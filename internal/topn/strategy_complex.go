package topn

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/aevon-lab/aevon-topn/internal/core/extraction"
)

// complexStrategy groups opaque object columns. Values are rendered to strings
// before extraction; a list value contributes one key per distinct element.
type complexStrategy struct{ baseStrategy }

var identity, _ = extraction.New(extraction.Spec{Type: extraction.TypeIdentity})

func (complexStrategy) MakeRowResolver(p *Params, fn extraction.Fn) *DimValSelector {
	if fn == nil {
		fn = identity
	}
	return &DimValSelector{fn: fn, obj: p.Cursor.ColumnSelectorFactory().MakeObjectSelector(p.Column.Column)}
}

func (complexStrategy) ScanAndAggregate(ctx context.Context, p *Params, sel *DimValSelector, store *AggregateStore) (int64, error) {
	seen := mapset.NewThreadUnsafeSet[int]()
	foldOne := func(raw any) error {
		slot, err := store.Slot(extractKey(sel.fn, raw))
		if err != nil {
			return err
		}
		if seen.Add(slot) {
			addAll(store, slot)
		}
		return nil
	}

	return scanRows(ctx, p.Cursor, func() error {
		seen.Clear()
		switch v := sel.obj.Object().(type) {
		case []any:
			if len(v) == 0 {
				return foldOne(nil)
			}
			for _, e := range v {
				if err := foldOne(e); err != nil {
					return err
				}
			}
		case []string:
			if len(v) == 0 {
				return foldOne(nil)
			}
			for _, e := range v {
				if err := foldOne(e); err != nil {
					return err
				}
			}
		default:
			return foldOne(v)
		}
		return nil
	})
}
