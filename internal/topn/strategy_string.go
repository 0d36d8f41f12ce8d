package topn

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/aevon-lab/aevon-topn/internal/core/extraction"
)

// stringStrategy groups dictionary-encoded, possibly multi-valued columns.
type stringStrategy struct{ baseStrategy }

func (stringStrategy) MakeRowResolver(p *Params, fn extraction.Fn) *DimValSelector {
	dim := p.Cursor.ColumnSelectorFactory().MakeDimensionSelector(p.Column.Column)
	sel := &DimValSelector{fn: fn, dim: dim}
	if card := dim.Cardinality(); card >= 0 {
		sel.slotCache = make([]int, card)
		for i := range sel.slotCache {
			sel.slotCache[i] = -1
		}
	}
	return sel
}

func (stringStrategy) key(sel *DimValSelector, id int) GroupKey {
	name, ok := sel.dim.LookupName(id)
	if sel.fn != nil {
		var raw any
		if ok {
			raw = name
		}
		return extractKey(sel.fn, raw)
	}
	if !ok {
		return NullKey(KeyString)
	}
	return StringKey(name)
}

func (s stringStrategy) slot(sel *DimValSelector, store *AggregateStore, id int) (int, error) {
	if sel.slotCache != nil && id >= 0 && id < len(sel.slotCache) {
		if slot := sel.slotCache[id]; slot >= 0 {
			return slot, nil
		}
		slot, err := store.Slot(s.key(sel, id))
		if err != nil {
			return 0, err
		}
		sel.slotCache[id] = slot
		return slot, nil
	}
	return store.Slot(s.key(sel, id))
}

func (s stringStrategy) ScanAndAggregate(ctx context.Context, p *Params, sel *DimValSelector, store *AggregateStore) (int64, error) {
	seen := mapset.NewThreadUnsafeSet[int]()
	return scanRows(ctx, p.Cursor, func() error {
		ids := sel.dim.Row()
		if len(ids) == 0 {
			key := NullKey(KeyString)
			if sel.fn != nil {
				key = extractKey(sel.fn, nil)
			}
			slot, err := store.Slot(key)
			if err != nil {
				return err
			}
			addAll(store, slot)
			return nil
		}
		if len(ids) == 1 {
			slot, err := s.slot(sel, store, ids[0])
			if err != nil {
				return err
			}
			addAll(store, slot)
			return nil
		}

		// several raw values may collapse to one key; fold the row once per key
		seen.Clear()
		for _, id := range ids {
			slot, err := s.slot(sel, store, id)
			if err != nil {
				return err
			}
			if seen.Add(slot) {
				addAll(store, slot)
			}
		}
		return nil
	})
}
