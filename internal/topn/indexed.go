package topn

import (
	"context"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/aevon-lab/aevon-topn/internal/segment"
)

// Indexed addresses accumulators by dictionary id. It needs a string column
// with known cardinality and an injective (or absent) extraction function, and
// can split the dictionary into several passes of valuesPerPass ids each.
type Indexed struct {
	plan          *Plan
	valuesPerPass int
}

// NewIndexed returns the index-addressed algorithm. valuesPerPass <= 0 means a
// single pass.
func NewIndexed(plan *Plan, valuesPerPass int) *Indexed {
	return &Indexed{plan: plan, valuesPerPass: valuesPerPass}
}

// indexedSelector covers dictionary ids [lo, hi) of the current pass.
type indexedSelector struct {
	dim    segment.DimensionSelector
	lo, hi int
}

// indexedStore is an AggregateStore whose slots are looked up by id offset
// instead of by key.
type indexedStore struct {
	*AggregateStore
	slots []int // id - lo → slot; -1 when not yet created
}

func (a *Indexed) Name() string { return AlgorithmIndexed }

func (a *Indexed) MakeInitParams(column ColumnSelectorPlus, cursor segment.Cursor) (*Params, error) {
	perPass := a.valuesPerPass
	if perPass <= 0 {
		perPass = Unbounded
	}
	return &Params{
		Column:           column,
		Cursor:           cursor,
		Cardinality:      column.Capabilities.Cardinality,
		NumValuesPerPass: perPass,
	}, nil
}

func (a *Indexed) MakeDimValSelector(p *Params, numProcessed, numToProcess int) (*indexedSelector, error) {
	if !p.Column.Capabilities.HasKnownCardinality() || p.Column.Capabilities.Type != segment.TypeString {
		return nil, unsupportedCardinality(p.Column.Column)
	}
	if !a.plan.injectiveExtraction() {
		return nil, fmt.Errorf("%w: indexed algorithm needs an injective extraction on %q", ErrInvalidQuery, p.Column.Column)
	}
	dim := p.Cursor.ColumnSelectorFactory().MakeDimensionSelector(p.Column.Column)
	if dim.Cardinality() < 0 {
		return nil, unsupportedCardinality(p.Column.Column)
	}
	return a.UpdateDimValSelector(&indexedSelector{dim: dim}, numProcessed, numToProcess), nil
}

func (a *Indexed) UpdateDimValSelector(sel *indexedSelector, numProcessed, numToProcess int) *indexedSelector {
	card := sel.dim.Cardinality()
	sel.lo = numProcessed
	sel.hi = card
	if numToProcess < card-numProcessed {
		sel.hi = numProcessed + numToProcess
	}
	return sel
}

func (a *Indexed) MakeDimValAggregateStore(p *Params) *indexedStore {
	n := max(p.Cardinality, 0)
	if a.valuesPerPass > 0 && a.valuesPerPass < n {
		n = a.valuesPerPass
	}
	slots := make([]int, n)
	for i := range slots {
		slots[i] = -1
	}
	return &indexedStore{
		AggregateStore: NewAggregateStore(a.plan.Factories, p.Cursor.ColumnSelectorFactory()),
		slots:          slots,
	}
}

func (a *Indexed) key(sel *indexedSelector, id int) GroupKey {
	name, ok := sel.dim.LookupName(id)
	if a.plan.Extraction != nil {
		var raw any
		if ok {
			raw = name
		}
		return extractKey(a.plan.Extraction, raw)
	}
	if !ok {
		return NullKey(KeyString)
	}
	return StringKey(name)
}

func (a *Indexed) ScanAndAggregate(ctx context.Context, p *Params, sel *indexedSelector, store *indexedStore) (int64, error) {
	// Rows are de-duplicated by slot, not by id: two ids of one row can share a key.
	seen := mapset.NewThreadUnsafeSet[int]()
	return scanRows(ctx, p.Cursor, func() error {
		seen.Clear()
		for _, id := range sel.dim.Row() {
			if id < sel.lo || id >= sel.hi {
				continue
			}
			off := id - sel.lo
			slot := store.slots[off]
			if slot < 0 {
				var err error
				if slot, err = store.Slot(a.key(sel, id)); err != nil {
					return err
				}
				store.slots[off] = slot
			}
			if seen.Add(slot) {
				addAll(store.AggregateStore, slot)
			}
		}
		return nil
	})
}

func (a *Indexed) UpdateResults(p *Params, _ *indexedSelector, store *indexedStore, rb ResultBuilder) error {
	p.Column.Strategy.UpdateResults(store.AggregateStore, rb)
	return nil
}

func (a *Indexed) CloseAggregators(store *indexedStore) error {
	return store.Close()
}

func (a *Indexed) Cleanup(*Params) {}
