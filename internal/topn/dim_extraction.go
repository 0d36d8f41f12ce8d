package topn

import (
	"context"

	"github.com/aevon-lab/aevon-topn/internal/segment"
)

// DimExtraction is the map-backed algorithm. Keys are the post-extraction
// values, so it works for any cardinality and for extraction functions that
// collapse several raw values onto one key. It always runs in a single pass.
type DimExtraction struct {
	plan *Plan
}

func NewDimExtraction(plan *Plan) *DimExtraction {
	return &DimExtraction{plan: plan}
}

func (a *DimExtraction) Name() string { return AlgorithmDimExtraction }

func (a *DimExtraction) MakeInitParams(column ColumnSelectorPlus, cursor segment.Cursor) (*Params, error) {
	return &Params{
		Column:           column,
		Cursor:           cursor,
		Cardinality:      column.Capabilities.Cardinality,
		NumValuesPerPass: Unbounded,
	}, nil
}

func (a *DimExtraction) MakeDimValSelector(p *Params, _, _ int) (*DimValSelector, error) {
	return p.Column.Strategy.MakeRowResolver(p, a.plan.Extraction), nil
}

func (a *DimExtraction) UpdateDimValSelector(sel *DimValSelector, _, _ int) *DimValSelector {
	return sel
}

func (a *DimExtraction) MakeDimValAggregateStore(p *Params) *AggregateStore {
	return p.Column.Strategy.MakeStore(p, a.plan.Factories)
}

func (a *DimExtraction) ScanAndAggregate(ctx context.Context, p *Params, sel *DimValSelector, store *AggregateStore) (int64, error) {
	return p.Column.Strategy.ScanAndAggregate(ctx, p, sel, store)
}

func (a *DimExtraction) UpdateResults(p *Params, _ *DimValSelector, store *AggregateStore, rb ResultBuilder) error {
	p.Column.Strategy.UpdateResults(store, rb)
	return nil
}

func (a *DimExtraction) CloseAggregators(store *AggregateStore) error {
	return store.Close()
}

func (a *DimExtraction) Cleanup(*Params) {}
