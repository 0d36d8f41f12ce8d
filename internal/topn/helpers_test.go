package topn

import (
	"cmp"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aevon-lab/aevon-topn/internal/core/aggregation"
	"github.com/aevon-lab/aevon-topn/internal/segment"
)

func buildSegment(t *testing.T, specs []segment.ColumnSpec, rows ...map[string]any) *segment.Segment {
	t.Helper()
	b, err := segment.NewBuilder("test-segment", specs)
	require.NoError(t, err)
	for _, r := range rows {
		require.NoError(t, b.AddRow(r))
	}
	return b.SetVersion("v1").Build()
}

func mustPlan(t *testing.T, q Query) *Plan {
	t.Helper()
	p, err := NewPlan(q)
	require.NoError(t, err)
	return p
}

// countingFactory hands out accumulators that count rows and record their
// lifecycle. failOn makes the n-th Factorize call fail (1-based).
type countingFactory struct {
	name     string
	failOn   int
	calls    int
	created  int
	released int
	doubles  int
}

var errFactorize = errors.New("factorize failed")

func (f *countingFactory) Name() string { return f.name }

func (f *countingFactory) Factorize(segment.ColumnSelectorFactory) (aggregation.Accumulator, error) {
	f.calls++
	if f.failOn > 0 && f.calls == f.failOn {
		return nil, errFactorize
	}
	f.created++
	return &countingAccumulator{f: f}, nil
}

func (f *countingFactory) Compare(a, b any) int {
	ia, _ := a.(int64)
	ib, _ := b.(int64)
	return cmp.Compare(ia, ib)
}

type countingAccumulator struct {
	f        *countingFactory
	n        int64
	released bool
}

func (a *countingAccumulator) Add()       { a.n++ }
func (a *countingAccumulator) Value() any { return a.n }
func (a *countingAccumulator) Release() {
	if a.released {
		a.f.doubles++
		return
	}
	a.released = true
	a.f.released++
}

// countingPlan builds a plan whose metrics are the given counting factories.
func countingPlan(t *testing.T, column string, fs ...*countingFactory) *Plan {
	t.Helper()
	p := mustPlan(t, Query{
		Dimension:    Dimension{Column: column},
		Metric:       "rows",
		Threshold:    10,
		Aggregations: []aggregation.Spec{{Type: aggregation.TypeCount, Name: "rows"}},
	})
	p.Factories = nil
	for _, f := range fs {
		p.Factories = append(p.Factories, f)
	}
	p.MetricIndex = 0
	return p
}

// failingCursor fails Advance once failAfter rows have been advanced past.
type failingCursor struct {
	segment.Cursor
	failAfter int
	advanced  int
	err       error
}

func (c *failingCursor) Advance() error {
	c.advanced++
	if c.advanced >= c.failAfter {
		return c.err
	}
	return c.Cursor.Advance()
}

func rowsToMap(rows []ResultRow, metric int) map[any]any {
	out := make(map[any]any, len(rows))
	for _, r := range rows {
		out[r.Key.Value()] = r.Values[metric]
	}
	return out
}

func keysOf(rows []ResultRow) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r.Key.Value()
	}
	return out
}
