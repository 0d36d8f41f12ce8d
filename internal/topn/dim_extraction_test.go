package topn

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aevon-lab/aevon-topn/internal/core/aggregation"
	coreerrors "github.com/aevon-lab/aevon-topn/internal/core/errors"
	"github.com/aevon-lab/aevon-topn/internal/core/extraction"
	"github.com/aevon-lab/aevon-topn/internal/segment"
)

var wikiSpecs = []segment.ColumnSpec{
	{Name: "page"},
	{Name: "user"},
	{Name: "added", Type: "long"},
	{Name: "tags", MultiValue: true},
}

func wikiSegment(t *testing.T) *segment.Segment {
	return buildSegment(t, wikiSpecs,
		map[string]any{"page": "Main", "user": "ann", "added": 10, "tags": []any{"a", "b"}},
		map[string]any{"page": "Talk", "user": "bob", "added": 3, "tags": []any{"b"}},
		map[string]any{"page": "Main", "user": "bob", "added": 5, "tags": []any{"a", "a"}},
		map[string]any{"page": "Help", "user": "ann", "added": 1},
		map[string]any{"page": nil, "user": "cat", "added": 2, "tags": []any{"B"}},
	)
}

func runDimExtraction(t *testing.T, plan *Plan, cursor segment.Cursor) ([]ResultRow, RunStats, error) {
	t.Helper()
	column := ResolveColumn(cursor.ColumnSelectorFactory(), plan.Query.Dimension.Column)
	rb := plan.NewResultBuilder()
	stats, err := Run(context.Background(), NewDimExtraction(plan), column, cursor, rb)
	if err != nil {
		return nil, stats, err
	}
	return rb.Build(), stats, nil
}

func sumQuery(column string, ext *extraction.Spec) Query {
	return Query{
		Dimension: Dimension{Column: column, Extraction: ext},
		Metric:    "added",
		Threshold: 100,
		Aggregations: []aggregation.Spec{
			{Type: aggregation.TypeSum, Name: "added", Field: "added"},
			{Type: aggregation.TypeCount, Name: "rows"},
		},
	}
}

func decimals(m map[any]any) map[any]string {
	out := make(map[any]string, len(m))
	for k, v := range m {
		out[k] = v.(decimal.Decimal).String()
	}
	return out
}

func TestDimExtraction_GroupingCorrectness(t *testing.T) {
	rows, stats, err := runDimExtraction(t, mustPlan(t, sumQuery("page", nil)), wikiSegment(t).MakeCursor())
	require.NoError(t, err)

	require.Equal(t, map[any]string{"Main": "15", "Talk": "3", "Help": "1", nil: "2"}, decimals(rowsToMap(rows, 0)))
	require.Equal(t, map[any]string{"Main": "2", "Talk": "1", "Help": "1", nil: "1"}, decimals(rowsToMap(rows, 1)))
	require.Equal(t, int64(5), stats.Rows)
	require.Equal(t, 1, stats.Passes)
	require.Equal(t, 4, stats.Keys)
}

func TestDimExtraction_ManyToOneCollapse(t *testing.T) {
	seg := buildSegment(t, []segment.ColumnSpec{{Name: "page"}, {Name: "added", Type: "long"}},
		map[string]any{"page": "A", "added": 3},
		map[string]any{"page": "a", "added": 5},
	)
	plan := mustPlan(t, sumQuery("page", &extraction.Spec{Type: extraction.TypeLower}))

	rows, stats, err := runDimExtraction(t, plan, seg.MakeCursor())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "a", rows[0].Key.Value())
	require.Equal(t, "8", rows[0].Values[0].(decimal.Decimal).String())
	require.Equal(t, 1, stats.Keys)
}

func TestDimExtraction_MultiValueFoldsOncePerDistinctKey(t *testing.T) {
	plan := mustPlan(t, sumQuery("tags", &extraction.Spec{Type: extraction.TypeLower}))
	rows, _, err := runDimExtraction(t, plan, wikiSegment(t).MakeCursor())
	require.NoError(t, err)

	// row 3 holds "a" twice, row 5 holds "B" which collapses onto "b"
	require.Equal(t, map[any]string{"a": "15", "b": "15", nil: "1"}, decimals(rowsToMap(rows, 0)))
	require.Equal(t, map[any]string{"a": "2", "b": "3", nil: "1"}, decimals(rowsToMap(rows, 1)))
}

func TestDimExtraction_UnknownCardinalityColumn(t *testing.T) {
	seg := buildSegment(t, []segment.ColumnSpec{{Name: "page", UnknownCardinality: true}, {Name: "added", Type: "long"}},
		map[string]any{"page": "x", "added": 1},
		map[string]any{"page": "y", "added": 2},
		map[string]any{"page": "x", "added": 4},
	)
	rows, _, err := runDimExtraction(t, mustPlan(t, sumQuery("page", nil)), seg.MakeCursor())
	require.NoError(t, err)
	require.Equal(t, map[any]string{"x": "5", "y": "2"}, decimals(rowsToMap(rows, 0)))
}

func TestDimExtraction_NumericColumn(t *testing.T) {
	seg := buildSegment(t, []segment.ColumnSpec{{Name: "status", Type: "long"}, {Name: "added", Type: "long"}},
		map[string]any{"status": 200, "added": 1},
		map[string]any{"status": 404, "added": 2},
		map[string]any{"status": 200, "added": 4},
		map[string]any{"status": nil, "added": 8},
	)

	rows, _, err := runDimExtraction(t, mustPlan(t, sumQuery("status", nil)), seg.MakeCursor())
	require.NoError(t, err)
	require.Equal(t, map[any]string{int64(200): "5", int64(404): "2", nil: "8"}, decimals(rowsToMap(rows, 0)))
	require.Equal(t, KeyLong, rows[0].Key.Type)

	// a regex over the rendered number groups by status class
	plan := mustPlan(t, sumQuery("status", &extraction.Spec{Type: extraction.TypeRegex, Pattern: `^(\d)`}))
	rows, _, err = runDimExtraction(t, plan, seg.MakeCursor())
	require.NoError(t, err)
	require.Equal(t, map[any]string{"2": "5", "4": "2", nil: "8"}, decimals(rowsToMap(rows, 0)))
}

func TestDimExtraction_DoubleColumn(t *testing.T) {
	seg := buildSegment(t, []segment.ColumnSpec{{Name: "ratio", Type: "double"}, {Name: "added", Type: "long"}},
		map[string]any{"ratio": 0.5, "added": 1},
		map[string]any{"ratio": 0.5, "added": 2},
		map[string]any{"ratio": 1.25, "added": 4},
	)
	rows, _, err := runDimExtraction(t, mustPlan(t, sumQuery("ratio", nil)), seg.MakeCursor())
	require.NoError(t, err)
	require.Equal(t, map[any]string{0.5: "3", 1.25: "4"}, decimals(rowsToMap(rows, 0)))
}

func TestDimExtraction_ComplexColumn(t *testing.T) {
	seg := buildSegment(t, []segment.ColumnSpec{{Name: "labels", Type: "complex"}, {Name: "added", Type: "long"}},
		map[string]any{"labels": []any{"x", "y", "x"}, "added": 1},
		map[string]any{"labels": true, "added": 2},
		map[string]any{"labels": []any{}, "added": 4},
		map[string]any{"added": 8},
	)
	rows, _, err := runDimExtraction(t, mustPlan(t, sumQuery("labels", nil)), seg.MakeCursor())
	require.NoError(t, err)
	require.Equal(t, map[any]string{"x": "1", "y": "1", "true": "2", nil: "12"}, decimals(rowsToMap(rows, 0)))
}

func TestDimExtraction_MissingColumnIsAllNull(t *testing.T) {
	rows, _, err := runDimExtraction(t, mustPlan(t, sumQuery("nope", nil)), wikiSegment(t).MakeCursor())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, rows[0].Key.Null)
	require.Equal(t, "21", rows[0].Values[0].(decimal.Decimal).String())
}

func TestDimExtraction_ArrayLengthAndNoLeak(t *testing.T) {
	a := &countingFactory{name: "rows"}
	b := &countingFactory{name: "other"}
	plan := countingPlan(t, "user", a, b)

	rows, stats, err := runDimExtraction(t, plan, wikiSegment(t).MakeCursor())
	require.NoError(t, err)

	for _, r := range rows {
		require.Len(t, r.Values, 2)
	}
	require.Equal(t, map[any]any{"ann": int64(2), "bob": int64(2), "cat": int64(1)}, rowsToMap(rows, 0))
	require.Equal(t, 3, a.created)
	require.Equal(t, a.created, a.released)
	require.Equal(t, b.created, b.released)
	require.Zero(t, a.doubles+b.doubles)
	require.Equal(t, 6, stats.Created)
	require.Equal(t, 6, stats.Released)
}

func TestDimExtraction_CleanupOnCursorFailure(t *testing.T) {
	f := &countingFactory{name: "rows"}
	plan := countingPlan(t, "page", f)
	boom := errors.New("read failed")
	cursor := &failingCursor{Cursor: wikiSegment(t).MakeCursor(), failAfter: 3, err: boom}

	_, stats, err := runDimExtraction(t, plan, cursor)
	require.ErrorIs(t, err, boom)

	var cerr *coreerrors.CursorError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "advance", cerr.Op)
	require.Equal(t, int64(3), cerr.Rows)

	// Main, Talk were seen before the failure
	require.Equal(t, 2, f.created)
	require.Equal(t, f.created, f.released)
	require.Zero(t, f.doubles)
	require.Equal(t, int64(3), stats.Rows)
}

func TestDimExtraction_CleanupOnFactorizeFailure(t *testing.T) {
	a := &countingFactory{name: "rows"}
	b := &countingFactory{name: "other", failOn: 3}
	plan := countingPlan(t, "user", a, b)

	_, _, err := runDimExtraction(t, plan, wikiSegment(t).MakeCursor())
	require.ErrorIs(t, err, errFactorize)
	require.Equal(t, a.created, a.released)
	require.Equal(t, b.created, b.released)
}

func TestDimExtraction_Cancellation(t *testing.T) {
	f := &countingFactory{name: "rows"}
	plan := countingPlan(t, "page", f)
	cursor := wikiSegment(t).MakeCursor()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	column := ResolveColumn(cursor.ColumnSelectorFactory(), "page")
	_, err := Run(ctx, NewDimExtraction(plan), column, cursor, plan.NewResultBuilder())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, f.created, f.released)
}
