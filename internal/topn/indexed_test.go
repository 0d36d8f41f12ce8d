package topn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "github.com/aevon-lab/aevon-topn/internal/core/errors"
	"github.com/aevon-lab/aevon-topn/internal/core/extraction"
	"github.com/aevon-lab/aevon-topn/internal/segment"
)

func runIndexed(t *testing.T, plan *Plan, perPass int, cursor segment.Cursor) ([]ResultRow, RunStats, error) {
	t.Helper()
	column := ResolveColumn(cursor.ColumnSelectorFactory(), plan.Query.Dimension.Column)
	rb := plan.NewResultBuilder()
	stats, err := Run(context.Background(), NewIndexed(plan, perPass), column, cursor, rb)
	if err != nil {
		return nil, stats, err
	}
	return rb.Build(), stats, nil
}

func TestIndexed_UnsupportedCardinalityGuard(t *testing.T) {
	seg := buildSegment(t, []segment.ColumnSpec{{Name: "page", UnknownCardinality: true}, {Name: "added", Type: "long"}},
		map[string]any{"page": "x", "added": 1},
		map[string]any{"page": "y", "added": 2},
	)
	plan := mustPlan(t, sumQuery("page", nil))

	f := &countingFactory{name: "rows"}
	counting := countingPlan(t, "page", f)
	_, _, err := runIndexed(t, counting, 0, seg.MakeCursor())
	require.ErrorIs(t, err, coreerrors.ErrUnsupportedCardinality)
	require.Zero(t, f.created)

	// the same column through the map-backed algorithm
	rows, _, err := runDimExtraction(t, plan, seg.MakeCursor())
	require.NoError(t, err)
	require.Equal(t, map[any]string{"x": "1", "y": "2"}, decimals(rowsToMap(rows, 0)))
}

func TestIndexed_NumericColumnIsUnsupported(t *testing.T) {
	seg := buildSegment(t, []segment.ColumnSpec{{Name: "added", Type: "long"}}, map[string]any{"added": 1})
	_, _, err := runIndexed(t, mustPlan(t, sumQuery("added", nil)), 0, seg.MakeCursor())
	require.ErrorIs(t, err, coreerrors.ErrUnsupportedCardinality)
}

func TestIndexed_RejectsNonInjectiveExtraction(t *testing.T) {
	plan := mustPlan(t, sumQuery("page", &extraction.Spec{Type: extraction.TypeLower}))
	_, _, err := runIndexed(t, plan, 0, wikiSegment(t).MakeCursor())
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestIndexed_MatchesDimExtraction(t *testing.T) {
	plan := mustPlan(t, sumQuery("tags", nil))
	want, _, err := runDimExtraction(t, plan, wikiSegment(t).MakeCursor())
	require.NoError(t, err)

	for _, perPass := range []int{0, 1, 2, 3, 100} {
		got, stats, err := runIndexed(t, plan, perPass, wikiSegment(t).MakeCursor())
		require.NoError(t, err, "perPass=%d", perPass)
		require.Equal(t, decimals(rowsToMap(want, 0)), decimals(rowsToMap(got, 0)), "perPass=%d", perPass)
		require.Equal(t, decimals(rowsToMap(want, 1)), decimals(rowsToMap(got, 1)), "perPass=%d", perPass)
		require.Equal(t, stats.Created, stats.Released)
	}
}

func TestIndexed_PassCount(t *testing.T) {
	// page dictionary: null, Help, Main, Talk
	plan := mustPlan(t, sumQuery("page", nil))
	_, stats, err := runIndexed(t, plan, 3, wikiSegment(t).MakeCursor())
	require.NoError(t, err)
	require.Equal(t, 2, stats.Passes)
	require.Equal(t, int64(10), stats.Rows)
	require.Equal(t, 4, stats.Keys)
}

func TestIndexed_InjectiveLookup(t *testing.T) {
	plan := mustPlan(t, sumQuery("page", &extraction.Spec{
		Type:          extraction.TypeLookup,
		Lookup:        map[string]string{"Main": "Talk", "Talk": "Main"},
		Injective:     true,
		RetainMissing: true,
	}))
	rows, _, err := runIndexed(t, plan, 0, wikiSegment(t).MakeCursor())
	require.NoError(t, err)
	require.Equal(t, map[any]string{"Talk": "15", "Main": "3", "Help": "1", nil: "2"}, decimals(rowsToMap(rows, 0)))
}

func TestIndexed_LookupDroppingMissingValuesIsNotInjective(t *testing.T) {
	_, err := NewPlan(sumQuery("tags", &extraction.Spec{
		Type:      extraction.TypeLookup,
		Lookup:    map[string]string{"a": "A"},
		Injective: true,
	}))
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestIndexed_InjectiveLookupMatchesDimExtraction(t *testing.T) {
	seg := buildSegment(t, []segment.ColumnSpec{{Name: "tags", MultiValue: true}, {Name: "added", Type: "long"}},
		map[string]any{"tags": []any{"b", "c"}, "added": 1},
		map[string]any{"tags": []any{"b"}, "added": 2},
		map[string]any{"tags": []any{"c"}, "added": 4},
		map[string]any{"tags": []any{"a"}, "added": 8},
		map[string]any{"tags": []any{"a", "b", "a"}, "added": 16},
	)
	plan := mustPlan(t, sumQuery("tags", &extraction.Spec{
		Type:          extraction.TypeLookup,
		Lookup:        map[string]string{"a": "b", "b": "a"},
		Injective:     true,
		RetainMissing: true,
	}))

	want, _, err := runDimExtraction(t, plan, seg.MakeCursor())
	require.NoError(t, err)
	require.Equal(t, map[any]string{"a": "19", "b": "24", "c": "5"}, decimals(rowsToMap(want, 0)))

	for _, perPass := range []int{0, 1, 2} {
		got, stats, err := runIndexed(t, plan, perPass, seg.MakeCursor())
		require.NoError(t, err, "perPass=%d", perPass)
		require.Len(t, got, len(want), "perPass=%d", perPass)
		require.Equal(t, decimals(rowsToMap(want, 0)), decimals(rowsToMap(got, 0)), "perPass=%d", perPass)
		require.Equal(t, decimals(rowsToMap(want, 1)), decimals(rowsToMap(got, 1)), "perPass=%d", perPass)
		require.Equal(t, stats.Created, stats.Released)
	}
}

// collapsingFn claims injectivity but sends everything except "a" to null.
type collapsingFn struct{}

func (collapsingFn) Apply(v any) (string, bool) {
	if v == "a" {
		return "A", true
	}
	return "", false
}
func (collapsingFn) Injective() bool { return true }

func TestIndexed_CountsSharedKeyOncePerRow(t *testing.T) {
	seg := buildSegment(t, []segment.ColumnSpec{{Name: "tags", MultiValue: true}, {Name: "added", Type: "long"}},
		map[string]any{"tags": []any{"b", "c"}, "added": 1},
		map[string]any{"tags": []any{"b"}, "added": 2},
		map[string]any{"tags": []any{"c"}, "added": 4},
		map[string]any{"tags": []any{"a"}, "added": 8},
	)
	plan := mustPlan(t, sumQuery("tags", nil))
	plan.Extraction = collapsingFn{}

	rows, _, err := runIndexed(t, plan, 0, seg.MakeCursor())
	require.NoError(t, err)
	require.Equal(t, map[any]string{nil: "7", "A": "8"}, decimals(rowsToMap(rows, 0)))
	require.Equal(t, map[any]string{nil: "3", "A": "1"}, decimals(rowsToMap(rows, 1)))
}
