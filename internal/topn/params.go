package topn

import (
	"math"

	"github.com/aevon-lab/aevon-topn/internal/segment"
)

// Unbounded is the per-pass key bound meaning "process every value in one pass".
const Unbounded = math.MaxInt

// ColumnSelectorPlus is the grouping column resolved against a cursor: its
// capabilities and the strategy chosen for its value type.
type ColumnSelectorPlus struct {
	Column       string
	Exists       bool
	Capabilities segment.ColumnCapabilities
	Strategy     ColumnSelectorStrategy
}

// ResolveColumn looks the column up once and picks its strategy. A missing
// column is treated as a string column whose every row is null.
func ResolveColumn(columns segment.ColumnSelectorFactory, column string) ColumnSelectorPlus {
	caps, ok := columns.Capabilities(column)
	if !ok {
		caps = segment.ColumnCapabilities{Type: segment.TypeString, Cardinality: 1}
	}
	return ColumnSelectorPlus{
		Column:       column,
		Exists:       ok,
		Capabilities: caps,
		Strategy:     strategyFor(caps.Type),
	}
}

// Params is the immutable state of one scan: the resolved column, the cursor
// and the number of distinct values to process per pass.
type Params struct {
	Column           ColumnSelectorPlus
	Cursor           segment.Cursor
	Cardinality      int
	NumValuesPerPass int
}
