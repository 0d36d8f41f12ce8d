package topn

import (
	"container/heap"
	"slices"
)

// ResultBuilder receives every aggregated key of a scan and keeps the ranked
// top entries. Offer takes ownership of values.
type ResultBuilder interface {
	Offer(key GroupKey, values []any)
	Build() []ResultRow
}

// ResultRow is one ranked group: its key and the finalized metric values in
// query order.
type ResultRow struct {
	Key    GroupKey
	Values []any
}

// TopNResultBuilder keeps the best threshold rows in a bounded heap.
//
// Rows rank by the metric at metricIndex, highest first unless ascending.
// A nil metric value ranks after every non-nil value in both directions. Ties
// are broken by GroupKey.Compare ascending, whatever the direction.
type TopNResultBuilder struct {
	threshold   int
	metricIndex int
	compare     func(a, b any) int
	ascending   bool

	rows   rowHeap
	offers int
}

func NewTopNResultBuilder(threshold, metricIndex int, compare func(a, b any) int, ascending bool) *TopNResultBuilder {
	b := &TopNResultBuilder{
		threshold:   threshold,
		metricIndex: metricIndex,
		compare:     compare,
		ascending:   ascending,
	}
	b.rows.rank = b.rank
	return b
}

// rank returns a negative number when x should be listed before y.
func (b *TopNResultBuilder) rank(x, y *ResultRow) int {
	vx, vy := x.Values[b.metricIndex], y.Values[b.metricIndex]
	switch {
	case vx == nil && vy != nil:
		return 1
	case vx != nil && vy == nil:
		return -1
	case vx != nil:
		c := b.compare(vx, vy)
		if !b.ascending {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return x.Key.Compare(y.Key)
}

func (b *TopNResultBuilder) Offer(key GroupKey, values []any) {
	b.offers++
	row := &ResultRow{Key: key, Values: values}
	if b.rows.Len() < b.threshold {
		heap.Push(&b.rows, row)
		return
	}
	// root is the worst row kept so far
	if b.threshold == 0 || b.rank(row, b.rows.items[0]) >= 0 {
		return
	}
	b.rows.items[0] = row
	heap.Fix(&b.rows, 0)
}

// Offers is the number of rows offered so far.
func (b *TopNResultBuilder) Offers() int { return b.offers }

// Build returns the kept rows, best first.
func (b *TopNResultBuilder) Build() []ResultRow {
	sorted := slices.Clone(b.rows.items)
	slices.SortFunc(sorted, b.rank)
	out := make([]ResultRow, len(sorted))
	for i, r := range sorted {
		out[i] = *r
	}
	return out
}

// rowHeap is a max-heap by rank: the worst kept row is at the root.
type rowHeap struct {
	items []*ResultRow
	rank  func(x, y *ResultRow) int
}

func (h *rowHeap) Len() int           { return len(h.items) }
func (h *rowHeap) Less(i, j int) bool { return h.rank(h.items[i], h.items[j]) > 0 }
func (h *rowHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *rowHeap) Push(x any)         { h.items = append(h.items, x.(*ResultRow)) }
func (h *rowHeap) Pop() any {
	old := h.items
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	return x
}
