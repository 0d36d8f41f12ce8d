package topn

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aevon-lab/aevon-topn/internal/segment"
)

// Options configure an Engine.
type Options struct {
	// ValuesPerPass bounds the dictionary ids the indexed algorithm
	// aggregates per pass. 0 means a single pass.
	ValuesPerPass int

	// MaxConcurrentSegments bounds RunSegments. 0 means no limit.
	MaxConcurrentSegments int

	Metrics *Metrics
}

// Engine picks an algorithm per segment and runs it.
type Engine struct {
	opts Options
}

func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

// SegmentView is what the engine needs from a segment.
type SegmentView interface {
	ID() string
	Version() string
	MakeCursor() segment.Cursor
}

// Result is the top-N of one segment.
type Result struct {
	Segment   string
	Version   string
	Dimension string
	Metrics   []string
	Rows      []ResultRow
	Stats     RunStats
}

// ChooseAlgorithm returns the algorithm a plan runs with on column. In auto
// mode the indexed algorithm is used only when every key can be addressed by
// dictionary id; an explicit choice is honoured and may fail at run time.
func ChooseAlgorithm(plan *Plan, column ColumnSelectorPlus) string {
	switch plan.Query.Algorithm {
	case AlgorithmIndexed, AlgorithmDimExtraction:
		return plan.Query.Algorithm
	}
	caps := column.Capabilities
	if column.Exists && caps.Type == segment.TypeString && caps.HasKnownCardinality() && plan.injectiveExtraction() {
		return AlgorithmIndexed
	}
	return AlgorithmDimExtraction
}

// Run scans cursor once per pass and returns the ranked rows.
func (e *Engine) Run(ctx context.Context, plan *Plan, cursor segment.Cursor) ([]ResultRow, RunStats, error) {
	start := time.Now()
	column := ResolveColumn(cursor.ColumnSelectorFactory(), plan.Query.Dimension.Column)
	rb := plan.NewResultBuilder()

	var (
		stats RunStats
		err   error
	)
	switch ChooseAlgorithm(plan, column) {
	case AlgorithmIndexed:
		stats, err = Run(ctx, NewIndexed(plan, e.opts.ValuesPerPass), column, cursor, rb)
	default:
		stats, err = Run(ctx, NewDimExtraction(plan), column, cursor, rb)
	}
	e.opts.Metrics.observe(stats, time.Since(start).Seconds(), err)
	if err != nil {
		return nil, stats, err
	}

	slog.Debug("[Engine] Run complete",
		"algorithm", stats.Algorithm,
		"column", column.Column,
		"passes", stats.Passes,
		"rows", stats.Rows,
		"keys", stats.Keys,
		"offered", rb.Offers(),
	)
	return rb.Build(), stats, nil
}

// RunSegment runs plan against one segment.
func (e *Engine) RunSegment(ctx context.Context, plan *Plan, seg SegmentView) (*Result, error) {
	rows, stats, err := e.Run(ctx, plan, seg.MakeCursor())
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", seg.ID(), err)
	}
	return &Result{
		Segment:   seg.ID(),
		Version:   seg.Version(),
		Dimension: plan.Query.Dimension.OutputName,
		Metrics:   plan.MetricNames(),
		Rows:      rows,
		Stats:     stats,
	}, nil
}

// RunSegments runs plan against every segment independently and returns the
// per-segment results in input order. Results are not merged. The first
// failure cancels the remaining runs.
func (e *Engine) RunSegments(ctx context.Context, plan *Plan, segs []SegmentView) ([]*Result, error) {
	results := make([]*Result, len(segs))
	g, ctx := errgroup.WithContext(ctx)
	if e.opts.MaxConcurrentSegments > 0 {
		g.SetLimit(e.opts.MaxConcurrentSegments)
	}
	for i, seg := range segs {
		g.Go(func() error {
			res, err := e.RunSegment(ctx, plan, seg)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
