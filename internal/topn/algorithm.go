package topn

import (
	"context"
	"fmt"
	"log/slog"

	coreerrors "github.com/aevon-lab/aevon-topn/internal/core/errors"
	"github.com/aevon-lab/aevon-topn/internal/segment"
)

// Algorithm is the skeleton of a top-N scan. S is the row → key selector
// handle of one pass, A the aggregate store of one pass.
//
// Run calls the methods in a fixed order; implementations never call each
// other.
type Algorithm[S, A any] interface {
	Name() string

	// MakeInitParams decides how many distinct values one pass may process.
	MakeInitParams(column ColumnSelectorPlus, cursor segment.Cursor) (*Params, error)

	// MakeDimValSelector prepares the first pass over values
	// [numProcessed, numProcessed+numToProcess).
	MakeDimValSelector(p *Params, numProcessed, numToProcess int) (S, error)

	// UpdateDimValSelector moves an existing selector to the next pass.
	UpdateDimValSelector(sel S, numProcessed, numToProcess int) S

	MakeDimValAggregateStore(p *Params) A

	// ScanAndAggregate drives the cursor to the end once and returns the
	// number of rows visited.
	ScanAndAggregate(ctx context.Context, p *Params, sel S, store A) (int64, error)

	// UpdateResults offers every aggregated key to rb.
	UpdateResults(p *Params, sel S, store A, rb ResultBuilder) error

	// CloseAggregators releases every accumulator of store exactly once.
	// It must be safe to call after a failed scan and more than once.
	CloseAggregators(store A) error

	// Cleanup releases anything held by p outside the store.
	Cleanup(p *Params)
}

// RunStats describes a finished run.
type RunStats struct {
	Algorithm string
	Passes    int
	Rows      int64
	Keys      int
	Created   int
	Released  int
}

// Run executes alg over cursor, emitting into rb. Each pass moves through
// Init, Selecting, Aggregating, Emitting and Closed; the store of a pass is
// closed and params are cleaned up on every exit path, including failure and
// cancellation.
func Run[S, A any](ctx context.Context, alg Algorithm[S, A], column ColumnSelectorPlus, cursor segment.Cursor, rb ResultBuilder) (stats RunStats, err error) {
	stats.Algorithm = alg.Name()

	params, err := alg.MakeInitParams(column, cursor)
	if err != nil {
		return stats, err
	}
	defer alg.Cleanup(params)

	perPass := params.NumValuesPerPass
	if perPass <= 0 {
		perPass = Unbounded
	}

	var sel S
	for processed := 0; ; processed += perPass {
		if processed > 0 {
			if err := params.Cursor.Reset(); err != nil {
				return stats, cursorError("reset", stats.Rows, err)
			}
		}
		if err := runPass(ctx, alg, params, &sel, processed, perPass, rb, &stats); err != nil {
			return stats, err
		}
		stats.Passes++

		if perPass == Unbounded || params.Cardinality < 0 || processed+perPass >= params.Cardinality {
			return stats, nil
		}
	}
}

func runPass[S, A any](ctx context.Context, alg Algorithm[S, A], params *Params, sel *S, processed, perPass int, rb ResultBuilder, stats *RunStats) (err error) {
	var tracker phaseTracker
	defer tracker.close()

	if err := tracker.advance(PhaseSelecting); err != nil {
		return err
	}
	if processed == 0 {
		s, err := alg.MakeDimValSelector(params, processed, perPass)
		if err != nil {
			return err
		}
		*sel = s
	} else {
		*sel = alg.UpdateDimValSelector(*sel, processed, perPass)
	}

	if err := tracker.advance(PhaseAggregating); err != nil {
		return err
	}
	store := alg.MakeDimValAggregateStore(params)
	defer func() {
		tracker.close()
		cerr := alg.CloseAggregators(store)
		if s, ok := any(store).(interface{ Stats() StoreStats }); ok {
			st := s.Stats()
			stats.Keys += st.Keys
			stats.Created += st.Created
			stats.Released += st.Released
		}
		if cerr != nil {
			if err == nil {
				err = cerr
				return
			}
			slog.Warn("[Engine] Closing aggregators after failed pass", "algorithm", alg.Name(), "error", cerr)
		}
	}()

	rows, err := alg.ScanAndAggregate(ctx, params, *sel, store)
	stats.Rows += rows
	if err != nil {
		return err
	}

	if err := tracker.advance(PhaseEmitting); err != nil {
		return err
	}
	return alg.UpdateResults(params, *sel, store, rb)
}

func cursorError(op string, rows int64, err error) error {
	return &coreerrors.CursorError{Op: op, Rows: rows, Err: err}
}

func unsupportedCardinality(column string) error {
	return fmt.Errorf("column %q: %w", column, coreerrors.ErrUnsupportedCardinality)
}
