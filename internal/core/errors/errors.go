package errors

import (
	"errors"
	"fmt"
)

const (
	HttpInternalError        = "internal_error"
	HttpInvalidJsonError     = "invalid_json"
	HttpInvalidQueryError    = "invalid_query"
	HttpSegmentNotFoundError = "segment_not_found"
	HttpUnsupportedError     = "unsupported_cardinality"
)

// ErrorResponse is the error response body for API errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

var (
	// ErrUnsupportedCardinality is returned when an index-addressed top-N run is
	// asked to scan a column whose cardinality is unknown. Callers should fall back
	// to the dimension-extraction algorithm.
	ErrUnsupportedCardinality = errors.New("cannot operate on a dimension with unknown cardinality")

	// ErrResourceLeak signals that an aggregate store was closed with accumulators
	// that were created but never released.
	ErrResourceLeak = errors.New("accumulator resource leak")
)

// CursorError wraps a failure raised by a row cursor while it was being driven.
type CursorError struct {
	Op   string // advance | reset
	Rows int64  // rows folded before the failure
	Err  error
}

func (e *CursorError) Error() string {
	return fmt.Sprintf("cursor %s failed after %d rows: %v", e.Op, e.Rows, e.Err)
}

func (e *CursorError) Unwrap() error {
	return e.Err
}

// LeakError carries the counts behind an ErrResourceLeak.
type LeakError struct {
	Created  int
	Released int
}

func (e *LeakError) Error() string {
	return fmt.Sprintf("%d accumulators created, %d released", e.Created, e.Released)
}

func (e *LeakError) Unwrap() error {
	return ErrResourceLeak
}
