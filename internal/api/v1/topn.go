package v1

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/aevon-lab/aevon-topn/internal/segment"
	"github.com/aevon-lab/aevon-topn/internal/topn"
)

// TopNRequest is the body of POST /v1/topn.
//
// The embedded query runs independently against every listed segment;
// an empty Segments list means every segment the node serves.
type TopNRequest struct {
	Segments []string `json:"segments,omitempty"`
	topn.Query
}

// Validate checks the request envelope. Query semantics are validated by
// topn.NewPlan.
func (r *TopNRequest) Validate() error {
	seen := make(map[string]struct{}, len(r.Segments))
	for _, id := range r.Segments {
		if id == "" {
			return fmt.Errorf("segments must not contain empty ids")
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("segment %q is listed twice", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// TopNResponse is the body returned for a top-N query.
type TopNResponse struct {
	QueryID string          `json:"query_id"`
	Results []SegmentResult `json:"results"`
}

// SegmentResult is the ranked output of one segment. Results of different
// segments are never merged.
type SegmentResult struct {
	Segment   string `json:"segment"`
	Version   string `json:"version"`
	Algorithm string `json:"algorithm"`
	Cached    bool   `json:"cached"`

	// Rows holds one object per group: the dimension output name mapped to
	// the group key, plus one entry per aggregation.
	Rows []map[string]any `json:"rows"`
}

// NewSegmentResult renders an engine result for the wire.
func NewSegmentResult(res *topn.Result, cached bool) SegmentResult {
	out := SegmentResult{
		Segment:   res.Segment,
		Version:   res.Version,
		Algorithm: res.Stats.Algorithm,
		Cached:    cached,
		Rows:      make([]map[string]any, 0, len(res.Rows)),
	}
	for _, row := range res.Rows {
		obj := make(map[string]any, len(res.Metrics)+1)
		obj[res.Dimension] = renderValue(row.Key.Value())
		for i, name := range res.Metrics {
			obj[name] = renderValue(row.Values[i])
		}
		out.Rows = append(out.Rows, obj)
	}
	return out
}

// renderValue turns decimals into bare JSON numbers and non-finite floats
// into strings, which encoding/json cannot represent.
func renderValue(v any) any {
	switch val := v.(type) {
	case decimal.Decimal:
		return json.Number(val.String())
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return strconv.FormatFloat(val, 'f', -1, 64)
		}
		return val
	default:
		return v
	}
}

// SegmentInfo describes one served segment.
type SegmentInfo struct {
	ID      string               `json:"id"`
	Version string               `json:"version"`
	Rows    int                  `json:"rows"`
	Columns []segment.ColumnSpec `json:"columns"`
}

// SegmentsResponse is the body of GET /v1/segments.
type SegmentsResponse struct {
	Segments []SegmentInfo `json:"segments"`
}
