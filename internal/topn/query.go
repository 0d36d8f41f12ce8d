package topn

import (
	"errors"
	"fmt"

	"github.com/aevon-lab/aevon-topn/internal/core/aggregation"
	"github.com/aevon-lab/aevon-topn/internal/core/extraction"
)

// ErrInvalidQuery is wrapped by every query validation failure.
var ErrInvalidQuery = errors.New("invalid top-n query")

// Algorithm names accepted in Query.Algorithm.
const (
	AlgorithmAuto          = "auto"
	AlgorithmDimExtraction = "dim_extraction"
	AlgorithmIndexed       = "indexed"
)

// Dimension names the grouping column and an optional extraction function.
type Dimension struct {
	Column     string           `json:"column" yaml:"column"`
	OutputName string           `json:"output_name,omitempty" yaml:"output_name,omitempty"`
	Extraction *extraction.Spec `json:"extraction,omitempty" yaml:"extraction,omitempty"`
}

// Query is a top-N query against one segment.
type Query struct {
	Dimension    Dimension          `json:"dimension" yaml:"dimension"`
	Metric       string             `json:"metric" yaml:"metric"`
	Threshold    int                `json:"threshold" yaml:"threshold"`
	Ascending    bool               `json:"ascending,omitempty" yaml:"ascending,omitempty"`
	Algorithm    string             `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	Aggregations []aggregation.Spec `json:"aggregations" yaml:"aggregations"`
}

// Plan is a validated Query with its metric factories and extraction
// function resolved. A Plan is immutable and may be shared by concurrent runs.
type Plan struct {
	Query       Query
	Factories   []aggregation.Factory
	Extraction  extraction.Fn // nil when the dimension has no extraction
	MetricIndex int
}

// NewPlan validates q and resolves everything a run needs.
func NewPlan(q Query) (*Plan, error) {
	if q.Dimension.Column == "" {
		return nil, fmt.Errorf("%w: dimension column must not be empty", ErrInvalidQuery)
	}
	if q.Dimension.OutputName == "" {
		q.Dimension.OutputName = q.Dimension.Column
	}
	if q.Threshold <= 0 {
		return nil, fmt.Errorf("%w: threshold must be positive, got %d", ErrInvalidQuery, q.Threshold)
	}
	switch q.Algorithm {
	case "":
		q.Algorithm = AlgorithmAuto
	case AlgorithmAuto, AlgorithmDimExtraction, AlgorithmIndexed:
	default:
		return nil, fmt.Errorf("%w: unknown algorithm %q", ErrInvalidQuery, q.Algorithm)
	}
	if len(q.Aggregations) == 0 {
		return nil, fmt.Errorf("%w: at least one aggregation is required", ErrInvalidQuery)
	}

	p := &Plan{Query: q, MetricIndex: -1}
	seen := make(map[string]struct{}, len(q.Aggregations))
	for i, spec := range q.Aggregations {
		if _, dup := seen[spec.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate aggregation name %q", ErrInvalidQuery, spec.Name)
		}
		seen[spec.Name] = struct{}{}

		f, err := aggregation.NewFactory(spec)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		p.Factories = append(p.Factories, f)
		if spec.Name == q.Metric {
			p.MetricIndex = i
		}
	}
	if p.MetricIndex < 0 {
		return nil, fmt.Errorf("%w: metric %q is not one of the aggregations", ErrInvalidQuery, q.Metric)
	}

	if q.Dimension.Extraction != nil {
		fn, err := extraction.New(*q.Dimension.Extraction)
		if err != nil {
			return nil, fmt.Errorf("%w: dimension %q: %v", ErrInvalidQuery, q.Dimension.Column, err)
		}
		p.Extraction = fn
	}
	return p, nil
}

// MetricNames returns the aggregation names in query order.
func (p *Plan) MetricNames() []string {
	names := make([]string, len(p.Factories))
	for i, f := range p.Factories {
		names[i] = f.Name()
	}
	return names
}

// NewResultBuilder returns the top-N builder ranking by the plan's metric.
func (p *Plan) NewResultBuilder() *TopNResultBuilder {
	return NewTopNResultBuilder(p.Query.Threshold, p.MetricIndex, p.Factories[p.MetricIndex].Compare, p.Query.Ascending)
}

// injectiveExtraction reports whether keys can be addressed by dictionary id.
func (p *Plan) injectiveExtraction() bool {
	return p.Extraction == nil || p.Extraction.Injective()
}
