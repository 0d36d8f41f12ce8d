package historical

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	v1 "github.com/aevon-lab/aevon-topn/internal/api/v1"
	"github.com/aevon-lab/aevon-topn/internal/segment"
	"github.com/aevon-lab/aevon-topn/internal/topn"
)

// SegmentProvider is the part of Manager the query service reads from.
type SegmentProvider interface {
	Get(ctx context.Context, id string) (*segment.Segment, error)
	Segments() []*segment.Segment
}

// Options configure a Service.
type Options struct {
	MaxThreshold  int
	CacheTTL      time.Duration // 0 disables the result cache
	CacheCapacity int           // 0 means unbounded
	Metrics       *Metrics
}

// resultKey identifies one cached per-segment result. Version changes when
// the segment is reloaded with different content, so stale entries are never
// hit.
type resultKey struct {
	segment   string
	version   string
	queryHash uint64
}

// Service answers top-N queries over the segments of a SegmentProvider.
type Service struct {
	segments SegmentProvider
	engine   *topn.Engine
	opts     Options
	cache    *ttlcache.Cache[resultKey, *topn.Result]
	newID    func() string
}

func NewService(segments SegmentProvider, engine *topn.Engine, opts Options) *Service {
	s := &Service{
		segments: segments,
		engine:   engine,
		opts:     opts,
		newID:    uuid.NewString,
	}
	if opts.CacheTTL > 0 {
		cacheOpts := []ttlcache.Option[resultKey, *topn.Result]{
			ttlcache.WithTTL[resultKey, *topn.Result](opts.CacheTTL),
		}
		if opts.CacheCapacity > 0 {
			cacheOpts = append(cacheOpts, ttlcache.WithCapacity[resultKey, *topn.Result](uint64(opts.CacheCapacity)))
		}
		s.cache = ttlcache.New(cacheOpts...)
	}
	return s
}

// Query runs req against each requested segment independently. Per-segment
// results are served from the cache when the same query already ran against
// the same segment version.
func (s *Service) Query(ctx context.Context, req v1.TopNRequest) (resp *v1.TopNResponse, err error) {
	defer func() { s.opts.Metrics.query(err) }()

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", topn.ErrInvalidQuery, err)
	}
	if s.opts.MaxThreshold > 0 && req.Threshold > s.opts.MaxThreshold {
		return nil, fmt.Errorf("%w: threshold %d exceeds the maximum of %d", topn.ErrInvalidQuery, req.Threshold, s.opts.MaxThreshold)
	}
	plan, err := topn.NewPlan(req.Query)
	if err != nil {
		return nil, err
	}

	segs, err := s.resolveSegments(ctx, req.Segments)
	if err != nil {
		return nil, err
	}

	hash, err := queryHash(plan.Query)
	if err != nil {
		return nil, err
	}

	results := make([]*topn.Result, len(segs))
	cached := make([]bool, len(segs))
	var (
		misses   []topn.SegmentView
		missSlot []int
	)
	for i, seg := range segs {
		if res, ok := s.cached(resultKey{seg.ID(), seg.Version(), hash}); ok {
			results[i], cached[i] = res, true
			continue
		}
		misses = append(misses, seg)
		missSlot = append(missSlot, i)
	}

	if len(misses) > 0 {
		fresh, err := s.engine.RunSegments(ctx, plan, misses)
		if err != nil {
			return nil, err
		}
		for j, res := range fresh {
			results[missSlot[j]] = res
			s.store(resultKey{res.Segment, res.Version, hash}, res)
		}
	}

	resp = &v1.TopNResponse{
		QueryID: s.newID(),
		Results: make([]v1.SegmentResult, len(results)),
	}
	for i, res := range results {
		resp.Results[i] = v1.NewSegmentResult(res, cached[i])
	}

	slog.Debug("[Historical] Query served",
		"query_id", resp.QueryID,
		"segments", len(segs),
		"cached", len(segs)-len(misses),
	)
	return resp, nil
}

// ListSegments describes every served segment.
func (s *Service) ListSegments() v1.SegmentsResponse {
	segs := s.segments.Segments()
	out := v1.SegmentsResponse{Segments: make([]v1.SegmentInfo, 0, len(segs))}
	for _, seg := range segs {
		out.Segments = append(out.Segments, v1.SegmentInfo{
			ID:      seg.ID(),
			Version: seg.Version(),
			Rows:    seg.NumRows(),
			Columns: seg.Columns(),
		})
	}
	return out
}

func (s *Service) resolveSegments(ctx context.Context, ids []string) ([]*segment.Segment, error) {
	if len(ids) == 0 {
		return s.segments.Segments(), nil
	}
	out := make([]*segment.Segment, 0, len(ids))
	for _, id := range ids {
		seg, err := s.segments.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, seg)
	}
	return out, nil
}

func (s *Service) cached(key resultKey) (*topn.Result, bool) {
	if s.cache == nil {
		return nil, false
	}
	item := s.cache.Get(key)
	s.opts.Metrics.cacheLookup(item != nil)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

func (s *Service) store(key resultKey, res *topn.Result) {
	if s.cache == nil {
		return
	}
	s.cache.Set(key, res, ttlcache.DefaultTTL)
}

// queryHash fingerprints the normalised query. Two requests that differ
// only in defaulted fields hash the same.
func queryHash(q topn.Query) (uint64, error) {
	data, err := json.Marshal(q)
	if err != nil {
		return 0, fmt.Errorf("failed to hash query: %w", err)
	}
	return xxhash.Sum64(data), nil
}
