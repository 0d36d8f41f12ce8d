package historical

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/singleflight"

	"github.com/aevon-lab/aevon-topn/internal/segment"
)

// RefreshReport summarises one Refresh.
type RefreshReport struct {
	Loaded    int
	Unchanged int
	Dropped   int
	Failed    int
}

// Manager holds the segments this node serves, loaded from a Source.
type Manager struct {
	source segment.Source

	mu       sync.RWMutex
	segments map[string]*segment.Segment

	loadGroup singleflight.Group // Dedupe concurrent loads of the same segment
}

func NewManager(source segment.Source) *Manager {
	return &Manager{
		source:   source,
		segments: make(map[string]*segment.Segment),
	}
}

// Refresh reconciles the served set with the source: new or re-versioned
// segments are loaded, unlisted ones dropped. A segment that fails to load
// keeps serving its previous version; every failure is reported.
func (m *Manager) Refresh(ctx context.Context) (RefreshReport, error) {
	var report RefreshReport

	descs, err := m.source.List(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list segments: %w", err)
	}

	listed := make(map[string]struct{}, len(descs))
	var errs *multierror.Error
	for _, d := range descs {
		listed[d.ID] = struct{}{}

		m.mu.RLock()
		current, ok := m.segments[d.ID]
		m.mu.RUnlock()
		if ok && current.Version() == d.Version {
			report.Unchanged++
			continue
		}

		if _, err := m.load(ctx, d.ID); err != nil {
			report.Failed++
			errs = multierror.Append(errs, err)
			continue
		}
		report.Loaded++
	}

	m.mu.Lock()
	for id := range m.segments {
		if _, ok := listed[id]; !ok {
			delete(m.segments, id)
			report.Dropped++
		}
	}
	m.mu.Unlock()

	slog.Info("[Historical] Segments refreshed",
		"loaded", report.Loaded,
		"unchanged", report.Unchanged,
		"dropped", report.Dropped,
		"failed", report.Failed,
	)
	return report, errs.ErrorOrNil()
}

// Get returns a served segment, loading it from the source on a miss.
// Returns an error wrapping segment.ErrSegmentNotFound for unknown ids.
func (m *Manager) Get(ctx context.Context, id string) (*segment.Segment, error) {
	m.mu.RLock()
	seg, ok := m.segments[id]
	m.mu.RUnlock()
	if ok {
		return seg, nil
	}
	return m.load(ctx, id)
}

// Segments returns every served segment ordered by id.
func (m *Manager) Segments() []*segment.Segment {
	m.mu.RLock()
	out := make([]*segment.Segment, 0, len(m.segments))
	for _, seg := range m.segments {
		out = append(out, seg)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (m *Manager) load(ctx context.Context, id string) (*segment.Segment, error) {
	result, err, _ := m.loadGroup.Do(id, func() (interface{}, error) {
		seg, err := m.source.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if seg.ID() != id {
			return nil, fmt.Errorf("source returned segment %q for id %q", seg.ID(), id)
		}

		m.mu.Lock()
		m.segments[id] = seg
		m.mu.Unlock()

		slog.Debug("[Historical] Segment loaded", "segment", id, "version", seg.Version(), "rows", seg.NumRows())
		return seg, nil
	})
	if err != nil {
		if errors.Is(err, segment.ErrSegmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load segment %s: %w", id, err)
	}
	return result.(*segment.Segment), nil
}
