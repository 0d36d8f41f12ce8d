package topn

import (
	"fmt"

	"github.com/aevon-lab/aevon-topn/internal/core/aggregation"
	coreerrors "github.com/aevon-lab/aevon-topn/internal/core/errors"
	"github.com/aevon-lab/aevon-topn/internal/segment"
)

// StoreStats summarises the accumulator lifecycle of one store.
type StoreStats struct {
	Keys     int
	Created  int
	Released int
}

// AggregateStore maps group keys to their accumulator arrays. Accumulators
// live in one flat arena, len(factories) consecutive slots per key; the map
// holds each key's slot number.
//
// A store is owned by a single scan and is not safe for concurrent use.
type AggregateStore struct {
	factories []aggregation.Factory
	columns   segment.ColumnSelectorFactory

	slots map[GroupKey]int
	keys  []GroupKey
	arena []aggregation.Accumulator

	created  int
	released int
	closed   bool
}

// NewAggregateStore returns an empty store. Accumulators are bound to columns
// when created.
func NewAggregateStore(factories []aggregation.Factory, columns segment.ColumnSelectorFactory) *AggregateStore {
	return &AggregateStore{
		factories: factories,
		columns:   columns,
		slots:     make(map[GroupKey]int),
	}
}

// Len is the number of keys in the store.
func (s *AggregateStore) Len() int { return len(s.keys) }

// Slot returns the slot of key, creating one fresh accumulator per metric on
// first sight. If a factory fails, accumulators already created for the key
// are released and the key is not added.
func (s *AggregateStore) Slot(key GroupKey) (int, error) {
	if slot, ok := s.slots[key]; ok {
		return slot, nil
	}
	if s.closed {
		return 0, fmt.Errorf("aggregate store is closed")
	}

	start := len(s.arena)
	for _, f := range s.factories {
		acc, err := f.Factorize(s.columns)
		if err != nil {
			for i := start; i < len(s.arena); i++ {
				s.arena[i].Release()
				s.arena[i] = nil
				s.released++
			}
			s.arena = s.arena[:start]
			return 0, fmt.Errorf("creating %q accumulator for key %s: %w", f.Name(), key, err)
		}
		s.arena = append(s.arena, acc)
		s.created++
	}
	if got := len(s.arena) - start; got != len(s.factories) {
		return 0, fmt.Errorf("key %s has %d accumulators, want %d", key, got, len(s.factories))
	}

	slot := len(s.keys)
	s.slots[key] = slot
	s.keys = append(s.keys, key)
	return slot, nil
}

// Accumulators returns the accumulator array of a slot.
func (s *AggregateStore) Accumulators(slot int) []aggregation.Accumulator {
	n := len(s.factories)
	return s.arena[slot*n : slot*n+n : slot*n+n]
}

// Get returns the accumulator array for key, if present.
func (s *AggregateStore) Get(key GroupKey) ([]aggregation.Accumulator, bool) {
	slot, ok := s.slots[key]
	if !ok {
		return nil, false
	}
	return s.Accumulators(slot), true
}

// Each visits every key with its accumulators, in creation order.
func (s *AggregateStore) Each(fn func(key GroupKey, accs []aggregation.Accumulator)) {
	for slot, key := range s.keys {
		fn(key, s.Accumulators(slot))
	}
}

// Close releases every accumulator exactly once. Calling Close again is a
// no-op. It returns a LeakError if the counts do not balance.
func (s *AggregateStore) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	for i, acc := range s.arena {
		acc.Release()
		s.arena[i] = nil
		s.released++
	}
	s.arena = nil
	if s.created != s.released {
		return &coreerrors.LeakError{Created: s.created, Released: s.released}
	}
	return nil
}

// Stats reports the store's key and accumulator counts.
func (s *AggregateStore) Stats() StoreStats {
	return StoreStats{Keys: len(s.keys), Created: s.created, Released: s.released}
}
