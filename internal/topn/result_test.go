package topn

import (
	"cmp"
	"testing"

	"github.com/stretchr/testify/require"
)

func compareInts(a, b any) int { return cmp.Compare(a.(int), b.(int)) }

func offerAll(rb ResultBuilder, entries map[string]any) {
	for k, v := range entries {
		rb.Offer(StringKey(k), []any{v})
	}
}

func TestTopNResultBuilder_TieBreak(t *testing.T) {
	// map iteration order varies between runs; the result must not
	for i := 0; i < 50; i++ {
		rb := NewTopNResultBuilder(2, 0, compareInts, false)
		offerAll(rb, map[string]any{"x": 10, "y": 10, "z": 5})
		require.Equal(t, []any{"x", "y"}, keysOf(rb.Build()))
	}
}

func TestTopNResultBuilder_TieBreakIgnoresDirection(t *testing.T) {
	for i := 0; i < 50; i++ {
		rb := NewTopNResultBuilder(2, 0, compareInts, true)
		offerAll(rb, map[string]any{"x": 10, "y": 10, "z": 10, "w": 20})
		require.Equal(t, []any{"x", "y"}, keysOf(rb.Build()))
	}
}

func TestTopNResultBuilder_Ordering(t *testing.T) {
	entries := map[string]any{"a": 3, "b": 9, "c": nil, "d": 1, "e": 7}
	tests := []struct {
		name      string
		threshold int
		ascending bool
		want      []any
	}{
		{name: "descending", threshold: 3, want: []any{"b", "e", "a"}},
		{name: "ascending", threshold: 3, ascending: true, want: []any{"d", "a", "e"}},
		{name: "nil ranks last descending", threshold: 10, want: []any{"b", "e", "a", "d", "c"}},
		{name: "nil ranks last ascending", threshold: 10, ascending: true, want: []any{"d", "a", "e", "b", "c"}},
		{name: "threshold one", threshold: 1, want: []any{"b"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rb := NewTopNResultBuilder(tc.threshold, 0, compareInts, tc.ascending)
			offerAll(rb, entries)
			require.Equal(t, tc.want, keysOf(rb.Build()))
			require.Equal(t, len(entries), rb.Offers())
		})
	}
}

func TestTopNResultBuilder_NullKeyBreaksTiesFirst(t *testing.T) {
	rb := NewTopNResultBuilder(3, 0, compareInts, false)
	rb.Offer(StringKey("a"), []any{1})
	rb.Offer(NullKey(KeyString), []any{1})
	rb.Offer(StringKey("b"), []any{2})
	require.Equal(t, []any{"b", nil, "a"}, keysOf(rb.Build()))
}

func TestTopNResultBuilder_Empty(t *testing.T) {
	rb := NewTopNResultBuilder(3, 0, compareInts, false)
	require.Empty(t, rb.Build())
}
