package topn

import (
	"cmp"
	"math"
	"strconv"
	"strings"
)

// KeyType tags the value held by a GroupKey. The declaration order is the
// cross-type sort order.
type KeyType uint8

const (
	KeyString KeyType = iota
	KeyLong
	KeyDouble
)

// GroupKey is one grouping value after extraction. It is comparable, so it can
// be used as a map key, and totally ordered by Compare.
type GroupKey struct {
	Type   KeyType
	Null   bool
	Str    string
	Long   int64
	Double float64
}

func StringKey(s string) GroupKey { return GroupKey{Type: KeyString, Str: s} }
func LongKey(v int64) GroupKey    { return GroupKey{Type: KeyLong, Long: v} }

// DoubleKey normalises NaN to the null double key so equal-looking keys stay
// equal under ==.
func DoubleKey(v float64) GroupKey {
	if math.IsNaN(v) {
		return NullKey(KeyDouble)
	}
	if v == 0 {
		v = 0 // fold -0
	}
	return GroupKey{Type: KeyDouble, Double: v}
}

func NullKey(t KeyType) GroupKey { return GroupKey{Type: t, Null: true} }

// Compare orders null before non-null, then by type, then by natural order.
func (k GroupKey) Compare(o GroupKey) int {
	if k.Null != o.Null {
		if k.Null {
			return -1
		}
		return 1
	}
	if c := cmp.Compare(k.Type, o.Type); c != 0 {
		return c
	}
	if k.Null {
		return 0
	}
	switch k.Type {
	case KeyLong:
		return cmp.Compare(k.Long, o.Long)
	case KeyDouble:
		return cmp.Compare(k.Double, o.Double)
	default:
		return strings.Compare(k.Str, o.Str)
	}
}

// Value returns the key as a plain Go value: nil, string, int64 or float64.
func (k GroupKey) Value() any {
	if k.Null {
		return nil
	}
	switch k.Type {
	case KeyLong:
		return k.Long
	case KeyDouble:
		return k.Double
	default:
		return k.Str
	}
}

func (k GroupKey) String() string {
	if k.Null {
		return "<null>"
	}
	switch k.Type {
	case KeyLong:
		return strconv.FormatInt(k.Long, 10)
	case KeyDouble:
		return strconv.FormatFloat(k.Double, 'g', -1, 64)
	default:
		return k.Str
	}
}
