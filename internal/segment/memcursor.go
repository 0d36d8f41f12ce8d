package segment

import (
	"encoding/json"
	"math"
	"strconv"
)

// memCursor walks a Segment row by row. It is also the ColumnSelectorFactory
// for its own selectors, which read the row at the cursor's position.
type memCursor struct {
	seg *Segment
	pos int
}

func (c *memCursor) ColumnSelectorFactory() ColumnSelectorFactory { return c }

func (c *memCursor) Advance() error {
	if c.pos < c.seg.numRows {
		c.pos++
	}
	return nil
}

func (c *memCursor) IsDone() bool { return c.pos >= c.seg.numRows }

func (c *memCursor) Reset() error {
	c.pos = 0
	return nil
}

func (c *memCursor) Capabilities(name string) (ColumnCapabilities, bool) {
	col, ok := c.seg.columns[name]
	if !ok {
		return ColumnCapabilities{}, false
	}
	return col.capabilities(), true
}

func (c *memCursor) MakeDimensionSelector(name string) DimensionSelector {
	switch col := c.seg.columns[name].(type) {
	case *stringColumn:
		if col.hideCardinal {
			return &rowLocalDimensionSelector{read: func() []*string {
				return idsToStrings(col, col.rows[c.pos])
			}}
		}
		return &stringDimensionSelector{cursor: c, col: col}
	case nil:
		return nullDimensionSelector{}
	default:
		return &rowLocalDimensionSelector{read: func() []*string {
			return objectToStrings(col.object(c.pos))
		}}
	}
}

func (c *memCursor) MakeNumericSelector(name string) NumericSelector {
	switch col := c.seg.columns[name].(type) {
	case *longColumn:
		return &longSelector{cursor: c, col: col}
	case *doubleColumn:
		return &doubleSelector{cursor: c, col: col}
	case nil:
		return nullNumericSelector{}
	default:
		return &coercingNumericSelector{read: func() any { return col.object(c.pos) }}
	}
}

func (c *memCursor) MakeObjectSelector(name string) ObjectSelector {
	col, ok := c.seg.columns[name]
	if !ok {
		return nullObjectSelector{}
	}
	return &objectSelector{cursor: c, col: col}
}

type stringDimensionSelector struct {
	cursor *memCursor
	col    *stringColumn
}

func (s *stringDimensionSelector) Row() []int                       { return s.col.rows[s.cursor.pos] }
func (s *stringDimensionSelector) LookupName(id int) (string, bool) { return s.col.lookup(id) }
func (s *stringDimensionSelector) Cardinality() int                 { return s.col.capabilities().Cardinality }

// rowLocalDimensionSelector hands out ids that index the current row's values
// only, as a column without a usable dictionary does.
type rowLocalDimensionSelector struct {
	read   func() []*string
	values []*string
	ids    []int
}

func (s *rowLocalDimensionSelector) Row() []int {
	s.values = s.read()
	if cap(s.ids) < len(s.values) {
		s.ids = make([]int, len(s.values))
	}
	s.ids = s.ids[:len(s.values)]
	for i := range s.ids {
		s.ids[i] = i
	}
	if len(s.values) == 0 {
		// a row with no values reads as a single null
		s.values = append(s.values, nil)
		s.ids = append(s.ids, 0)
	}
	return s.ids
}

func (s *rowLocalDimensionSelector) LookupName(id int) (string, bool) {
	if id < 0 || id >= len(s.values) || s.values[id] == nil {
		return "", false
	}
	return *s.values[id], true
}

func (s *rowLocalDimensionSelector) Cardinality() int { return CardinalityUnknown }

type nullDimensionSelector struct{}

var nullRow = []int{0}

func (nullDimensionSelector) Row() []int                   { return nullRow }
func (nullDimensionSelector) LookupName(int) (string, bool) { return "", false }
func (nullDimensionSelector) Cardinality() int              { return 1 }

type longSelector struct {
	cursor *memCursor
	col    *longColumn
}

func (s *longSelector) IsNull() bool    { return s.col.nulls[s.cursor.pos] }
func (s *longSelector) Long() int64     { return s.col.values[s.cursor.pos] }
func (s *longSelector) Double() float64 { return float64(s.col.values[s.cursor.pos]) }

type doubleSelector struct {
	cursor *memCursor
	col    *doubleColumn
}

func (s *doubleSelector) IsNull() bool    { return s.col.nulls[s.cursor.pos] }
func (s *doubleSelector) Long() int64     { return int64(s.col.values[s.cursor.pos]) }
func (s *doubleSelector) Double() float64 { return s.col.values[s.cursor.pos] }

// coercingNumericSelector parses string and complex values as numbers. Values
// that do not parse read as null.
type coercingNumericSelector struct {
	read func() any
}

func (s *coercingNumericSelector) value() (float64, bool) {
	switch v := s.read().(type) {
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

func (s *coercingNumericSelector) IsNull() bool {
	_, ok := s.value()
	return !ok
}

func (s *coercingNumericSelector) Long() int64 {
	f, _ := s.value()
	return int64(f)
}

func (s *coercingNumericSelector) Double() float64 {
	f, ok := s.value()
	if !ok {
		return math.NaN()
	}
	return f
}

type nullNumericSelector struct{}

func (nullNumericSelector) IsNull() bool    { return true }
func (nullNumericSelector) Long() int64     { return 0 }
func (nullNumericSelector) Double() float64 { return 0 }

type objectSelector struct {
	cursor *memCursor
	col    column
}

func (s *objectSelector) Object() any { return s.col.object(s.cursor.pos) }

type nullObjectSelector struct{}

func (nullObjectSelector) Object() any { return nil }

func idsToStrings(col *stringColumn, ids []int) []*string {
	out := make([]*string, 0, len(ids))
	for _, id := range ids {
		if v, ok := col.lookup(id); ok {
			out = append(out, &v)
			continue
		}
		out = append(out, nil)
	}
	return out
}

func objectToStrings(v any) []*string {
	switch val := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]*string, 0, len(val))
		for _, e := range val {
			if e == nil {
				out = append(out, nil)
				continue
			}
			s := stringify(e)
			out = append(out, &s)
		}
		return out
	default:
		s := stringify(val)
		return []*string{&s}
	}
}
