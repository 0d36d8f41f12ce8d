package segment

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
)

// Segment is an immutable, column-oriented partition of rows held in memory.
type Segment struct {
	id      string
	version string
	numRows int
	specs   []ColumnSpec
	columns map[string]column
}

func (s *Segment) ID() string            { return s.id }
func (s *Segment) Version() string       { return s.version }
func (s *Segment) NumRows() int          { return s.numRows }
func (s *Segment) Columns() []ColumnSpec { return append([]ColumnSpec(nil), s.specs...) }
func (s *Segment) MakeCursor() Cursor    { return &memCursor{seg: s} }
func (s *Segment) WithVersion(v string) *Segment {
	cp := *s
	cp.version = v
	return &cp
}

type column interface {
	capabilities() ColumnCapabilities
	object(row int) any
}

// stringColumn is dictionary encoded. The dictionary is sorted; when the
// column holds nulls, id 0 is reserved for null.
type stringColumn struct {
	dict         []string
	hasNull      bool
	rows         [][]int
	multi        bool
	hideCardinal bool
}

func (c *stringColumn) capabilities() ColumnCapabilities {
	card := len(c.dict)
	if c.hasNull {
		card++
	}
	if c.hideCardinal {
		card = CardinalityUnknown
	}
	return ColumnCapabilities{Type: TypeString, Cardinality: card, MultiValue: c.multi}
}

func (c *stringColumn) lookup(id int) (string, bool) {
	if c.hasNull {
		if id == 0 {
			return "", false
		}
		id--
	}
	if id < 0 || id >= len(c.dict) {
		return "", false
	}
	return c.dict[id], true
}

func (c *stringColumn) object(row int) any {
	ids := c.rows[row]
	if !c.multi {
		if len(ids) == 0 {
			return nil
		}
		if v, ok := c.lookup(ids[0]); ok {
			return v
		}
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if v, ok := c.lookup(id); ok {
			out = append(out, v)
		}
	}
	return out
}

type longColumn struct {
	values []int64
	nulls  []bool
}

func (c *longColumn) capabilities() ColumnCapabilities {
	return ColumnCapabilities{Type: TypeLong, Cardinality: CardinalityUnknown}
}

func (c *longColumn) object(row int) any {
	if c.nulls[row] {
		return nil
	}
	return c.values[row]
}

type doubleColumn struct {
	values []float64
	nulls  []bool
}

func (c *doubleColumn) capabilities() ColumnCapabilities {
	return ColumnCapabilities{Type: TypeDouble, Cardinality: CardinalityUnknown}
}

func (c *doubleColumn) object(row int) any {
	if c.nulls[row] {
		return nil
	}
	return c.values[row]
}

type complexColumn struct {
	values []any
}

func (c *complexColumn) capabilities() ColumnCapabilities {
	return ColumnCapabilities{Type: TypeComplex, Cardinality: CardinalityUnknown}
}

func (c *complexColumn) object(row int) any { return c.values[row] }

// Builder accumulates rows and produces a Segment.
type Builder struct {
	id      string
	version string
	specs   []ColumnSpec
	types   map[string]ValueType
	raw     map[string][]any
	numRows int
}

// NewBuilder validates the column specs and returns an empty builder.
func NewBuilder(id string, specs []ColumnSpec) (*Builder, error) {
	if id == "" {
		return nil, fmt.Errorf("segment id must not be empty")
	}
	b := &Builder{
		id:    id,
		specs: specs,
		types: make(map[string]ValueType, len(specs)),
		raw:   make(map[string][]any, len(specs)),
	}
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("segment %q: column name must not be empty", id)
		}
		if _, dup := b.types[spec.Name]; dup {
			return nil, fmt.Errorf("segment %q: duplicate column %q", id, spec.Name)
		}
		vt, err := ParseValueType(spec.Type)
		if err != nil {
			return nil, fmt.Errorf("segment %q column %q: %w", id, spec.Name, err)
		}
		if spec.MultiValue && vt != TypeString {
			return nil, fmt.Errorf("segment %q column %q: only string columns can be multi-valued", id, spec.Name)
		}
		b.types[spec.Name] = vt
	}
	return b, nil
}

// SetVersion sets the version string reported by the built segment.
func (b *Builder) SetVersion(v string) *Builder {
	b.version = v
	return b
}

// AddRow appends one row. Columns missing from row are null.
func (b *Builder) AddRow(row map[string]any) error {
	for name := range row {
		if _, ok := b.types[name]; !ok {
			return fmt.Errorf("segment %q row %d: unknown column %q", b.id, b.numRows, name)
		}
	}
	values := make([]any, len(b.specs))
	for i, spec := range b.specs {
		v, err := coerce(b.types[spec.Name], spec.MultiValue, row[spec.Name])
		if err != nil {
			return fmt.Errorf("segment %q row %d column %q: %w", b.id, b.numRows, spec.Name, err)
		}
		values[i] = v
	}
	for i, spec := range b.specs {
		b.raw[spec.Name] = append(b.raw[spec.Name], values[i])
	}
	b.numRows++
	return nil
}

// Build freezes the accumulated rows into a Segment.
func (b *Builder) Build() *Segment {
	seg := &Segment{
		id:      b.id,
		version: b.version,
		numRows: b.numRows,
		specs:   append([]ColumnSpec(nil), b.specs...),
		columns: make(map[string]column, len(b.specs)),
	}
	for _, spec := range b.specs {
		values := b.raw[spec.Name]
		switch b.types[spec.Name] {
		case TypeString:
			seg.columns[spec.Name] = buildStringColumn(values, spec)
		case TypeLong:
			c := &longColumn{values: make([]int64, len(values)), nulls: make([]bool, len(values))}
			for i, v := range values {
				if v == nil {
					c.nulls[i] = true
					continue
				}
				c.values[i] = v.(int64)
			}
			seg.columns[spec.Name] = c
		case TypeDouble:
			c := &doubleColumn{values: make([]float64, len(values)), nulls: make([]bool, len(values))}
			for i, v := range values {
				if v == nil {
					c.nulls[i] = true
					continue
				}
				c.values[i] = v.(float64)
			}
			seg.columns[spec.Name] = c
		case TypeComplex:
			seg.columns[spec.Name] = &complexColumn{values: values}
		}
	}
	return seg
}

func buildStringColumn(values []any, spec ColumnSpec) *stringColumn {
	c := &stringColumn{multi: spec.MultiValue, hideCardinal: spec.UnknownCardinality}

	distinct := make(map[string]struct{})
	for _, v := range values {
		for _, s := range v.([]*string) {
			if s == nil {
				c.hasNull = true
				continue
			}
			distinct[*s] = struct{}{}
		}
		if len(v.([]*string)) == 0 {
			c.hasNull = true
		}
	}
	c.dict = make([]string, 0, len(distinct))
	for s := range distinct {
		c.dict = append(c.dict, s)
	}
	sort.Strings(c.dict)

	offset := 0
	if c.hasNull {
		offset = 1
	}
	ids := make(map[string]int, len(c.dict))
	for i, s := range c.dict {
		ids[s] = i + offset
	}

	c.rows = make([][]int, len(values))
	for i, v := range values {
		strs := v.([]*string)
		if len(strs) == 0 {
			// id 0 is null whenever any row is empty
			c.rows[i] = []int{0}
			continue
		}
		row := make([]int, len(strs))
		for j, s := range strs {
			if s == nil {
				row[j] = 0
				continue
			}
			row[j] = ids[*s]
		}
		c.rows[i] = row
	}
	return c
}

// coerce converts a decoded value into the column's storage form:
// []*string for string columns, int64/float64 (or nil) for numeric columns.
func coerce(vt ValueType, multi bool, v any) (any, error) {
	switch vt {
	case TypeString:
		return coerceStrings(multi, v)
	case TypeLong:
		d, ok, err := toDecimal(v)
		if err != nil || !ok {
			return nil, err
		}
		return d.IntPart(), nil
	case TypeDouble:
		d, ok, err := toDecimal(v)
		if err != nil || !ok {
			if f, isFloat := v.(float64); isFloat && (math.IsNaN(f) || math.IsInf(f, 0)) {
				return f, nil
			}
			return nil, err
		}
		f, _ := d.Float64()
		return f, nil
	default:
		return v, nil
	}
}

func coerceStrings(multi bool, v any) ([]*string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []any:
		if !multi {
			return nil, fmt.Errorf("list value for single-valued column")
		}
		out := make([]*string, 0, len(val))
		for _, e := range val {
			if e == nil {
				out = append(out, nil)
				continue
			}
			s := stringify(e)
			out = append(out, &s)
		}
		return out, nil
	case []string:
		if !multi {
			return nil, fmt.Errorf("list value for single-valued column")
		}
		out := make([]*string, len(val))
		for i := range val {
			s := val[i]
			out[i] = &s
		}
		return out, nil
	default:
		s := stringify(val)
		return []*string{&s}, nil
	}
}

func toDecimal(v any) (decimal.Decimal, bool, error) {
	switch val := v.(type) {
	case nil:
		return decimal.Zero, false, nil
	case int:
		return decimal.NewFromInt(int64(val)), true, nil
	case int32:
		return decimal.NewFromInt(int64(val)), true, nil
	case int64:
		return decimal.NewFromInt(val), true, nil
	case uint64:
		return decimal.NewFromUint64(val), true, nil
	case float32:
		return decimal.NewFromFloat32(val), true, nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return decimal.Zero, false, fmt.Errorf("non-finite number %v", val)
		}
		return decimal.NewFromFloat(val), true, nil
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Zero, false, fmt.Errorf("invalid number %q", val)
		}
		return d, true, nil
	case string:
		if val == "" {
			return decimal.Zero, false, nil
		}
		d, err := decimal.NewFromString(val)
		if err != nil {
			return decimal.Zero, false, fmt.Errorf("invalid number %q", val)
		}
		return d, true, nil
	default:
		return decimal.Zero, false, fmt.Errorf("unsupported numeric value of type %T", v)
	}
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
