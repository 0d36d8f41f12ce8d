package segment

// DimensionSelector reads the dictionary ids of the current row of a
// string-valued column.
//
// When Cardinality reports CardinalityUnknown the ids are only meaningful for
// the current row: LookupName must be called before the cursor advances and
// ids must not be cached across rows.
type DimensionSelector interface {
	Row() []int
	LookupName(id int) (string, bool) // false for null
	Cardinality() int
}

// NumericSelector reads the current row of a numeric column.
type NumericSelector interface {
	IsNull() bool
	Long() int64
	Double() float64
}

// ObjectSelector reads the current row of any column as a Go value.
type ObjectSelector interface {
	Object() any
}

// ColumnSelectorFactory hands out selectors bound to one cursor.
// Selectors for missing columns read null on every row.
type ColumnSelectorFactory interface {
	Capabilities(column string) (ColumnCapabilities, bool)
	MakeDimensionSelector(column string) DimensionSelector
	MakeNumericSelector(column string) NumericSelector
	MakeObjectSelector(column string) ObjectSelector
}

// Cursor is a sequential iterator over the rows of one segment.
type Cursor interface {
	ColumnSelectorFactory() ColumnSelectorFactory
	Advance() error
	IsDone() bool
	Reset() error
}
