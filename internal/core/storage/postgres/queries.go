package postgres

// SQL queries for segment storage

const (
	// queryListSegments returns one descriptor per stored segment.
	queryListSegments = `
		SELECT id, version
		FROM segments
		ORDER BY id ASC
	`

	// queryLoadSegment fetches the header of one segment.
	// columns is a jsonb array of segment.ColumnSpec.
	queryLoadSegment = `
		SELECT id, version, columns
		FROM segments
		WHERE id = $1
	`

	// queryLoadSegmentRows fetches the rows of one segment in insertion order.
	// data is a jsonb object keyed by column name.
	queryLoadSegmentRows = `
		SELECT data
		FROM segment_rows
		WHERE segment_id = $1
		ORDER BY row_num ASC
	`
)
