package segment

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"
)

// File is the on-disk YAML shape of one segment.
type File struct {
	ID      string           `yaml:"id"`
	Version string           `yaml:"version"`
	Columns []ColumnSpec     `yaml:"columns"`
	Rows    []map[string]any `yaml:"rows"`
}

// Fingerprint returns a stable content hash used as a segment version when the
// file does not declare one.
func Fingerprint(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}

// Decode parses a YAML segment file and builds the segment.
func Decode(data []byte) (*Segment, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing segment: %w", err)
	}
	if f.Version == "" {
		f.Version = Fingerprint(data)
	}
	return f.Build()
}

// Build turns a decoded File into a Segment.
func (f *File) Build() (*Segment, error) {
	b, err := NewBuilder(f.ID, f.Columns)
	if err != nil {
		return nil, err
	}
	b.SetVersion(f.Version)
	for _, row := range f.Rows {
		if err := b.AddRow(row); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}
