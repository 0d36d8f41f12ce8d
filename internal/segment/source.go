package segment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrSegmentNotFound is returned by a Source asked for an unknown segment id.
var ErrSegmentNotFound = errors.New("segment not found")

// Descriptor identifies one version of a segment held by a Source.
type Descriptor struct {
	ID      string
	Version string
}

// Source lists and loads segments.
type Source interface {
	// List returns the descriptors of every segment currently available.
	List(ctx context.Context) ([]Descriptor, error)

	// Load builds the named segment. Returns ErrSegmentNotFound if unknown.
	Load(ctx context.Context, id string) (*Segment, error)
}

// FileSystemSource serves segments from *.yaml files in a directory, one
// segment per file.
type FileSystemSource struct {
	dir string

	mu    sync.Mutex
	paths map[string]string // segment id -> file path
}

// NewFileSystemSource creates a source rooted at dir.
func NewFileSystemSource(dir string) *FileSystemSource {
	return &FileSystemSource{dir: dir, paths: make(map[string]string)}
}

// List scans the directory. A missing directory yields no segments.
func (s *FileSystemSource) List(ctx context.Context) ([]Descriptor, error) {
	info, err := os.Stat(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("segment dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("segment path %q is not a directory", s.dir)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading segment dir: %w", err)
	}

	paths := make(map[string]string)
	var out []Descriptor
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading segment file %s: %w", path, err)
		}

		var header struct {
			ID      string `yaml:"id"`
			Version string `yaml:"version"`
		}
		if err := yaml.Unmarshal(data, &header); err != nil {
			return nil, fmt.Errorf("parsing segment file %s: %w", path, err)
		}
		if header.ID == "" {
			slog.Warn("[Segments] Skipping file without segment id", "path", path)
			continue
		}
		if prev, dup := paths[header.ID]; dup {
			return nil, fmt.Errorf("segment %q: defined in both %s and %s", header.ID, prev, path)
		}
		if header.Version == "" {
			header.Version = Fingerprint(data)
		}
		paths[header.ID] = path
		out = append(out, Descriptor{ID: header.ID, Version: header.Version})
	}

	s.mu.Lock()
	s.paths = paths
	s.mu.Unlock()
	return out, nil
}

// Load reads and builds the segment with the given id.
func (s *FileSystemSource) Load(ctx context.Context, id string) (*Segment, error) {
	s.mu.Lock()
	path, ok := s.paths[id]
	s.mu.Unlock()
	if !ok {
		if _, err := s.List(ctx); err != nil {
			return nil, err
		}
		s.mu.Lock()
		path, ok = s.paths[id]
		s.mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrSegmentNotFound, id)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading segment file %s: %w", path, err)
	}
	seg, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("segment file %s: %w", path, err)
	}
	return seg, nil
}
