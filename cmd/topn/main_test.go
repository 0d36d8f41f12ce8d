package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	corecfg "github.com/aevon-lab/aevon-topn/internal/core/config"
	"github.com/aevon-lab/aevon-topn/internal/topn"
)

const testSegment = `
id: wiki
version: v1
columns:
  - {name: page, type: string}
  - {name: added, type: long}
rows:
  - {page: Main, added: 10}
  - {page: talk, added: 3}
  - {page: Talk, added: 4}
  - {page: Main, added: 5}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunQuery(t *testing.T) {
	dir := t.TempDir()
	segPath := writeFile(t, dir, "wiki.yaml", testSegment)

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name: "yaml query with extraction",
			query: `
dimension:
  column: page
  extraction: {type: lower}
metric: added
threshold: 5
aggregations:
  - {type: sum, name: added, field: added}
`,
			want: `{"segment":"wiki","version":"v1","algorithm":"dim_extraction","cached":false,
				"rows":[{"page":"main","added":15},{"page":"talk","added":7}]}`,
		},
		{
			name:  "json query",
			query: `{"dimension":{"column":"page"},"metric":"n","threshold":1,"aggregations":[{"type":"count","name":"n"}]}`,
			want: `{"segment":"wiki","version":"v1","algorithm":"indexed","cached":false,
				"rows":[{"page":"Main","n":2}]}`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			queryPath := writeFile(t, t.TempDir(), "query.yaml", tc.query)
			var out bytes.Buffer
			require.NoError(t, runQuery(context.Background(), segPath, queryPath, 1, &out))
			require.JSONEq(t, tc.want, out.String())
		})
	}
}

func TestRunQuery_Errors(t *testing.T) {
	dir := t.TempDir()
	segPath := writeFile(t, dir, "wiki.yaml", testSegment)
	badQuery := writeFile(t, dir, "bad.yaml", `{"dimension":{"column":"page"},"metric":"n","threshold":0,"aggregations":[{"type":"count","name":"n"}]}`)

	err := runQuery(context.Background(), segPath, badQuery, 0, &bytes.Buffer{})
	require.ErrorIs(t, err, topn.ErrInvalidQuery)

	err = runQuery(context.Background(), filepath.Join(dir, "missing.yaml"), badQuery, 0, &bytes.Buffer{})
	require.ErrorContains(t, err, "failed to read segment")
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     corecfg.LogConfig
		wantErr bool
	}{
		{name: "text info", cfg: corecfg.LogConfig{Level: "info", Format: "text"}},
		{name: "json debug", cfg: corecfg.LogConfig{Level: "DEBUG", Format: "json"}},
		{name: "bad level", cfg: corecfg.LogConfig{Level: "loud", Format: "text"}, wantErr: true},
		{name: "bad format", cfg: corecfg.LogConfig{Level: "info", Format: "xml"}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			logger, err := newLogger(tc.cfg)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
		})
	}
}
