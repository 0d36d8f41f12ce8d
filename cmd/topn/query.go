package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	v1 "github.com/aevon-lab/aevon-topn/internal/api/v1"
	"github.com/aevon-lab/aevon-topn/internal/segment"
	"github.com/aevon-lab/aevon-topn/internal/topn"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run one top-N query against a segment file and print the result as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		segmentPath, _ := cmd.Flags().GetString("segment")
		queryPath, _ := cmd.Flags().GetString("query")
		valuesPerPass, _ := cmd.Flags().GetInt("values-per-pass")
		return runQuery(cmd.Context(), segmentPath, queryPath, valuesPerPass, cmd.OutOrStdout())
	},
}

func init() {
	queryCmd.Flags().String("segment", "", "Path to a segment YAML file")
	queryCmd.Flags().String("query", "", "Path to a query YAML or JSON file")
	queryCmd.Flags().Int("values-per-pass", 0, "Dictionary ids aggregated per pass by the indexed algorithm (0 = one pass)")
	_ = queryCmd.MarkFlagRequired("segment")
	_ = queryCmd.MarkFlagRequired("query")
}

func runQuery(ctx context.Context, segmentPath, queryPath string, valuesPerPass int, out io.Writer) error {
	segData, err := os.ReadFile(segmentPath)
	if err != nil {
		return fmt.Errorf("failed to read segment: %w", err)
	}
	seg, err := segment.Decode(segData)
	if err != nil {
		return fmt.Errorf("segment %s: %w", segmentPath, err)
	}

	queryData, err := os.ReadFile(queryPath)
	if err != nil {
		return fmt.Errorf("failed to read query: %w", err)
	}
	// JSON is a subset of YAML, so one decoder covers both.
	var q topn.Query
	if err := yaml.Unmarshal(queryData, &q); err != nil {
		return fmt.Errorf("failed to parse query %s: %w", queryPath, err)
	}
	plan, err := topn.NewPlan(q)
	if err != nil {
		return err
	}

	engine := topn.NewEngine(topn.Options{ValuesPerPass: valuesPerPass})
	res, err := engine.RunSegment(ctx, plan, seg)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v1.NewSegmentResult(res, false))
}
