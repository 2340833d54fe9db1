package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"funnel-mcp/internal/eventlog"
	"funnel-mcp/internal/funnel"
	"funnel-mcp/internal/mcp"

	"github.com/spf13/cobra"
)

var (
	runEventsPath string
	runQueryPath  string
)

// runCmd executes one funnel query offline: events from a JSONL file, query
// from a JSON file, result on stdout. Useful for smoke tests and batch use
// without an MCP client.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single funnel query against a JSONL event file",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(runQueryPath)
		if err != nil {
			return fmt.Errorf("failed to read query file: %w", err)
		}
		var req mcp.QueryRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return fmt.Errorf("failed to parse query file: %w", err)
		}

		const dataset = "local"
		if _, err := store.LoadFile(runEventsPath, dataset); err != nil {
			return err
		}

		q, err := mcp.BuildQuery(req, cfg.Workers, cfg.BreakdownLimit)
		if err != nil {
			return err
		}
		engine, err := funnel.New(q, nil)
		if err != nil {
			return err
		}

		from, to, err := req.DateRange()
		if err != nil {
			return err
		}

		src := eventlog.NewDatasetSource(store, dataset)
		res, err := engine.Run(context.Background(), src, from, to)
		if err != nil {
			return err
		}

		out, _ := json.MarshalIndent(map[string]interface{}{
			"runId":       res.RunID,
			"steps":       res.Steps,
			"diagnostics": res.Diagnostics,
		}, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runEventsPath, "events", "", "path to the JSONL event file (required)")
	runCmd.Flags().StringVar(&runQueryPath, "query", "", "path to the JSON query file (required)")
	_ = runCmd.MarkFlagRequired("events")
	_ = runCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(runCmd)
}
