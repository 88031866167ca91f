package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/cdr-insight/internal/graph"
	"github.com/sells-group/cdr-insight/internal/model"
	"github.com/sells-group/cdr-insight/internal/store"
)

var (
	analyzeFrom      string
	analyzeTo        string
	analyzeType      string
	analyzeDirection string
	analyzeMinWeight float64
	analyzeNodeLimit int
	analyzeEdgeLimit int
	analyzeSummary   bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <upload-id>",
	Short: "Build and analyze the communication graph for an upload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		filter, err := eventFilter(args[0], analyzeFrom, analyzeTo, analyzeType, analyzeDirection, analyzeMinWeight)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if analyzeSummary {
			summary, err := env.Store.EventSummary(ctx, filter)
			if err != nil {
				return err
			}
			return enc.Encode(summary)
		}

		nodes, err := env.Store.NodeAggregates(ctx, filter)
		if err != nil {
			return err
		}
		edges, err := env.Store.EdgeAggregates(ctx, filter)
		if err != nil {
			return err
		}

		result := graph.Analyze(nodes, edges, graph.Params{
			MinEdgeWeight: analyzeMinWeight,
			NodeLimit:     analyzeNodeLimit,
			EdgeLimit:     analyzeEdgeLimit,
			Resolution:    cfg.Graph.Resolution,
			MaxNodes:      cfg.Graph.MaxNodes,
		})
		return enc.Encode(result)
	},
}

// eventFilter builds the store filter shared by the CLI and the HTTP API.
// Dates are whole local days: --to is inclusive through end of day.
func eventFilter(uploadID, from, to, eventType, direction string, minWeight float64) (store.EventFilter, error) {
	filter := store.EventFilter{
		UploadID:  uploadID,
		EventType: model.EventType(eventType),
		Direction: model.Direction(direction),
		MinWeight: minWeight,
	}
	if from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return filter, eris.Wrap(err, "parse from date")
		}
		filter.From = &t
	}
	if to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return filter, eris.Wrap(err, "parse to date")
		}
		end := t.Add(24*time.Hour - time.Second)
		filter.To = &end
	}
	return filter, nil
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFrom, "from", "", "start date (YYYY-MM-DD, inclusive)")
	analyzeCmd.Flags().StringVar(&analyzeTo, "to", "", "end date (YYYY-MM-DD, inclusive)")
	analyzeCmd.Flags().StringVar(&analyzeType, "type", "", "filter by event type (call|sms|data)")
	analyzeCmd.Flags().StringVar(&analyzeDirection, "direction", "", "filter by direction (outgoing|incoming|internal)")
	analyzeCmd.Flags().Float64Var(&analyzeMinWeight, "min-weight", 0, "minimum edge weight (event count)")
	analyzeCmd.Flags().IntVar(&analyzeNodeLimit, "node-limit", 0, "trim to top-n nodes by weighted degree")
	analyzeCmd.Flags().IntVar(&analyzeEdgeLimit, "edge-limit", 0, "cap edges in the response")
	analyzeCmd.Flags().BoolVar(&analyzeSummary, "summary", false, "print event summary instead of the graph")
	rootCmd.AddCommand(analyzeCmd)
}
