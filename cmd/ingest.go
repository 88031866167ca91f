package main

import (
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cdr-insight/internal/pipeline"
)

var ingestLabel string

var ingestCmd = &cobra.Command{
	Use:   "ingest <file> [file...]",
	Short: "Ingest CDR files as one upload batch",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		files := make([]pipeline.File, 0, len(args))
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return eris.Wrapf(err, "read %s", path)
			}
			files = append(files, pipeline.File{Name: path, Data: data})
		}

		uploadID := uuid.New().String()
		summary, err := env.Pipeline.Run(ctx, uploadID, ingestLabel, files)
		if err != nil {
			zap.L().Error("ingestion finished with errors", zap.Error(err))
		}
		if summary == nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestLabel, "label", "", "human-readable label for this upload")
	rootCmd.AddCommand(ingestCmd)
}
