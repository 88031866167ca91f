package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var uploadsLimit int

var uploadsCmd = &cobra.Command{
	Use:   "uploads",
	Short: "List registered upload batches",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		uploads, err := env.Store.ListUploads(ctx, uploadsLimit)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(uploads)
	},
}

func init() {
	uploadsCmd.Flags().IntVar(&uploadsLimit, "limit", 50, "maximum uploads to list")
	rootCmd.AddCommand(uploadsCmd)
}
