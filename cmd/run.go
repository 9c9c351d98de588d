package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/finsight/reportminer/internal/ingest"
	"github.com/finsight/reportminer/internal/jobs"
)

var runOutputPath string

var runCmd = &cobra.Command{
	Use:   "run <parsed-document.json>",
	Short: "Run the extraction pipeline once on a parsed document file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		doc, err := ingest.LoadDocument(args[0])
		if err != nil {
			return err
		}

		records, err := env.Pipeline.Run(ctx, doc)
		if err != nil {
			return err
		}

		out := map[string]any{
			"file_name": doc.FileName,
			"metrics":   records,
			"keywords":  jobs.BuildKeywords(records),
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal result")
		}

		if runOutputPath != "" {
			if err := os.WriteFile(runOutputPath, data, 0o644); err != nil {
				return eris.Wrapf(err, "write %s", runOutputPath)
			}
			zap.L().Info("result written", zap.String("path", runOutputPath), zap.Int("metrics", len(records)))
			return nil
		}

		cmd.Println(string(data))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runOutputPath, "output", "o", "", "write result JSON to file instead of stdout")
	rootCmd.AddCommand(runCmd)
}
