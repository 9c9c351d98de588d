package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/finsight/reportminer/internal/model"
	"github.com/finsight/reportminer/internal/store"
)

var (
	reportsStatus string
	reportsLimit  int
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Inspect stored extraction reports",
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		reports, err := st.ListReports(ctx, store.Filter{
			Status: model.ReportStatus(reportsStatus),
			Limit:  reportsLimit,
		})
		if err != nil {
			return err
		}

		for _, r := range reports {
			cmd.Printf("%s  %-10s  %s  %s\n", r.ID, r.Status, r.CreatedAt.Format("2006-01-02 15:04:05"), r.FileName)
		}
		cmd.Printf("%d report(s)\n", len(reports))
		return nil
	},
}

var reportsGetCmd = &cobra.Command{
	Use:   "get <report-id>",
	Short: "Print one report as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		report, err := st.GetReport(ctx, args[0])
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	},
}

func init() {
	reportsListCmd.Flags().StringVar(&reportsStatus, "status", "", "filter by status (PENDING, PROCESSING, COMPLETED, FAILED)")
	reportsListCmd.Flags().IntVar(&reportsLimit, "limit", 20, "max reports to list")
	reportsCmd.AddCommand(reportsListCmd)
	reportsCmd.AddCommand(reportsGetCmd)
	rootCmd.AddCommand(reportsCmd)
}
