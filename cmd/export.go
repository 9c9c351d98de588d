package main

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/finsight/reportminer/internal/model"
)

var exportOutputPath string

var exportCmd = &cobra.Command{
	Use:   "export <report-id>",
	Short: "Export a completed report's metrics to an xlsx workbook",
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
		if report.Status != model.StatusCompleted {
			return eris.Errorf("report %s is %s, only COMPLETED reports can be exported", report.ID, report.Status)
		}

		out := exportOutputPath
		if out == "" {
			out = report.ID + ".xlsx"
		}
		if err := writeWorkbook(out, report); err != nil {
			return err
		}

		zap.L().Info("report exported",
			zap.String("report", report.ID),
			zap.String("path", out),
			zap.Int("metrics", len(report.Result)),
		)
		return nil
	},
}

var exportHeader = []string{
	"company", "metric_name", "value", "value_lastyear", "value_before2year",
	"YoY", "YoY_D", "unit", "year", "type", "confidence", "support", "page", "paragraph",
}

func writeWorkbook(path string, report *model.Report) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("metrics")
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range exportHeader {
		header.AddCell().Value = h
	}

	for _, rec := range report.Result {
		row := sheet.AddRow()
		for _, v := range []string{
			rec.Company, rec.MetricName, rec.Value, rec.ValueLastYear, rec.ValueBefore2Year,
			rec.YoY, rec.YoYD, rec.Unit, rec.Year, rec.Type,
			strconv.Itoa(rec.Confidence), strconv.Itoa(len(rec.Support)),
			strconv.Itoa(rec.PageID), strconv.Itoa(rec.ParaID),
		} {
			row.AddCell().Value = v
		}
	}

	return eris.Wrapf(f.Save(path), "xlsx: save %s", path)
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutputPath, "output", "o", "", "output path (default <report-id>.xlsx)")
	rootCmd.AddCommand(exportCmd)
}
