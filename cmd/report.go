package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/silverline-health/ordersync/internal/model"
	"github.com/silverline-health/ordersync/internal/workbook"
)

var (
	reportCompany string
	reportIn      string
	reportOut     string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write the two-sheet processing report from upload outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("report"); err != nil {
			return err
		}
		company, err := companyByKey(reportCompany)
		if err != nil {
			return err
		}

		rows, err := workbook.Read(reportIn, workbook.UploadsSchema)
		if err != nil {
			return err
		}
		records := make([]model.SupremeRecord, 0, len(rows))
		outcomes := make([]model.UploadOutcome, 0, len(rows))
		for _, r := range rows {
			records = append(records, workbook.RowToSupreme(r))
			outcomes = append(outcomes, workbook.RowToOutcome(r))
		}

		summary, err := newReporter(ctx).Write(ctx, reportOut, company, records, outcomes)
		if err != nil {
			return eris.Wrap(err, "report")
		}

		zap.L().Info("report complete",
			zap.String("company", company.Key),
			zap.Int("successful", summary.Successful),
			zap.Int("failed", summary.Failed),
			zap.String("out", summary.ReportPath))
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportCompany, "company", "", "company key from config (required)")
	reportCmd.Flags().StringVar(&reportIn, "in", "uploads.xlsx", "upload outcome workbook")
	reportCmd.Flags().StringVar(&reportOut, "out", "report.xlsx", "output report path")
	_ = reportCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(reportCmd)
}
