package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/silverline-health/ordersync/internal/model"
	"github.com/silverline-health/ordersync/internal/pipeline"
	"github.com/silverline-health/ordersync/internal/upload"
	"github.com/silverline-health/ordersync/internal/workbook"
)

var (
	uploadCompany string
	uploadIn      string
	uploadOut     string
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Push supreme records to the platform",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("upload"); err != nil {
			return err
		}
		company, err := companyByKey(uploadCompany)
		if err != nil {
			return err
		}

		rows, err := workbook.Read(uploadIn, workbook.SupremeSchema)
		if err != nil {
			return err
		}
		records := make([]model.SupremeRecord, 0, len(rows))
		for _, r := range rows {
			records = append(records, workbook.RowToSupreme(r))
		}

		pf := newPlatform()
		uploader := upload.New(pf, upload.NewCompanyResolver(pf, cfg.Upload.CompanyCSVPath), cfg.Upload)
		outcomes := pipeline.UploadRecords(ctx, pf, uploader, company, records)

		outRows := make([]workbook.Row, 0, len(records))
		uploaded := 0
		for i, rec := range records {
			outRows = append(outRows, workbook.OutcomeToRow(rec, outcomes[i]))
			if outcomes[i].Successful() {
				uploaded++
			}
		}
		if err := workbook.Write(uploadOut, workbook.UploadsSchema, outRows); err != nil {
			return err
		}

		zap.L().Info("upload complete",
			zap.String("company", company.Key),
			zap.Int("records", len(records)),
			zap.Int("uploaded", uploaded),
			zap.Int("failed", len(records)-uploaded),
			zap.String("out", uploadOut))
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVar(&uploadCompany, "company", "", "company key from config (required)")
	uploadCmd.Flags().StringVar(&uploadIn, "in", "supreme.xlsx", "supreme record workbook")
	uploadCmd.Flags().StringVar(&uploadOut, "out", "uploads.xlsx", "output workbook path")
	_ = uploadCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(uploadCmd)
}
