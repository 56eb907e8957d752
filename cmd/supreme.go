package main

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/silverline-health/ordersync/internal/supreme"
	"github.com/silverline-health/ordersync/internal/workbook"
)

var (
	supremeCompany string
	supremeIn      string
	supremePDFDir  string
	supremeOut     string
)

var supremeCmd = &cobra.Command{
	Use:   "supreme",
	Short: "Reconcile extracted fields with portal metadata and platform patients",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("supreme"); err != nil {
			return err
		}
		company, err := companyByKey(supremeCompany)
		if err != nil {
			return err
		}

		rows, err := workbook.Read(supremeIn, workbook.CombinedSchema)
		if err != nil {
			return err
		}
		inputs := make([]supreme.Input, 0, len(rows))
		for _, r := range rows {
			doc, fields, quality := workbook.RowToCombined(r)
			in := supreme.Input{Doc: doc, Fields: fields, Quality: quality}
			path := filepath.Join(supremePDFDir, doc.DocID+".pdf")
			if _, statErr := os.Stat(path); statErr == nil {
				in.PDFPath = path
			}
			inputs = append(inputs, in)
		}

		fields := newFieldExtractor()
		builder := supreme.New(newPortalAPI(), newPlatform(), fields, cfg.Download.Concurrency)
		records, err := builder.Build(ctx, company, inputs)
		if err != nil {
			return eris.Wrap(err, "supreme")
		}

		outRows := make([]workbook.Row, 0, len(records))
		for _, rec := range records {
			outRows = append(outRows, workbook.SupremeToRow(rec))
		}
		if err := workbook.Write(supremeOut, workbook.SupremeSchema, outRows); err != nil {
			return err
		}

		zap.L().Info("supreme complete",
			zap.String("company", company.Key),
			zap.Int("records", len(records)),
			zap.String("out", supremeOut))
		return nil
	},
}

func init() {
	supremeCmd.Flags().StringVar(&supremeCompany, "company", "", "company key from config (required)")
	supremeCmd.Flags().StringVar(&supremeIn, "in", "combined.xlsx", "combined fields workbook")
	supremeCmd.Flags().StringVar(&supremePDFDir, "pdf-dir", "pdfs", "directory holding <docid>.pdf files")
	supremeCmd.Flags().StringVar(&supremeOut, "out", "supreme.xlsx", "output workbook path")
	_ = supremeCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(supremeCmd)
}
