package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/silverline-health/ordersync/internal/portal"
	"github.com/silverline-health/ordersync/internal/workbook"
)

var (
	extractCompany string
	extractOut     string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Scrape the portal for one company's document references",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("extract"); err != nil {
			return err
		}
		company, err := companyByKey(extractCompany)
		if err != nil {
			return err
		}

		extractor := portal.New(cfg.Portal)
		go func() {
			<-ctx.Done()
			extractor.Stop()
		}()

		refs, err := extractor.Extract(ctx, company)
		if err != nil {
			return eris.Wrap(err, "extract")
		}

		rows := make([]workbook.Row, 0, len(refs))
		for _, ref := range refs {
			rows = append(rows, workbook.DocRefToRow(ref))
		}
		if err := workbook.Write(extractOut, workbook.DocumentNPISchema, rows); err != nil {
			return err
		}

		zap.L().Info("extract complete",
			zap.String("company", company.Key),
			zap.Int("documents", len(refs)),
			zap.String("out", extractOut))
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractCompany, "company", "", "company key from config (required)")
	extractCmd.Flags().StringVar(&extractOut, "out", "documents.xlsx", "output workbook path")
	_ = extractCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(extractCmd)
}
