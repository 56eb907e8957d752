package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/silverline-health/ordersync/internal/model"
	"github.com/silverline-health/ordersync/internal/pdfget"
	"github.com/silverline-health/ordersync/internal/workbook"
)

var (
	acquireIn  string
	acquireDir string
)

var acquireCmd = &cobra.Command{
	Use:   "acquire",
	Short: "Download PDFs for previously extracted document references",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("acquire"); err != nil {
			return err
		}

		refs, err := readDocRefs(acquireIn)
		if err != nil {
			return err
		}

		acquirer := pdfget.New(newPortalAPI(), acquireDir, cfg.Download)
		acquired, err := acquirer.AcquireAll(ctx, refs)
		if err != nil {
			return eris.Wrap(err, "acquire")
		}

		zap.L().Info("acquire complete",
			zap.Int("requested", len(refs)),
			zap.Int("acquired", len(acquired)),
			zap.String("dir", acquireDir))
		return nil
	},
}

func readDocRefs(path string) ([]model.DocumentRef, error) {
	rows, err := workbook.Read(path, workbook.DocumentNPISchema)
	if err != nil {
		return nil, err
	}
	refs := make([]model.DocumentRef, 0, len(rows))
	for _, r := range rows {
		refs = append(refs, workbook.RowToDocRef(r))
	}
	return refs, nil
}

func init() {
	acquireCmd.Flags().StringVar(&acquireIn, "in", "documents.xlsx", "document reference workbook")
	acquireCmd.Flags().StringVar(&acquireDir, "dir", "pdfs", "download directory")
	rootCmd.AddCommand(acquireCmd)
}
