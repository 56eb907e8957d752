package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/silverline-health/ordersync/internal/pdfget"
	"github.com/silverline-health/ordersync/internal/pipeline"
	"github.com/silverline-health/ordersync/internal/textextract"
	"github.com/silverline-health/ordersync/internal/workbook"
)

var (
	fieldsIn     string
	fieldsPDFDir string
	fieldsOut    string
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Extract structured order fields from downloaded PDFs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("fields"); err != nil {
			return err
		}

		refs, err := readDocRefs(fieldsIn)
		if err != nil {
			return err
		}

		// Re-discover PDFs from a previous acquire run.
		var acquired []pdfget.Acquired
		for _, ref := range refs {
			path := filepath.Join(fieldsPDFDir, ref.DocID+".pdf")
			if info, statErr := os.Stat(path); statErr == nil {
				acquired = append(acquired, pdfget.Acquired{
					DocID: ref.DocID, Path: path, Size: info.Size(),
				})
			}
		}

		inputs := pipeline.BuildInputs(ctx, textextract.New(cfg.TextExtract), newFieldExtractor(), refs, acquired)

		rows := make([]workbook.Row, 0, len(inputs))
		for _, in := range inputs {
			rows = append(rows, workbook.CombinedToRow(in.Doc, in.Fields, in.Quality))
		}
		if err := workbook.Write(fieldsOut, workbook.CombinedSchema, rows); err != nil {
			return err
		}

		zap.L().Info("fields complete",
			zap.Int("documents", len(refs)),
			zap.Int("with_pdf", len(acquired)),
			zap.String("out", fieldsOut))
		return nil
	},
}

func init() {
	fieldsCmd.Flags().StringVar(&fieldsIn, "in", "documents.xlsx", "document reference workbook")
	fieldsCmd.Flags().StringVar(&fieldsPDFDir, "pdf-dir", "pdfs", "directory holding <docid>.pdf files")
	fieldsCmd.Flags().StringVar(&fieldsOut, "out", "combined.xlsx", "output workbook path")
	rootCmd.AddCommand(fieldsCmd)
}
