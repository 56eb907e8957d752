package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/silverline-health/ordersync/internal/mailer"
	"github.com/silverline-health/ordersync/internal/model"
	"github.com/silverline-health/ordersync/internal/pipeline"
)

var runCompany string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline for a single company",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("run"); err != nil {
			return err
		}
		company, err := companyByKey(runCompany)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p := newPipeline(ctx, st)
		stopOnSignal(ctx, p)

		result, err := p.Run(ctx, company)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("run complete",
			zap.String("company", company.Key),
			zap.String("status", string(result.Status)),
			zap.Int("documents", result.Documents),
			zap.Int("uploaded", result.Uploaded),
			zap.Int("failed", result.Failed))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run the full pipeline for every configured company",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("batch"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p := newPipeline(ctx, st)
		stopOnSignal(ctx, p)

		orch := pipeline.NewOrchestrator(p, mailer.New(cfg.SMTP))
		companies := append([]model.CompanyConfig(nil), cfg.Companies...)
		return orch.RunAll(ctx, companies)
	},
}

func init() {
	runCmd.Flags().StringVar(&runCompany, "company", "", "company key from config (required)")
	_ = runCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(batchCmd)
}
