package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/silverline-health/ordersync/internal/mailer"
	"github.com/silverline-health/ordersync/internal/model"
)

// Orchestrator runs the pipeline for a batch of companies and delivers the
// summary email afterwards.
type Orchestrator struct {
	pipeline *Pipeline
	mailer   *mailer.Mailer
}

// NewOrchestrator wraps a Pipeline for batch execution.
func NewOrchestrator(p *Pipeline, m *mailer.Mailer) *Orchestrator {
	return &Orchestrator{pipeline: p, mailer: m}
}

// RunAll processes companies sequentially. One company failing does not stop
// the batch; it is reported in the summary instead. The returned error names
// the failed companies, if any, after the summary has been sent.
func (o *Orchestrator) RunAll(ctx context.Context, companies []model.CompanyConfig) error {
	summaries := make([]mailer.CompanySummary, 0, len(companies))
	var failed []string

	for _, company := range companies {
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "orchestrator: batch interrupted")
		}

		res, err := o.pipeline.Run(ctx, company)
		if err != nil {
			failed = append(failed, company.Key)
			zap.L().Error("orchestrator: company run failed",
				zap.String("company", company.Key), zap.Error(err))
		}
		if res == nil {
			res = &Result{Status: model.RunStatusFailed, SkipReason: err.Error()}
		}

		summaries = append(summaries, mailer.CompanySummary{
			CompanyName: companyDisplayName(company),
			Status:      res.Status,
			Documents:   res.Documents,
			Uploaded:    res.Uploaded,
			Failed:      res.Failed,
			SkipReason:  res.SkipReason,
			ReportPath:  res.ReportPath,
		})
	}

	if err := o.mailer.SendRunSummary(summaries); err != nil {
		zap.L().Error("orchestrator: summary email failed", zap.Error(err))
	}

	if len(failed) > 0 {
		return eris.Errorf("orchestrator: %d of %d companies failed: %v",
			len(failed), len(companies), failed)
	}
	return nil
}

func companyDisplayName(c model.CompanyConfig) string {
	if c.Name != "" {
		return c.Name
	}
	return c.Key
}
