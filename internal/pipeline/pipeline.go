// Package pipeline orchestrates the per-company ingestion run: portal
// extraction, PDF acquisition, field extraction, supreme-record assembly,
// upload, and reporting. Every stage writes its artifact workbook so a run
// can be resumed or audited stage by stage.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/silverline-health/ordersync/internal/config"
	"github.com/silverline-health/ordersync/internal/fieldextract"
	"github.com/silverline-health/ordersync/internal/model"
	"github.com/silverline-health/ordersync/internal/pdfget"
	"github.com/silverline-health/ordersync/internal/report"
	"github.com/silverline-health/ordersync/internal/store"
	"github.com/silverline-health/ordersync/internal/supreme"
	"github.com/silverline-health/ordersync/internal/textextract"
	"github.com/silverline-health/ordersync/internal/upload"
	"github.com/silverline-health/ordersync/internal/workbook"
	"github.com/silverline-health/ordersync/pkg/platform"
	"github.com/silverline-health/ordersync/pkg/portalapi"
)

// DocumentSource harvests a company's document references. Satisfied by
// portal.Extractor.
type DocumentSource interface {
	Extract(ctx context.Context, company model.CompanyConfig) ([]model.DocumentRef, error)
	Stop()
}

// Pipeline holds the stage components shared across company runs.
type Pipeline struct {
	cfg       *config.Config
	store     store.Store
	portal    DocumentSource
	portalAPI portalapi.Client
	platform  platform.Client
	textex    *textextract.Extractor
	fields    *fieldextract.Extractor
	builder   *supreme.Builder
	uploader  *upload.Uploader
	reporter  *report.Reporter
}

// New creates a Pipeline with all stage dependencies.
func New(
	cfg *config.Config,
	st store.Store,
	source DocumentSource,
	portalAPI portalapi.Client,
	platformClient platform.Client,
	textex *textextract.Extractor,
	fields *fieldextract.Extractor,
	builder *supreme.Builder,
	uploader *upload.Uploader,
	reporter *report.Reporter,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		portal:    source,
		portalAPI: portalAPI,
		platform:  platformClient,
		textex:    textex,
		fields:    fields,
		builder:   builder,
		uploader:  uploader,
		reporter:  reporter,
	}
}

// Stop asks the in-flight portal scan to wind down at the next page
// boundary. Completed stages are unaffected.
func (p *Pipeline) Stop() {
	if p.portal != nil {
		p.portal.Stop()
	}
}

// Result summarizes one company run for the batch summary email.
type Result struct {
	RunID      string
	Status     model.RunStatus
	Documents  int
	Uploaded   int
	Failed     int
	ReportPath string
	SkipReason string
}

// Run executes the full pipeline for a single company. A company with no
// documents in its window is skipped, not failed; stage errors mark the run
// failed and stop further stages for that company only.
func (p *Pipeline) Run(ctx context.Context, company model.CompanyConfig) (*Result, error) {
	log := zap.L().With(zap.String("company", company.Key))
	log.Info("pipeline: starting run",
		zap.String("window", company.StartDate+".."+company.EndDate))

	run, err := p.store.CreateRun(ctx, company.Key)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	result := &Result{RunID: run.ID, Status: model.RunStatusFailed}

	setStatus := func(status model.RunStatus) {
		result.Status = status
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	trackPhase := func(name string, fn func() (map[string]any, error)) error {
		phase, phaseErr := p.store.CreatePhase(ctx, run.ID, name)
		if phaseErr != nil {
			log.Warn("pipeline: failed to create phase",
				zap.String("phase", name), zap.Error(phaseErr))
		}

		start := time.Now()
		metadata, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		phaseResult := &model.PhaseResult{
			Name:     name,
			Status:   model.PhaseStatusComplete,
			Duration: duration,
			Metadata: metadata,
		}
		if fnErr != nil {
			phaseResult.Status = model.PhaseStatusFailed
			phaseResult.Error = fnErr.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr))
		} else {
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration))
		}

		if phase != nil {
			_ = p.store.CompletePhase(ctx, phase.ID, phaseResult)
		}
		return fnErr
	}

	finish := func(status model.RunStatus, runResult *model.RunResult) {
		result.Status = status
		if resErr := p.store.UpdateRunResult(ctx, run.ID, status, runResult); resErr != nil {
			log.Warn("pipeline: failed to record run result", zap.Error(resErr))
		}
	}

	dirs, err := report.MakeRunDirs(p.cfg.Output.Dir, company)
	if err != nil {
		finish(model.RunStatusFailed, &model.RunResult{SkipReason: err.Error()})
		return result, err
	}

	// Stage 1: portal extraction.
	setStatus(model.RunStatusExtracting)
	var refs []model.DocumentRef
	err = trackPhase("extract", func() (map[string]any, error) {
		var phaseErr error
		refs, phaseErr = p.Extract(ctx, company)
		if phaseErr != nil {
			return nil, phaseErr
		}
		if wbErr := writeDocRefs(dirs.DocumentsPath(), refs); wbErr != nil {
			return nil, wbErr
		}
		return map[string]any{"documents": len(refs)}, nil
	})
	if err != nil {
		finish(model.RunStatusFailed, nil)
		return result, err
	}
	result.Documents = len(refs)

	if len(refs) == 0 {
		const reason = "no documents in window"
		log.Info("pipeline: skipping company", zap.String("reason", reason))
		result.SkipReason = reason
		finish(model.RunStatusSkipped, &model.RunResult{SkipReason: reason})
		return result, nil
	}

	// Documents already mirrored on the platform drop out here so the
	// supreme worksheet never carries rows for existing orders.
	if kept, skipped := SubtractExisting(ctx, p.platform, company.PGCompanyID, refs); skipped > 0 {
		log.Info("pipeline: subtracted existing platform orders",
			zap.Int("skipped", skipped), zap.Int("remaining", len(kept)))
		refs = kept
	}

	// Stage 2: PDF acquisition.
	setStatus(model.RunStatusAcquiring)
	var acquired []pdfget.Acquired
	err = trackPhase("acquire", func() (map[string]any, error) {
		var phaseErr error
		acquired, phaseErr = p.Acquire(ctx, refs, dirs.PDFDir())
		if phaseErr != nil {
			return nil, phaseErr
		}
		return map[string]any{
			"requested": len(refs),
			"acquired":  len(acquired),
		}, nil
	})
	if err != nil {
		finish(model.RunStatusFailed, nil)
		return result, err
	}

	// Stage 3: text and field extraction.
	setStatus(model.RunStatusFields)
	var inputs []supreme.Input
	err = trackPhase("fields", func() (map[string]any, error) {
		inputs = p.ExtractFields(ctx, refs, acquired)
		if wbErr := writeCombined(dirs.CombinedPath(), inputs); wbErr != nil {
			return nil, wbErr
		}
		return map[string]any{"rows": len(inputs)}, nil
	})
	if err != nil {
		finish(model.RunStatusFailed, nil)
		return result, err
	}

	// Stage 4: supreme-record assembly.
	setStatus(model.RunStatusSupreme)
	var records []model.SupremeRecord
	err = trackPhase("supreme", func() (map[string]any, error) {
		var phaseErr error
		records, phaseErr = p.builder.Build(ctx, company, inputs)
		if phaseErr != nil {
			return nil, phaseErr
		}
		if wbErr := writeSupreme(dirs.SupremePath(), records); wbErr != nil {
			return nil, wbErr
		}
		return map[string]any{"records": len(records)}, nil
	})
	if err != nil {
		finish(model.RunStatusFailed, nil)
		return result, err
	}

	// Stage 5: upload.
	setStatus(model.RunStatusUploading)
	var outcomes []model.UploadOutcome
	err = trackPhase("upload", func() (map[string]any, error) {
		outcomes = p.Upload(ctx, company, records)
		if wbErr := writeUploads(dirs.UploadsPath(), records, outcomes); wbErr != nil {
			return nil, wbErr
		}
		uploaded := 0
		for _, o := range outcomes {
			if o.Successful() {
				uploaded++
			}
		}
		return map[string]any{
			"uploaded": uploaded,
			"failed":   len(outcomes) - uploaded,
		}, nil
	})
	if err != nil {
		finish(model.RunStatusFailed, nil)
		return result, err
	}

	// Stage 6: report.
	setStatus(model.RunStatusReporting)
	var summary *report.Summary
	err = trackPhase("report", func() (map[string]any, error) {
		var phaseErr error
		summary, phaseErr = p.reporter.Write(ctx, dirs.ReportPath(), company, records, outcomes)
		if phaseErr != nil {
			return nil, phaseErr
		}
		return map[string]any{
			"successful": summary.Successful,
			"failed":     summary.Failed,
		}, nil
	})
	if err != nil {
		finish(model.RunStatusFailed, nil)
		return result, err
	}

	result.Uploaded = summary.Successful
	result.Failed = summary.Failed
	result.ReportPath = summary.ReportPath
	finish(model.RunStatusComplete, &model.RunResult{
		Documents:  result.Documents,
		Uploaded:   result.Uploaded,
		Failed:     result.Failed,
		ReportPath: result.ReportPath,
	})

	log.Info("pipeline: run complete",
		zap.Int("documents", result.Documents),
		zap.Int("uploaded", result.Uploaded),
		zap.Int("failed", result.Failed))
	return result, nil
}

func writeDocRefs(path string, refs []model.DocumentRef) error {
	rows := make([]workbook.Row, 0, len(refs))
	for _, ref := range refs {
		rows = append(rows, workbook.DocRefToRow(ref))
	}
	return workbook.Write(path, workbook.DocumentNPISchema, rows)
}

func writeCombined(path string, inputs []supreme.Input) error {
	rows := make([]workbook.Row, 0, len(inputs))
	for _, in := range inputs {
		rows = append(rows, workbook.CombinedToRow(in.Doc, in.Fields, in.Quality))
	}
	return workbook.Write(path, workbook.CombinedSchema, rows)
}

func writeSupreme(path string, records []model.SupremeRecord) error {
	rows := make([]workbook.Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, workbook.SupremeToRow(rec))
	}
	return workbook.Write(path, workbook.SupremeSchema, rows)
}

func writeUploads(path string, records []model.SupremeRecord, outcomes []model.UploadOutcome) error {
	if len(records) != len(outcomes) {
		return eris.New("pipeline: records and outcomes length mismatch")
	}
	rows := make([]workbook.Row, 0, len(records))
	for i, rec := range records {
		rows = append(rows, workbook.OutcomeToRow(rec, outcomes[i]))
	}
	return workbook.Write(path, workbook.UploadsSchema, rows)
}
