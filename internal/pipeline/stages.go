package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/silverline-health/ordersync/internal/fieldextract"
	"github.com/silverline-health/ordersync/internal/model"
	"github.com/silverline-health/ordersync/internal/pdfget"
	"github.com/silverline-health/ordersync/internal/supreme"
	"github.com/silverline-health/ordersync/internal/textextract"
	"github.com/silverline-health/ordersync/internal/upload"
	"github.com/silverline-health/ordersync/pkg/platform"
)

// Extract scrapes the portal for the company's document references.
func (p *Pipeline) Extract(ctx context.Context, company model.CompanyConfig) ([]model.DocumentRef, error) {
	return p.portal.Extract(ctx, company)
}

// Acquire downloads PDFs for the given references into dir. References whose
// download fails are logged and omitted; the fields stage still produces a
// row for them.
func (p *Pipeline) Acquire(ctx context.Context, refs []model.DocumentRef, dir string) ([]pdfget.Acquired, error) {
	acquirer := pdfget.New(p.portalAPI, dir, p.cfg.Download)
	return acquirer.AcquireAll(ctx, refs)
}

// ExtractFields runs text extraction and tiered field extraction over the
// acquired PDFs.
func (p *Pipeline) ExtractFields(ctx context.Context, refs []model.DocumentRef, acquired []pdfget.Acquired) []supreme.Input {
	return BuildInputs(ctx, p.textex, p.fields, refs, acquired)
}

// BuildInputs produces exactly one supreme input per reference, in reference
// order. References with no PDF are extracted against empty text and come
// back as quality-failed placeholder rows.
func BuildInputs(ctx context.Context, textex *textextract.Extractor, fields *fieldextract.Extractor, refs []model.DocumentRef, acquired []pdfget.Acquired) []supreme.Input {
	byID := make(map[string]pdfget.Acquired, len(acquired))
	for _, a := range acquired {
		byID[a.DocID] = a
	}

	inputs := make([]supreme.Input, 0, len(refs))
	for _, ref := range refs {
		in := supreme.Input{Doc: ref}

		var text string
		if a, ok := byID[ref.DocID]; ok {
			in.PDFPath = a.Path
			extracted, err := textex.Extract(ctx, a.Path)
			if err != nil {
				zap.L().Warn("pipeline: text extraction failed",
					zap.String("docid", ref.DocID), zap.Error(err))
			} else {
				text = extracted.Text
				zap.L().Debug("pipeline: text extracted",
					zap.String("docid", ref.DocID),
					zap.String("method", extracted.Method),
					zap.Float64("quality", extracted.QualityScore))
			}
		}

		res := fields.Extract(ctx, ref.DocID, text)
		in.Fields = res.Fields
		in.Quality = res.Quality
		inputs = append(inputs, in)
	}
	return inputs
}

// SubtractExisting drops references whose document ID already has an order
// on the platform, so later stages never touch previously mirrored documents.
// Returns the kept references and the number removed.
func SubtractExisting(ctx context.Context, pf platform.Client, pgCompanyID string, refs []model.DocumentRef) ([]model.DocumentRef, int) {
	existing := existingOrderIDs(ctx, pf, pgCompanyID)
	if len(existing) == 0 {
		return refs, 0
	}
	kept := make([]model.DocumentRef, 0, len(refs))
	for _, ref := range refs {
		if _, ok := existing[ref.DocID]; ok {
			continue
		}
		kept = append(kept, ref)
	}
	return kept, len(refs) - len(kept)
}

// Upload pushes records to the platform, skipping any whose document ID
// already has an order there. Outcomes are returned in record order.
func (p *Pipeline) Upload(ctx context.Context, company model.CompanyConfig, records []model.SupremeRecord) []model.UploadOutcome {
	return UploadRecords(ctx, p.platform, p.uploader, company, records)
}

// UploadRecords subtracts previously uploaded orders and pushes the rest.
func UploadRecords(ctx context.Context, pf platform.Client, uploader *upload.Uploader, company model.CompanyConfig, records []model.SupremeRecord) []model.UploadOutcome {
	existing := existingOrderIDs(ctx, pf, company.PGCompanyID)

	pending := make([]model.SupremeRecord, 0, len(records))
	pendingIdx := make([]int, 0, len(records))
	outcomes := make([]model.UploadOutcome, len(records))
	for i, rec := range records {
		if _, ok := existing[rec.Doc.DocID]; ok {
			o := model.UploadOutcome{
				DocID:         rec.Doc.DocID,
				PatientUpload: model.UploadSkipped,
				OrderUpload:   model.UploadSkipped,
				PDFUpload:     model.UploadSkipped,
			}
			o.AddOrderRemark("order already exists on platform")
			outcomes[i] = o
			continue
		}
		pending = append(pending, rec)
		pendingIdx = append(pendingIdx, i)
	}

	if len(pending) < len(records) {
		zap.L().Info("pipeline: skipping previously uploaded orders",
			zap.String("company", company.Key),
			zap.Int("skipped", len(records)-len(pending)))
	}

	for i, o := range uploader.UploadAll(ctx, pending) {
		outcomes[pendingIdx[i]] = o
	}
	return outcomes
}

// existingOrderIDs lists document IDs already mirrored on the platform.
// Listing failures disable the subtraction; the uploader tolerates the
// resulting duplicate submissions.
func existingOrderIDs(ctx context.Context, pf platform.Client, pgCompanyID string) map[string]struct{} {
	if pgCompanyID == "" {
		return nil
	}
	orders, err := pf.ListOrders(ctx, pgCompanyID)
	if err != nil {
		zap.L().Warn("pipeline: listing existing orders failed",
			zap.String("pgcompanyid", pgCompanyID), zap.Error(err))
		return nil
	}
	ids := make(map[string]struct{}, len(orders))
	for _, o := range orders {
		if o.DocumentID != "" {
			ids[o.DocumentID] = struct{}{}
		}
	}
	return ids
}
