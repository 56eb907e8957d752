// Package upload pushes supreme records to the downstream platform. Each row
// walks a patient, order, PDF state machine; duplicate rejections keep
// success semantics and every stage leaves a timestamped remark.
package upload

import (
	"context"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/silverline-health/ordersync/internal/config"
	"github.com/silverline-health/ordersync/internal/model"
	"github.com/silverline-health/ordersync/internal/resilience"
	"github.com/silverline-health/ordersync/pkg/platform"
)

// Uploader runs the per-row upload state machine with bounded parallelism.
type Uploader struct {
	pf       platform.Client
	resolver *CompanyResolver
	validate *validator.Validate
	conc     int
	retry    resilience.RetryConfig
}

// New creates an Uploader.
func New(pf platform.Client, resolver *CompanyResolver, cfg config.UploadConfig) *Uploader {
	conc := cfg.Concurrency
	if conc <= 0 {
		conc = 4
	}
	return &Uploader{
		pf:       pf,
		resolver: resolver,
		validate: validator.New(),
		conc:     conc,
		retry:    resilience.DefaultRetryConfig(),
	}
}

// UploadAll processes every record and returns one outcome per record, in
// input order. Rows never fail the batch.
func (u *Uploader) UploadAll(ctx context.Context, records []model.SupremeRecord) []model.UploadOutcome {
	outcomes := make([]model.UploadOutcome, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.conc)
	for i := range records {
		i := i
		g.Go(func() error {
			outcomes[i] = u.UploadOne(gctx, records[i])
			return nil
		})
	}
	_ = g.Wait()

	succeeded := 0
	for _, o := range outcomes {
		if o.Successful() {
			succeeded++
		}
	}
	zap.L().Info("upload stage complete",
		zap.Int("rows", len(records)), zap.Int("succeeded", succeeded))
	return outcomes
}

// UploadOne walks one record through patient, order and PDF stages. Order
// creation waits on the patient stage of the same row; there is no global
// ordering.
func (u *Uploader) UploadOne(ctx context.Context, rec model.SupremeRecord) model.UploadOutcome {
	outcome := model.UploadOutcome{DocID: rec.Doc.DocID}

	companyID := rec.CompanyID
	if companyID == "" {
		companyID = u.resolver.Resolve(ctx, rec.CareProvider, rec.PGCompanyID)
	}

	u.patientStage(ctx, &outcome, rec, companyID)
	u.orderStage(ctx, &outcome, rec, companyID)
	u.pdfStage(ctx, &outcome, rec)

	return outcome
}

func (u *Uploader) patientStage(ctx context.Context, outcome *model.UploadOutcome, rec model.SupremeRecord, companyID string) {
	if rec.PatientExist {
		outcome.PatientUpload = model.UploadSkipped
		outcome.PatientID = rec.PatientID
		outcome.AddRemark("patient matched by MRN or back-office id")
		return
	}
	if companyID == "" {
		outcome.PatientUpload = model.UploadSkipped
		outcome.AddRemark("insufficient data: companyId")
		return
	}

	req := buildPatientRequest(rec, companyID)
	if err := u.validate.Struct(req); err != nil {
		outcome.PatientUpload = model.UploadSkipped
		outcome.AddRemark("insufficient data: %s", validationFields(err))
		return
	}

	id, err := resilience.DoVal(ctx, u.retry, func(ctx context.Context) (string, error) {
		return u.pf.CreatePatient(ctx, req)
	})
	switch {
	case err == nil:
		outcome.PatientUpload = model.UploadTrue
		outcome.PatientID = id
		outcome.AddRemark("patient created")
	case resilience.IsDuplicate(err):
		outcome.PatientUpload = model.UploadSkipped
		outcome.AddRemark("duplicate")
	default:
		outcome.PatientUpload = model.UploadFalse
		outcome.AddRemark("patient create failed: %s", serverReason(err))
	}
}

func (u *Uploader) orderStage(ctx context.Context, outcome *model.UploadOutcome, rec model.SupremeRecord, companyID string) {
	if outcome.PatientID == "" {
		outcome.OrderUpload = model.UploadSkipped
		outcome.AddRemark("patient does not exist")
		return
	}

	req := buildOrderRequest(rec, outcome.PatientID, companyID)
	if err := u.validate.Struct(req); err != nil {
		outcome.OrderUpload = model.UploadSkipped
		outcome.AddRemark("insufficient data: %s", validationFields(err))
		return
	}

	id, fixed, err := u.createOrder(ctx, req, rec)
	if fixed {
		outcome.AddRemark("fixed DocumentName via doc API")
	}
	switch {
	case err == nil:
		outcome.OrderUpload = model.UploadTrue
		outcome.OrderID = id
		outcome.AddOrderRemark("order created")
	case resilience.IsDuplicate(err):
		outcome.OrderUpload = model.UploadSkipped
		outcome.AddOrderRemark("duplicate")
	default:
		outcome.OrderUpload = model.UploadFalse
		outcome.AddOrderRemark("order create failed: %s", serverReason(err))
	}
}

// createOrder submits the order, refilling the document name and resubmitting
// once when the server rejects it as missing. The second return reports
// whether the fix pass ran.
func (u *Uploader) createOrder(ctx context.Context, req platform.CreateOrderRequest, rec model.SupremeRecord) (string, bool, error) {
	id, err := resilience.DoVal(ctx, u.retry, func(ctx context.Context) (string, error) {
		return u.pf.CreateOrder(ctx, req)
	})
	if err == nil || !missingDocumentName(err) {
		return id, false, err
	}

	req.DocumentName = fallbackDocumentName(rec)
	zap.L().Info("resubmitting order with refilled document name",
		zap.String("docid", rec.Doc.DocID), zap.String("document_name", req.DocumentName))
	id, err = resilience.DoVal(ctx, u.retry, func(ctx context.Context) (string, error) {
		return u.pf.CreateOrder(ctx, req)
	})
	return id, true, err
}

func (u *Uploader) pdfStage(ctx context.Context, outcome *model.UploadOutcome, rec model.SupremeRecord) {
	if outcome.OrderUpload != model.UploadTrue || !rec.PDFReady || rec.PDFPath == "" {
		outcome.PDFUpload = model.UploadSkipped
		return
	}

	pdf, err := os.ReadFile(rec.PDFPath)
	if err != nil {
		outcome.PDFUpload = model.UploadFalse
		outcome.AddRemark("pdf unreadable: %v", err)
		return
	}

	err = resilience.Do(ctx, u.retry, func(ctx context.Context) error {
		return u.pf.UploadOrderPDF(ctx, outcome.OrderID, rec.Doc.DocID+".pdf", pdf)
	})
	if err != nil {
		outcome.PDFUpload = model.UploadFalse
		outcome.AddRemark("pdf upload failed: %s", serverReason(err))
		return
	}
	outcome.PDFUpload = model.UploadTrue
	outcome.AddRemark("pdf uploaded")
}

func buildPatientRequest(rec model.SupremeRecord, companyID string) platform.CreatePatientRequest {
	first, middle, last := splitName(patientName(rec))

	req := platform.CreatePatientRequest{
		FirstName:       first,
		MiddleName:      middle,
		LastName:        last,
		DOB:             rec.Fields.DOB,
		PatientSex:      rec.Fields.PatientSex,
		MedicalRecordNo: rec.Fields.MRN,
		PGCompanyID:     rec.PGCompanyID,
		CompanyID:       companyID,
	}
	if model.ValidNPI(rec.Doc.NPI) {
		req.PhysicianNPI = rec.Doc.NPI
	}
	if rec.Fields.Address != "" {
		req.Addresses = []platform.PatientAddress{{AddressLine1: rec.Fields.Address}}
	}
	if rec.Fields.SOC != "" || rec.Fields.CertPeriod.SOE != "" {
		req.EpisodeDiagnoses = []platform.EpisodePayload{{
			StartOfCare:    rec.Fields.SOC,
			StartOfEpisode: rec.Fields.CertPeriod.SOE,
			EndOfEpisode:   rec.Fields.CertPeriod.EOE,
			Diagnoses:      capDiagnoses(rec.Fields.ICDCodes),
		}}
	}
	return req
}

func buildOrderRequest(rec model.SupremeRecord, patientID, companyID string) platform.CreateOrderRequest {
	return platform.CreateOrderRequest{
		OrderNo:           rec.Fields.OrderNo,
		OrderDate:         rec.Fields.OrderDate,
		PatientID:         patientID,
		CompanyID:         companyID,
		PGCompanyID:       rec.PGCompanyID,
		DocumentID:        rec.Doc.DocID,
		MRN:               rec.Fields.MRN,
		PatientName:       patientName(rec),
		StartOfCare:       rec.Fields.SOC,
		StartOfEpisode:    rec.Fields.CertPeriod.SOE,
		EndOfEpisode:      rec.Fields.CertPeriod.EOE,
		PhysicianSignDate: rec.PhysicianSignDate,
		SendDate:          rec.SendDate,
		DocumentName:      fallbackDocumentName(rec),
	}
}

func patientName(rec model.SupremeRecord) string {
	if rec.Fields.PatientName != "" {
		return rec.Fields.PatientName
	}
	return rec.PatientName
}

func fallbackDocumentName(rec model.SupremeRecord) string {
	for _, candidate := range []string{rec.DocumentName, rec.DocumentType, rec.Doc.DocType} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return "Order " + rec.Doc.DocID
}

// splitName handles both "Last, First Middle" and "First Middle Last".
func splitName(full string) (first, middle, last string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", "", ""
	}
	if i := strings.IndexByte(full, ','); i >= 0 {
		last = strings.TrimSpace(full[:i])
		rest := strings.Fields(strings.TrimSpace(full[i+1:]))
		if len(rest) > 0 {
			first = rest[0]
		}
		if len(rest) > 1 {
			middle = strings.Join(rest[1:], " ")
		}
		return first, middle, last
	}

	parts := strings.Fields(full)
	switch len(parts) {
	case 1:
		return parts[0], "", ""
	case 2:
		return parts[0], "", parts[1]
	default:
		return parts[0], strings.Join(parts[1:len(parts)-1], " "), parts[len(parts)-1]
	}
}

func capDiagnoses(codes []string) []string {
	if len(codes) > 6 {
		return codes[:6]
	}
	return codes
}

func validationFields(err error) string {
	if ve, ok := err.(validator.ValidationErrors); ok {
		names := make([]string, 0, len(ve))
		for _, fe := range ve {
			names = append(names, fe.Field())
		}
		return strings.Join(names, ", ")
	}
	return err.Error()
}

func serverReason(err error) string {
	if body := resilience.ServerBody(err); body != "" {
		return body
	}
	return err.Error()
}

func missingDocumentName(err error) bool {
	body := strings.ToLower(resilience.ServerBody(err))
	return strings.Contains(body, "documentname") && strings.Contains(body, "required")
}
